//go:build linux

package rtthread

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// sched(7) 调度策略编号
const (
	schedOther = 0
	schedFIFO  = 1
	schedRR    = 2
	schedBatch = 3
	schedIdle  = 5
)

func policyOf(s types.Scheduling) uint32 {
	switch s {
	case types.SchedulingFIFO:
		return schedFIFO
	case types.SchedulingRoundRobin:
		return schedRR
	case types.SchedulingBatch:
		return schedBatch
	case types.SchedulingIdle:
		return schedIdle
	default:
		return schedOther
	}
}

func gettid() int {
	return unix.Gettid()
}

// setThreadName 设置当前线程名，失败不影响调度配置
func setThreadName(name string) error {
	buf := make([]byte, MaxNameLen+1)
	copy(buf, name)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}

// applySched 对线程 tid 应用亲和性与调度类，tid 为 0 表示当前线程
func applySched(tid int, p Params) error {
	if len(p.CPUs) > 0 {
		var set unix.CPUSet
		set.Zero()
		for _, c := range p.CPUs {
			set.Set(c)
		}
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			return errnoErr("sched_setaffinity", err, KindInvalidAffinity)
		}
	}

	// 保留当前 nice 值，降低 nice 需要额外权限
	attr, err := unix.SchedGetAttr(tid, 0)
	if err != nil {
		return errnoErr("sched_getattr", err, KindUnsupported)
	}
	attr.Size = unix.SizeofSchedAttr
	attr.Flags = 0
	attr.Policy = policyOf(p.Scheduling)
	attr.Priority = uint32(p.Priority)
	if err := unix.SchedSetAttr(tid, attr, 0); err != nil {
		return errnoErr("sched_setattr", err, KindInvalidPriority)
	}
	return nil
}

// errnoErr 把 errno 映射为调度错误类别
func errnoErr(op string, err error, einval ErrorKind) error {
	switch {
	case errors.Is(err, unix.EPERM):
		return schedErr(KindInsufficientPrivilege, op, err)
	case errors.Is(err, unix.EINVAL):
		return schedErr(einval, op, err)
	case errors.Is(err, unix.ENOSYS):
		return schedErr(KindUnsupported, op, err)
	default:
		return schedErr(einval, op, err)
	}
}
