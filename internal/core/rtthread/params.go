package rtthread

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/dep2p/go-rtsync/pkg/types"
)

const (
	// MaxNameLen 线程名最大字节数（不含结尾 NUL）
	MaxNameLen = 15

	// MinRealtimePriority FIFO/RR 最低优先级
	MinRealtimePriority = 1
	// MaxRealtimePriority FIFO/RR 最高优先级
	MaxRealtimePriority = 99
)

// Params 线程调度参数
type Params struct {
	Scheduling types.Scheduling `json:"scheduling"`
	Priority   int              `json:"priority"`
	CPUs       []int            `json:"cpus,omitempty"`
}

// Validate 校验参数，模拟模式与真实模式使用同一套规则
func (p Params) Validate() error {
	switch p.Scheduling {
	case types.SchedulingFIFO, types.SchedulingRoundRobin:
		if p.Priority < MinRealtimePriority || p.Priority > MaxRealtimePriority {
			return schedErr(KindInvalidPriority, "validate",
				fmt.Errorf("%s priority %d outside [%d, %d]", p.Scheduling, p.Priority, MinRealtimePriority, MaxRealtimePriority))
		}
	case types.SchedulingOther, types.SchedulingBatch, types.SchedulingIdle:
		if p.Priority != 0 {
			return schedErr(KindInvalidPriority, "validate",
				fmt.Errorf("%s priority must be 0, got %d", p.Scheduling, p.Priority))
		}
	default:
		return schedErr(KindInvalidPriority, "validate", fmt.Errorf("unknown scheduling %d", int(p.Scheduling)))
	}

	n := runtime.NumCPU()
	for _, c := range p.CPUs {
		if c < 0 || c >= n {
			return schedErr(KindInvalidAffinity, "validate", fmt.Errorf("cpu %d outside [0, %d)", c, n))
		}
	}
	return nil
}

// IsDefault 是否为默认参数（普通调度、无亲和性）
func (p Params) IsDefault() bool {
	return p.Scheduling == types.SchedulingOther && p.Priority == 0 && len(p.CPUs) == 0
}

// clone 深拷贝
func (p Params) clone() Params {
	p.CPUs = slices.Clone(p.CPUs)
	return p
}

func validateName(name string) error {
	if len(name) > MaxNameLen {
		return schedErr(KindInvalidName, "validate",
			fmt.Errorf("name %q is %d bytes, max %d", name, len(name), MaxNameLen))
	}
	return nil
}
