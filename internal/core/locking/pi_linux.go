//go:build linux

package locking

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futex(2) 操作码
const (
	futexLockPI      = 6
	futexUnlockPI    = 7
	futexPrivateFlag = 128
)

// PISupported 当前平台是否支持优先级继承锁
func PISupported() bool {
	return true
}

// piMutex 优先级继承互斥锁
//
// 锁字为持有者的线程 ID（TID），无竞争时只做一次 CAS；
// 有竞争时进入内核 FUTEX_LOCK_PI，由内核完成优先级继承与交接。
// 持锁期间 goroutine 被固定在当前 OS 线程上，保证加锁与解锁的 TID 一致。
type piMutex struct {
	word uint32
}

func newPIMutex() *piMutex {
	return &piMutex{}
}

// Lock 加锁
func (m *piMutex) Lock() {
	runtime.LockOSThread()
	tid := uint32(unix.Gettid())
	if atomic.CompareAndSwapUint32(&m.word, 0, tid) {
		return
	}
	for {
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(&m.word)), futexLockPI|futexPrivateFlag, 0, 0, 0, 0)
		switch errno {
		case 0:
			return
		case unix.EINTR, unix.EAGAIN:
			// 内核要求重试
		default:
			runtime.UnlockOSThread()
			panic(fmt.Sprintf("locking: FUTEX_LOCK_PI failed: %v", errno))
		}
	}
}

// Unlock 解锁
func (m *piMutex) Unlock() {
	tid := uint32(unix.Gettid())
	if !atomic.CompareAndSwapUint32(&m.word, tid, 0) {
		// FUTEX_WAITERS 已置位，由内核把锁交给等待者
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(&m.word)), futexUnlockPI|futexPrivateFlag, 0, 0, 0, 0)
		if errno != 0 {
			panic(fmt.Sprintf("locking: FUTEX_UNLOCK_PI failed: %v", errno))
		}
	}
	runtime.UnlockOSThread()
}
