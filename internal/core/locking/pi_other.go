//go:build !linux

package locking

import "sync"

// PISupported 当前平台是否支持优先级继承锁
func PISupported() bool {
	return false
}

func newPIMutex() sync.Locker {
	return &sync.Mutex{}
}
