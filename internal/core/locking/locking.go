// Package locking 提供通道/缓冲区使用的锁实现
//
// 两种锁在行为上完全等价，只在延迟特性上不同：
//   - KindDefault: sync.Mutex，平均延迟低
//   - KindPriorityInheritance: 基于 FUTEX_LOCK_PI 的优先级继承锁，
//     被阻塞的高优先级线程会把优先级借给持锁线程，消除优先级反转
//
// 选择哪种锁是部署时配置，所有策略语义在两种锁下保持一致。
package locking

import (
	"fmt"
	"strings"
	"sync"
)

// Kind 锁类型
type Kind int

const (
	// KindDefault 默认互斥锁
	KindDefault Kind = iota
	// KindPriorityInheritance 优先级继承锁（仅 Linux 生效，其它平台退化为默认锁）
	KindPriorityInheritance
)

// String 返回锁类型的字符串表示
func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindPriorityInheritance:
		return "pi"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "default", "":
		*k = KindDefault
	case "pi", "priority-inheritance", "rt":
		*k = KindPriorityInheritance
	default:
		return fmt.Errorf("unknown lock kind %q", string(text))
	}
	return nil
}

// New 创建指定类型的锁
//
// 每个通道/缓冲区持有独立的锁实例，不同通道之间不共享锁。
func New(kind Kind) sync.Locker {
	if kind == KindPriorityInheritance && PISupported() {
		return newPIMutex()
	}
	return &sync.Mutex{}
}
