package pdeque

import (
	"reflect"
	"time"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// ============================================================================
// Entry
// ============================================================================

// Entry 队列条目：负载加元数据
type Entry[T any] struct {
	// Value 负载
	Value T

	// Kind 种类键，用于 Single/Latest 的"同一槽位"判定
	// 为 nil 时插入时自动解析（见 KindOf）。种类键必须可比较。
	Kind any

	// Priority 优先级，值越大越先交付
	Priority types.Priority

	// Seq 入队序号，由队列分配
	Seq uint64

	// Policy 插入时使用的策略，由队列记录
	Policy types.Policy

	// Deadline 可选的绝对过期时间，零值表示不过期
	Deadline time.Time
}

// NewEntry 从负载构造条目
//
// 负载实现 types.HasPriority 时使用其优先级，否则为最低优先级。
func NewEntry[T any](v T) Entry[T] {
	e := Entry[T]{Value: v}
	if p, ok := any(v).(types.HasPriority); ok {
		e.Priority = p.Priority()
	}
	return e
}

// KindKey 返回条目的种类键
func (e *Entry[T]) KindKey() any {
	if e.Kind != nil {
		return e.Kind
	}
	return KindOf(e.Value)
}

// IsExpired 判断条目在 now 时刻是否已过期
func (e *Entry[T]) IsExpired(now time.Time) bool {
	if !e.Deadline.IsZero() && !now.Before(e.Deadline) {
		return true
	}
	if x, ok := any(e.Value).(types.Expires); ok {
		return x.IsExpired(now)
	}
	return false
}

// KindOf 解析负载的默认种类键
//
// 负载实现 types.HasKind 时使用其键，否则使用负载的动态类型。
func KindOf(v any) any {
	if k, ok := v.(types.HasKind); ok {
		return k.KindKey()
	}
	return reflect.TypeOf(v)
}

// before 排序关系：优先级降序，序号升序
func (e *Entry[T]) before(o *Entry[T]) bool {
	if e.Priority != o.Priority {
		return e.Priority > o.Priority
	}
	return e.Seq < o.Seq
}
