// Package databuf 实现定长多生产者/单消费者批量缓冲区
//
// Buffer 是 PolicyChannel 的简化版本：没有优先级与过期，
// 只提供 Push/PushForce 写入和 TakeAll 一次性取走。
package databuf

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// Stats 缓冲区统计
type Stats struct {
	Name     string
	Len      int
	Cap      int
	Pushed   uint64
	Evicted  uint64 // PushForce 覆盖的条目数
	Rejected uint64
	Drained  uint64 // TakeAll/TakeInto 取走的条目数
}

// Option 缓冲区选项
type Option func(*options)

type options struct {
	lock locking.Kind
	name string
}

// WithLock 设置锁类型
func WithLock(kind locking.Kind) Option {
	return func(o *options) { o.lock = kind }
}

// WithName 设置名称
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Buffer 定长环形缓冲区
type Buffer[T any] struct {
	mu   sync.Locker
	name string

	ring []T
	head int // 最旧条目下标
	n    int

	pushed, evicted, rejected, drained uint64
}

// New 创建缓冲区，capacity 必须大于 0
func New[T any](capacity int, opts ...Option) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: buffer capacity must be positive, got %d", types.ErrInvalidConfig, capacity)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Buffer[T]{
		mu:   locking.New(o.lock),
		name: o.name,
		ring: make([]T, capacity),
	}, nil
}

// Push 写入，满时返回 ErrFull
func (b *Buffer[T]) Push(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.n == len(b.ring) {
		b.rejected++
		return types.ErrFull
	}
	b.ring[(b.head+b.n)%len(b.ring)] = v
	b.n++
	b.pushed++
	return nil
}

// PushForce 写入，满时覆盖最旧条目，返回是否发生覆盖
func (b *Buffer[T]) PushForce(v T) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushed++
	if b.n == len(b.ring) {
		b.ring[b.head] = v
		b.head = (b.head + 1) % len(b.ring)
		b.evicted++
		return true
	}
	b.ring[(b.head+b.n)%len(b.ring)] = v
	b.n++
	return false
}

// TakeAll 按写入顺序取走全部条目
func (b *Buffer[T]) TakeAll() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.n == 0 {
		return nil
	}
	return b.drainLocked(make([]T, 0, b.n))
}

// TakeInto 把全部条目追加到 dst 并返回，dst 容量足够时不分配
func (b *Buffer[T]) TakeInto(dst []T) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drainLocked(dst)
}

func (b *Buffer[T]) drainLocked(dst []T) []T {
	var zero T
	for i := 0; i < b.n; i++ {
		j := (b.head + i) % len(b.ring)
		dst = append(dst, b.ring[j])
		b.ring[j] = zero
	}
	b.drained += uint64(b.n)
	b.head = 0
	b.n = 0
	return dst
}

// Len 当前条目数
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Cap 容量
func (b *Buffer[T]) Cap() int { return len(b.ring) }

// IsEmpty 是否为空
func (b *Buffer[T]) IsEmpty() bool { return b.Len() == 0 }

// Stats 统计快照
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:     b.name,
		Len:      b.n,
		Cap:      len(b.ring),
		Pushed:   b.pushed,
		Evicted:  b.evicted,
		Rejected: b.rejected,
		Drained:  b.drained,
	}
}
