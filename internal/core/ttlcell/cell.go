// Package ttlcell 提供值会过期的单值容器
//
// Cell 不是并发安全的，通常由单个工作线程持有，
// 用于缓存最近一次的传感器读数等短时有效的数据。
package ttlcell

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Cell 带 TTL 的单值容器
type Cell[T any] struct {
	clk   clock.Clock
	ttl   time.Duration
	value T
	set   bool
	setAt time.Time
}

// New 创建空容器，clk 为 nil 时使用系统时钟
func New[T any](ttl time.Duration, clk clock.Clock) *Cell[T] {
	if clk == nil {
		clk = clock.New()
	}
	return &Cell[T]{clk: clk, ttl: ttl, setAt: clk.Now()}
}

// NewWithValue 创建已设置值的容器
func NewWithValue[T any](ttl time.Duration, clk clock.Clock, v T) *Cell[T] {
	c := New[T](ttl, clk)
	c.value, c.set = v, true
	return c
}

// TTL 有效期
func (c *Cell[T]) TTL() time.Duration { return c.ttl }

// SetAt 最近一次设置或 Touch 的时刻
func (c *Cell[T]) SetAt() time.Time { return c.setAt }

// Set 设置值并刷新设置时刻
func (c *Cell[T]) Set(v T) {
	c.value, c.set = v, true
	c.Touch()
}

// Replace 设置新值，返回未过期的旧值
func (c *Cell[T]) Replace(v T) (T, bool) {
	prev, ok := c.Get()
	c.Set(v)
	return prev, ok
}

// Get 返回未过期的值
func (c *Cell[T]) Get() (T, bool) {
	if c.IsExpired() {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Take 取出未过期的值并清空容器
//
// 已过期的值保留在容器中，之后的 Get 仍视为过期。
func (c *Cell[T]) Take() (T, bool) {
	v, ok := c.Get()
	if ok {
		c.Clear()
	}
	return v, ok
}

// Clear 清空容器
func (c *Cell[T]) Clear() {
	var zero T
	c.value, c.set = zero, false
}

// IsExpired 未设置值或距设置时刻超过 TTL
func (c *Cell[T]) IsExpired() bool {
	return !c.set || c.clk.Since(c.setAt) > c.ttl
}

// Touch 把设置时刻刷新为当前时刻
func (c *Cell[T]) Touch() {
	c.setAt = c.clk.Now()
}

// ============================================================================
// 成对读取
// ============================================================================

// GetWith 两个容器都未过期，且设置时刻之差不超过 maxDelta 时返回两个值
func GetWith[A, B any](a *Cell[A], b *Cell[B], maxDelta time.Duration) (A, B, bool) {
	va, okA := a.Get()
	vb, okB := b.Get()
	if okA && okB && absDiff(a.setAt, b.setAt) <= maxDelta {
		return va, vb, true
	}
	var (
		za A
		zb B
	)
	return za, zb, false
}

// TakeWith 与 GetWith 条件相同，但两个容器中未过期的值总会被取出
func TakeWith[A, B any](a *Cell[A], b *Cell[B], maxDelta time.Duration) (A, B, bool) {
	va, okA := a.Take()
	vb, okB := b.Take()
	if okA && okB && absDiff(a.setAt, b.setAt) <= maxDelta {
		return va, vb, true
	}
	var (
		za A
		zb B
	)
	return za, zb, false
}

func absDiff(x, y time.Time) time.Duration {
	d := x.Sub(y)
	if d < 0 {
		return -d
	}
	return d
}
