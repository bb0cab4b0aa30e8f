// Package pdeque 实现带优先级与投递策略的有界双端队列
//
// Deque 本身不做同步，由上层通道在锁内调用。
// 队列从前到后始终按 (优先级降序, 序号升序) 排列，且容量大于 0 时 len <= cap。
package pdeque

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// ============================================================================
// 插入结果
// ============================================================================

// Outcome 插入结果
type Outcome int

const (
	// Accepted 直接接受
	Accepted Outcome = iota
	// Replaced 替换了同种类条目
	Replaced
	// Evicted 驱逐了另一个条目后接受
	Evicted
	// Dropped 按策略静默丢弃
	Dropped
	// Full 队列已满且策略不允许丢弃，调用方保留负载
	Full
	// Expired 条目在插入时已过期，未存储
	Expired
	// Invalid 种类键不可比较，未存储
	Invalid
)

// String 返回插入结果的字符串表示
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Replaced:
		return "replaced"
	case Evicted:
		return "evicted"
	case Dropped:
		return "dropped"
	case Full:
		return "full"
	case Expired:
		return "expired"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stored 条目是否已进入队列
func (o Outcome) Stored() bool {
	return o == Accepted || o == Replaced || o == Evicted
}

// ============================================================================
// Deque 实现
// ============================================================================

// Deque 策略队列
type Deque[T any] struct {
	entries  []Entry[T]
	capacity int
	seq      uint64

	// expired 惰性过期丢弃的累计条目数
	expired uint64
}

// New 创建队列，capacity 为 0 表示无界
func New[T any](capacity int) *Deque[T] {
	if capacity < 0 {
		capacity = 0
	}
	d := &Deque[T]{capacity: capacity}
	if capacity > 0 {
		d.entries = make([]Entry[T], 0, capacity)
	}
	return d
}

// Insert 按策略插入条目
//
// 条目的 Seq 与 Policy 由队列填写；Kind 为空时自动解析。
// Latest 只按显式种类键（Entry.Kind 或 types.HasKind）替换，
// 默认的类型种类键下 Latest 退化为环形缓冲。
func (d *Deque[T]) Insert(e Entry[T], policy types.Policy, now time.Time) Outcome {
	if e.IsExpired(now) {
		return Expired
	}
	explicit := e.Kind != nil
	if !explicit {
		e.Kind = KindOf(e.Value)
		_, explicit = any(e.Value).(types.HasKind)
	}
	if !comparableKind(e.Kind) {
		return Invalid
	}
	e.Policy = policy

	// 同种类替换：Single 系列任意填充度，Latest 仅在满时
	if policy.IsSingle() || (policy == types.PolicyLatest && explicit && d.IsFull()) {
		if i := d.indexOfKind(e.Kind); i >= 0 {
			d.replaceAt(i, e)
			return Replaced
		}
	}

	if !d.IsFull() {
		d.push(e)
		return Accepted
	}

	// 满：先清扫过期条目
	if d.RetainUnexpired(now) > 0 {
		d.push(e)
		return Accepted
	}

	switch policy {
	case types.PolicyAlways:
		if i := d.victim(bestEffort); i >= 0 {
			d.removeAt(i)
			d.push(e)
			return Evicted
		}
		return Full
	case types.PolicyLatest:
		if i := d.victim(evictable); i >= 0 {
			d.removeAt(i)
			d.push(e)
			return Evicted
		}
		return Dropped
	case types.PolicySingle:
		if i := d.victim(evictable); i >= 0 {
			d.removeAt(i)
			d.push(e)
			return Evicted
		}
		return Full
	default:
		return Dropped
	}
}

// PopFront 弹出最高优先级、最早序号的未过期条目
//
// 途经的过期条目被丢弃。
func (d *Deque[T]) PopFront(now time.Time) (Entry[T], bool) {
	for len(d.entries) > 0 {
		e := d.entries[0]
		d.removeAt(0)
		if e.IsExpired(now) {
			d.expired++
			continue
		}
		return e, true
	}
	var zero Entry[T]
	return zero, false
}

// Peek 查看队首未过期条目，不移除
//
// 队首的过期条目会被丢弃。
func (d *Deque[T]) Peek(now time.Time) (Entry[T], bool) {
	for len(d.entries) > 0 {
		if d.entries[0].IsExpired(now) {
			d.removeAt(0)
			d.expired++
			continue
		}
		return d.entries[0], true
	}
	var zero Entry[T]
	return zero, false
}

// RetainUnexpired 清扫所有过期条目，返回清除数量
func (d *Deque[T]) RetainUnexpired(now time.Time) int {
	kept := d.entries[:0]
	for i := range d.entries {
		if d.entries[i].IsExpired(now) {
			continue
		}
		kept = append(kept, d.entries[i])
	}
	removed := len(d.entries) - len(kept)
	clear(d.entries[len(kept):])
	d.entries = kept
	d.expired += uint64(removed)
	return removed
}

// Clear 清空队列，返回清除数量
func (d *Deque[T]) Clear() int {
	n := len(d.entries)
	clear(d.entries)
	d.entries = d.entries[:0]
	return n
}

// Each 从前到后遍历条目，fn 返回 false 时停止
func (d *Deque[T]) Each(fn func(Entry[T]) bool) {
	for i := range d.entries {
		if !fn(d.entries[i]) {
			return
		}
	}
}

// Len 返回条目数
func (d *Deque[T]) Len() int { return len(d.entries) }

// Cap 返回容量，0 表示无界
func (d *Deque[T]) Cap() int { return d.capacity }

// IsEmpty 是否为空
func (d *Deque[T]) IsEmpty() bool { return len(d.entries) == 0 }

// IsFull 是否已满，无界队列永不满
func (d *Deque[T]) IsFull() bool {
	return d.capacity > 0 && len(d.entries) >= d.capacity
}

// NextSeq 返回下一个将分配的序号
func (d *Deque[T]) NextSeq() uint64 { return d.seq }

// ExpiredCount 返回累计因过期被丢弃的条目数
func (d *Deque[T]) ExpiredCount() uint64 { return d.expired }

// ============================================================================
// 内部方法
// ============================================================================

// push 分配序号并有序插入
func (d *Deque[T]) push(e Entry[T]) {
	e.Seq = d.seq
	d.seq++
	d.insertSorted(e)
}

func (d *Deque[T]) insertSorted(e Entry[T]) {
	i := sort.Search(len(d.entries), func(j int) bool {
		return e.before(&d.entries[j])
	})
	var zero Entry[T]
	d.entries = append(d.entries, zero)
	copy(d.entries[i+1:], d.entries[i:])
	d.entries[i] = e
}

func (d *Deque[T]) removeAt(i int) {
	n := len(d.entries)
	copy(d.entries[i:], d.entries[i+1:])
	var zero Entry[T]
	d.entries[n-1] = zero
	d.entries = d.entries[:n-1]
}

// replaceAt 原位替换：保留旧序号，采用新优先级
func (d *Deque[T]) replaceAt(i int, e Entry[T]) {
	old := d.entries[i]
	e.Seq = old.Seq
	if e.Priority == old.Priority {
		d.entries[i] = e
		return
	}
	d.removeAt(i)
	d.insertSorted(e)
}

// indexOfKind 查找可被替换的同种类条目
//
// Always 条目不会被替换。
func (d *Deque[T]) indexOfKind(kind any) int {
	for i := range d.entries {
		if d.entries[i].Policy != types.PolicyAlways && d.entries[i].Kind == kind {
			return i
		}
	}
	return -1
}

// comparableKind 种类键能否安全地用 == 比较
func comparableKind(kind any) bool {
	if kind == nil {
		return true
	}
	return reflect.TypeOf(kind).Comparable()
}

// victim 选出最低优先级中序号最小的可驱逐条目
func (d *Deque[T]) victim(allowed func(types.Policy) bool) int {
	best := -1
	for i := range d.entries {
		if !allowed(d.entries[i].Policy) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b, c := &d.entries[best], &d.entries[i]
		if c.Priority < b.Priority || (c.Priority == b.Priority && c.Seq < b.Seq) {
			best = i
		}
	}
	return best
}

// bestEffort 可为 Always 让位的条目
func bestEffort(p types.Policy) bool {
	return p.IsOptional() || p == types.PolicyLatest
}

// evictable 可为 Latest/Single 让位的条目
func evictable(p types.Policy) bool {
	return p != types.PolicyAlways && p != types.PolicySingle
}
