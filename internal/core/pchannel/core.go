package pchannel

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/internal/core/pdeque"
	"github.com/dep2p/go-rtsync/pkg/lib/log"
	"github.com/dep2p/go-rtsync/pkg/types"
)

var logger = log.Logger("core/pchannel")

// ============================================================================
// 统计
// ============================================================================

// Stats 通道统计快照
type Stats struct {
	Name     string
	Len      int
	Cap      int
	Sent     uint64 // 进入队列的条目数（含替换、驱逐）
	Replaced uint64
	Evicted  uint64
	Dropped  uint64
	Expired  uint64 // 插入时已过期 + 队列中过期丢弃
	Received uint64
}

// ============================================================================
// 通道核心
// ============================================================================

// waitFunc 在锁外等待唤醒信号
//
// 收到信号返回 nil；超时或取消返回对应错误。
type waitFunc func(ch <-chan struct{}) error

// core 同步与协作两种前端共享的通道核心
//
// 策略与排序完全由 pdeque 决定，core 只负责加锁、唤醒与句柄计数。
type core[T any] struct {
	mu  sync.Locker
	dq  *pdeque.Deque[T]
	clk clock.Clock

	name     string
	policy   types.Policy
	priority types.Priority

	closed    bool
	senders   int
	receivers int

	recvq waitq // 等待数据
	sendq waitq // 等待空间

	sent, replaced, evicted, dropped, expiredIn, received uint64
}

func newCore[T any](opts []Option) (*core[T], error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &core[T]{
		mu:        locking.New(s.lock),
		dq:        pdeque.New[T](s.capacity),
		clk:       s.clock,
		name:      s.name,
		policy:    s.policy,
		priority:  s.priority,
		senders:   1,
		receivers: 1,
	}, nil
}

// entry 构造条目并解析本次发送的策略
//
// 策略优先级：发送选项 > 负载 HasPolicy > 通道默认。
func (c *core[T]) entry(v T, opts []SendOption) (pdeque.Entry[T], types.Policy) {
	var s sendSettings
	for _, opt := range opts {
		opt(&s)
	}

	e := pdeque.NewEntry(v)
	if _, ok := any(v).(types.HasPriority); !ok {
		e.Priority = c.priority
	}
	if s.hasPriority {
		e.Priority = s.priority
	}
	e.Kind = s.kind
	if s.ttl > 0 {
		e.Deadline = c.clk.Now().Add(s.ttl)
	}
	if !s.deadline.IsZero() {
		e.Deadline = s.deadline
	}

	policy := c.policy
	if hp, ok := any(v).(types.HasPolicy); ok {
		policy = hp.DeliveryPolicy()
	}
	if s.hasPolicy {
		policy = s.policy
	}
	return e, policy
}

// admitLocked 在锁内尝试一次插入
//
// mustWait 为 true 表示 Always/Single 需要等待空间。
func (c *core[T]) admitLocked(e pdeque.Entry[T], policy types.Policy) (mustWait bool, err error) {
	if c.closed || c.receivers == 0 {
		return false, types.ErrClosed
	}

	switch c.dq.Insert(e, policy, c.clk.Now()) {
	case pdeque.Accepted:
		c.sent++
	case pdeque.Replaced:
		c.sent++
		c.replaced++
	case pdeque.Evicted:
		c.sent++
		c.evicted++
	case pdeque.Dropped:
		c.dropped++
		return false, types.ErrFull
	case pdeque.Expired:
		c.expiredIn++
		return false, nil
	case pdeque.Full:
		return true, types.ErrFull
	case pdeque.Invalid:
		c.dropped++
		return false, fmt.Errorf("kind key %T is not comparable: %w", e.KindKey(), types.ErrInvalidConfig)
	}

	c.recvq.wakeOne()
	if !c.dq.IsFull() {
		c.sendq.wakeOne()
	}
	return false, nil
}

// send 发送，需要空间时通过 wait 等待
//
// wait 为 nil 表示不等待（TrySend）。
func (c *core[T]) send(e pdeque.Entry[T], policy types.Policy, wait waitFunc) error {
	c.mu.Lock()
	for {
		mustWait, err := c.admitLocked(e, policy)
		if !mustWait || wait == nil {
			c.mu.Unlock()
			return err
		}

		w := c.sendq.push()
		c.mu.Unlock()

		if werr := wait(w.ch); werr != nil {
			c.mu.Lock()
			if !c.sendq.remove(w) {
				c.sendq.wakeOne()
			}
			c.mu.Unlock()
			return werr
		}
		c.mu.Lock()
	}
}

// popLocked 在锁内弹出一个条目
func (c *core[T]) popLocked() (T, bool) {
	e, ok := c.dq.PopFront(c.clk.Now())
	if !ok {
		var zero T
		return zero, false
	}
	c.received++
	c.sendq.wakeOne()
	if !c.dq.IsEmpty() {
		c.recvq.wakeOne()
	}
	return e.Value, true
}

// drainedLocked 所有发送方已离开或通道已关闭
func (c *core[T]) drainedLocked() bool {
	return c.closed || c.senders == 0
}

// recv 接收，无数据时通过 wait 等待
//
// wait 为 nil 表示不等待（TryRecv）。
func (c *core[T]) recv(wait waitFunc) (T, error) {
	var zero T
	c.mu.Lock()
	for {
		if v, ok := c.popLocked(); ok {
			c.mu.Unlock()
			return v, nil
		}
		if c.drainedLocked() {
			c.mu.Unlock()
			return zero, types.ErrClosed
		}
		if wait == nil {
			c.mu.Unlock()
			return zero, types.ErrEmpty
		}

		w := c.recvq.push()
		c.mu.Unlock()

		if werr := wait(w.ch); werr != nil {
			c.mu.Lock()
			if !c.recvq.remove(w) {
				c.recvq.wakeOne()
			}
			c.mu.Unlock()
			return zero, werr
		}
		c.mu.Lock()
	}
}

// ============================================================================
// 句柄计数与关闭
// ============================================================================

func (c *core[T]) retain(sender bool) {
	c.mu.Lock()
	if sender {
		c.senders++
	} else {
		c.receivers++
	}
	c.mu.Unlock()
}

// release 释放一个句柄，最后一个发送方/接收方离开时唤醒对端
func (c *core[T]) release(sender bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sender {
		c.senders--
		if c.senders == 0 {
			c.recvq.wakeAll()
		}
		return
	}
	c.receivers--
	if c.receivers == 0 {
		c.sendq.wakeAll()
		c.dq.Clear()
	}
}

// close 标记关闭并唤醒所有等待者
func (c *core[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.recvq.wakeAll()
	c.sendq.wakeAll()
	logger.Debug("通道已关闭", "name", c.name, "pending", c.dq.Len())
}

// ============================================================================
// 查询
// ============================================================================

func (c *core[T]) length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dq.Len()
}

func (c *core[T]) isFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dq.IsFull()
}

func (c *core[T]) senderAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.receivers > 0
}

func (c *core[T]) receiverAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.drainedLocked() || !c.dq.IsEmpty()
}

func (c *core[T]) stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:     c.name,
		Len:      c.dq.Len(),
		Cap:      c.dq.Cap(),
		Sent:     c.sent,
		Replaced: c.replaced,
		Evicted:  c.evicted,
		Dropped:  c.dropped,
		Expired:  c.expiredIn + c.dq.ExpiredCount(),
		Received: c.received,
	}
}
