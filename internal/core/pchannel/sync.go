package pchannel

import (
	"sync/atomic"
	"time"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// New 创建阻塞式策略通道
//
// 返回的发送端与接收端均可 Clone 出更多句柄；全部发送端关闭后，
// 接收端取完剩余条目再得到 ErrClosed；全部接收端关闭后，发送得到 ErrClosed。
func New[T any](opts ...Option) (*Sender[T], *Receiver[T], error) {
	c, err := newCore[T](opts)
	if err != nil {
		return nil, nil, err
	}
	return &Sender[T]{c: c}, &Receiver[T]{c: c}, nil
}

// blockingWait 无限期等待唤醒
func blockingWait(ch <-chan struct{}) error {
	<-ch
	return nil
}

// ============================================================================
// Sender
// ============================================================================

// Sender 阻塞式发送端
type Sender[T any] struct {
	c      *core[T]
	closed atomic.Bool
}

// Send 发送负载
//
// Always（以及无可驱逐条目的 Single）在满时阻塞等待空间；其余策略立即返回。
// 按策略丢弃时返回 ErrFull，通道关闭或无接收端时返回 ErrClosed。
func (s *Sender[T]) Send(v T, opts ...SendOption) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	e, policy := s.c.entry(v, opts)
	return s.c.send(e, policy, blockingWait)
}

// SendTimeout 发送，等待空间至多 d
func (s *Sender[T]) SendTimeout(v T, d time.Duration, opts ...SendOption) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	e, policy := s.c.entry(v, opts)
	t := s.c.clk.Timer(d)
	defer t.Stop()
	return s.c.send(e, policy, func(ch <-chan struct{}) error {
		select {
		case <-ch:
			return nil
		case <-t.C:
			return types.ErrTimeout
		}
	})
}

// TrySend 非阻塞发送，需要等待时返回 ErrFull
func (s *Sender[T]) TrySend(v T, opts ...SendOption) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	e, policy := s.c.entry(v, opts)
	return s.c.send(e, policy, nil)
}

// Len 当前条目数
func (s *Sender[T]) Len() int { return s.c.length() }

// IsFull 是否已满
func (s *Sender[T]) IsFull() bool { return s.c.isFull() }

// IsEmpty 是否为空
func (s *Sender[T]) IsEmpty() bool { return s.c.length() == 0 }

// IsAlive 是否仍可发送
func (s *Sender[T]) IsAlive() bool { return !s.closed.Load() && s.c.senderAlive() }

// Stats 统计快照
func (s *Sender[T]) Stats() Stats { return s.c.stats() }

// Clone 复制发送端句柄，已关闭句柄的副本同样是关闭的
func (s *Sender[T]) Clone() *Sender[T] {
	n := &Sender[T]{c: s.c}
	if s.closed.Load() {
		n.closed.Store(true)
		return n
	}
	s.c.retain(true)
	return n
}

// Close 释放句柄，可重复调用
func (s *Sender[T]) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.c.release(true)
	}
	return nil
}

// CloseChannel 关闭整个通道，唤醒所有等待者
func (s *Sender[T]) CloseChannel() error {
	s.c.close()
	return nil
}

// ============================================================================
// Receiver
// ============================================================================

// Receiver 阻塞式接收端
type Receiver[T any] struct {
	c      *core[T]
	closed atomic.Bool
}

// Recv 接收，阻塞直到有数据或通道关闭
func (r *Receiver[T]) Recv() (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, types.ErrClosed
	}
	return r.c.recv(blockingWait)
}

// RecvTimeout 接收，至多等待 d，超时返回 ErrTimeout
//
// 超时不会影响队列，随后到达的条目留给下一个接收者。
func (r *Receiver[T]) RecvTimeout(d time.Duration) (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, types.ErrClosed
	}
	t := r.c.clk.Timer(d)
	defer t.Stop()
	return r.c.recv(func(ch <-chan struct{}) error {
		select {
		case <-ch:
			return nil
		case <-t.C:
			return types.ErrTimeout
		}
	})
}

// TryRecv 非阻塞接收，空时返回 ErrEmpty
func (r *Receiver[T]) TryRecv() (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, types.ErrClosed
	}
	return r.c.recv(nil)
}

// Len 当前条目数
func (r *Receiver[T]) Len() int { return r.c.length() }

// IsEmpty 是否为空
func (r *Receiver[T]) IsEmpty() bool { return r.c.length() == 0 }

// IsAlive 是否仍可能收到数据
func (r *Receiver[T]) IsAlive() bool { return !r.closed.Load() && r.c.receiverAlive() }

// Stats 统计快照
func (r *Receiver[T]) Stats() Stats { return r.c.stats() }

// Clone 复制接收端句柄
func (r *Receiver[T]) Clone() *Receiver[T] {
	n := &Receiver[T]{c: r.c}
	if r.closed.Load() {
		n.closed.Store(true)
		return n
	}
	r.c.retain(false)
	return n
}

// Close 释放句柄，可重复调用
func (r *Receiver[T]) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.c.release(false)
	}
	return nil
}

// CloseChannel 关闭整个通道，唤醒所有等待者
func (r *Receiver[T]) CloseChannel() error {
	r.c.close()
	return nil
}
