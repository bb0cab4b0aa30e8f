package pchannel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// NewAsync 创建协作式策略通道
//
// 与 New 共享同一套策略核心，等待点只在 Send/Recv 上，
// 等待可被 context 取消；context 超时映射为 ErrTimeout。
func NewAsync[T any](opts ...Option) (*AsyncSender[T], *AsyncReceiver[T], error) {
	c, err := newCore[T](opts)
	if err != nil {
		return nil, nil, err
	}
	return &AsyncSender[T]{c: c}, &AsyncReceiver[T]{c: c}, nil
}

// ctxWait 等待唤醒或 context 结束
func ctxWait(ctx context.Context) waitFunc {
	return func(ch <-chan struct{}) error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", types.ErrTimeout, err)
			}
			return err
		}
	}
}

// ============================================================================
// AsyncSender
// ============================================================================

// AsyncSender 协作式发送端
type AsyncSender[T any] struct {
	c      *core[T]
	closed atomic.Bool
}

// Send 发送负载，需要等待空间时在 ctx 上挂起
func (s *AsyncSender[T]) Send(ctx context.Context, v T, opts ...SendOption) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	e, policy := s.c.entry(v, opts)
	return s.c.send(e, policy, ctxWait(ctx))
}

// TrySend 非阻塞发送
func (s *AsyncSender[T]) TrySend(v T, opts ...SendOption) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	e, policy := s.c.entry(v, opts)
	return s.c.send(e, policy, nil)
}

// Len 当前条目数
func (s *AsyncSender[T]) Len() int { return s.c.length() }

// IsFull 是否已满
func (s *AsyncSender[T]) IsFull() bool { return s.c.isFull() }

// IsEmpty 是否为空
func (s *AsyncSender[T]) IsEmpty() bool { return s.c.length() == 0 }

// IsAlive 是否仍可发送
func (s *AsyncSender[T]) IsAlive() bool { return !s.closed.Load() && s.c.senderAlive() }

// Stats 统计快照
func (s *AsyncSender[T]) Stats() Stats { return s.c.stats() }

// Clone 复制发送端句柄
func (s *AsyncSender[T]) Clone() *AsyncSender[T] {
	n := &AsyncSender[T]{c: s.c}
	if s.closed.Load() {
		n.closed.Store(true)
		return n
	}
	s.c.retain(true)
	return n
}

// Close 释放句柄
func (s *AsyncSender[T]) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.c.release(true)
	}
	return nil
}

// CloseChannel 关闭整个通道
func (s *AsyncSender[T]) CloseChannel() error {
	s.c.close()
	return nil
}

// ============================================================================
// AsyncReceiver
// ============================================================================

// AsyncReceiver 协作式接收端
type AsyncReceiver[T any] struct {
	c      *core[T]
	closed atomic.Bool
}

// Recv 接收，无数据时在 ctx 上挂起
func (r *AsyncReceiver[T]) Recv(ctx context.Context) (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, types.ErrClosed
	}
	return r.c.recv(ctxWait(ctx))
}

// TryRecv 非阻塞接收
func (r *AsyncReceiver[T]) TryRecv() (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, types.ErrClosed
	}
	return r.c.recv(nil)
}

// Len 当前条目数
func (r *AsyncReceiver[T]) Len() int { return r.c.length() }

// IsEmpty 是否为空
func (r *AsyncReceiver[T]) IsEmpty() bool { return r.c.length() == 0 }

// IsAlive 是否仍可能收到数据
func (r *AsyncReceiver[T]) IsAlive() bool { return !r.closed.Load() && r.c.receiverAlive() }

// Stats 统计快照
func (r *AsyncReceiver[T]) Stats() Stats { return r.c.stats() }

// Clone 复制接收端句柄
func (r *AsyncReceiver[T]) Clone() *AsyncReceiver[T] {
	n := &AsyncReceiver[T]{c: r.c}
	if r.closed.Load() {
		n.closed.Store(true)
		return n
	}
	r.c.retain(false)
	return n
}

// Close 释放句柄
func (r *AsyncReceiver[T]) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.c.release(false)
	}
	return nil
}

// CloseChannel 关闭整个通道
func (r *AsyncReceiver[T]) CloseChannel() error {
	r.c.close()
	return nil
}
