// Package semaphore 实现计数信号量
//
// 许可按 FIFO 顺序交给等待者：Release 直接把许可转交给最早的等待者，
// 后来的 TryAcquire 不会插队。锁类型与通道一致，可选优先级继承锁。
package semaphore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// Option 信号量选项
type Option func(*options)

type options struct {
	lock  locking.Kind
	clock clock.Clock
}

// WithLock 设置锁类型
func WithLock(kind locking.Kind) Option {
	return func(o *options) { o.lock = kind }
}

// WithClock 设置 AcquireTimeout 使用的时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Semaphore 计数信号量
type Semaphore struct {
	mu       sync.Locker
	clk      clock.Clock
	capacity int
	used     int

	// waiters 等待许可的请求，按到达顺序排列
	waiters []chan struct{}
}

// New 创建容量为 capacity 的信号量，capacity 必须大于 0
func New(capacity int, opts ...Option) (*Semaphore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: semaphore capacity must be positive, got %d", types.ErrInvalidConfig, capacity)
	}
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Semaphore{
		mu:       locking.New(o.lock),
		clk:      o.clock,
		capacity: capacity,
	}, nil
}

// TryAcquire 非阻塞获取许可，没有可用许可或已有等待者时返回 false
func (s *Semaphore) TryAcquire() (*Guard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used >= s.capacity || len(s.waiters) > 0 {
		return nil, false
	}
	s.used++
	return &Guard{s: s}, true
}

// Acquire 阻塞到获得许可
func (s *Semaphore) Acquire() *Guard {
	g, _ := s.acquire(nil)
	return g
}

// AcquireContext 获取许可，ctx 结束时放弃等待
func (s *Semaphore) AcquireContext(ctx context.Context) (*Guard, error) {
	return s.acquire(func(ready <-chan struct{}) error {
		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", types.ErrTimeout, err)
			}
			return err
		}
	})
}

// AcquireTimeout 获取许可，至多等待 d
func (s *Semaphore) AcquireTimeout(d time.Duration) (*Guard, error) {
	t := s.clk.Timer(d)
	defer t.Stop()
	return s.acquire(func(ready <-chan struct{}) error {
		select {
		case <-ready:
			return nil
		case <-t.C:
			return types.ErrTimeout
		}
	})
}

// acquire 获取许可，wait 为 nil 时无限期等待
func (s *Semaphore) acquire(wait func(<-chan struct{}) error) (*Guard, error) {
	s.mu.Lock()
	if s.used < s.capacity && len(s.waiters) == 0 {
		s.used++
		s.mu.Unlock()
		return &Guard{s: s}, nil
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	if wait == nil {
		<-ready
		return &Guard{s: s}, nil
	}
	if err := wait(ready); err != nil {
		s.mu.Lock()
		if s.removeLocked(ready) {
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()
		// 许可已在途转交，交还给下一个等待者
		s.release()
		return nil, err
	}
	return &Guard{s: s}, nil
}

// removeLocked 移除尚未获得许可的等待者
func (s *Semaphore) removeLocked(ready chan struct{}) bool {
	for i, w := range s.waiters {
		if w == ready {
			copy(s.waiters[i:], s.waiters[i+1:])
			s.waiters[len(s.waiters)-1] = nil
			s.waiters = s.waiters[:len(s.waiters)-1]
			return true
		}
	}
	return false
}

// release 归还一个许可，有等待者时直接转交
func (s *Semaphore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters[0] = nil
		s.waiters = s.waiters[1:]
		close(w)
		return
	}
	s.used--
}

// Capacity 许可总数
func (s *Semaphore) Capacity() int { return s.capacity }

// Available 当前可用许可数
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity - s.used
}

// Used 已被持有的许可数
func (s *Semaphore) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Waiters 等待许可的请求数
func (s *Semaphore) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// Guard 持有的一个许可
type Guard struct {
	s        *Semaphore
	released atomic.Bool
}

// Release 归还许可，可重复调用
func (g *Guard) Release() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	g.s.release()
}
