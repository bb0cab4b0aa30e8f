// Package supervisor 注册、监视并协调实时工作线程的优雅关闭
//
// 每个工作线程的状态机：
//
//	Starting -> Running -> {Stopping -> Stopped | Panicked}
//
// 停止是协作式的：RequestStop 取消工作线程的 context 并关闭登记的 io.Closer，
// 唤醒阻塞在通道上的等待；Join 在截止时间内等待，超时只报告，不强杀线程。
package supervisor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/pkg/lib/log"
	"github.com/dep2p/go-rtsync/pkg/types"
)

var logger = log.Logger("core/supervisor")

// Option 监督器选项
type Option func(*Supervisor)

// WithSimulated 所有 Spawn 的线程使用模拟调度
func WithSimulated(on bool) Option {
	return func(s *Supervisor) { s.simulated = on }
}

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clk = c }
}

// WithEventHandler 设置状态变更回调，回调在锁外同步执行
func WithEventHandler(fn func(Event)) Option {
	return func(s *Supervisor) { s.onEvent = fn }
}

// RegisterOption 注册选项
type RegisterOption func(*worker)

// WithCancel 停止请求时调用 cancel
func WithCancel(cancel context.CancelFunc) RegisterOption {
	return func(w *worker) { w.cancel = cancel }
}

// Supervisor 工作线程监督器
type Supervisor struct {
	simulated bool
	clk       clock.Clock
	onEvent   func(Event)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	workers  map[string]*worker
	closers  []io.Closer
	panics   []*WorkerPanicked
	stopping bool
}

// New 创建监督器
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		clk:     clock.New(),
		workers: make(map[string]*worker),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Context 根 context，RequestStopAll 时取消
func (s *Supervisor) Context() context.Context { return s.ctx }

// IsSimulated 是否模拟模式
func (s *Supervisor) IsSimulated() bool { return s.simulated }

// ============================================================================
// 注册与启动
// ============================================================================

// reserveLocked 检查名称并占位
//
// 同名条目的线程已经退出但 watch 尚未落定时，就地落定并释放名称；
// 返回的 settlement 需要在锁外 finish。
func (s *Supervisor) reserveLocked(name string) (*worker, *settlement, error) {
	if s.stopping {
		return nil, nil, fmt.Errorf("worker %q: supervisor stopping: %w", name, types.ErrClosed)
	}
	var prev *settlement
	if w, ok := s.workers[name]; ok && !w.state.IsFinished() {
		if !w.exited() {
			return nil, nil, fmt.Errorf("worker %q: %w", name, types.ErrDuplicateName)
		}
		prev = s.settleLocked(w)
	}
	w := &worker{
		name:    name,
		state:   types.WorkerStarting,
		started: s.clk.Now(),
		ready:   make(chan struct{}),
		final:   make(chan struct{}),
	}
	s.workers[name] = w
	return w, prev, nil
}

// Register 登记已启动的线程
//
// 存活的同名工作线程存在时返回 ErrDuplicateName；已结束的名称可以重用。
func (s *Supervisor) Register(name string, h Handle, opts ...RegisterOption) error {
	s.mu.Lock()
	w, prev, err := s.reserveLocked(name)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	w.handle = h
	for _, opt := range opts {
		opt(w)
	}
	w.state = types.WorkerRunning
	close(w.ready)
	s.mu.Unlock()

	s.finish(prev)
	s.emit(Event{Name: name, From: types.WorkerStarting, To: types.WorkerRunning, Time: w.started})
	go s.watch(w)
	return nil
}

// Spawn 用构建器启动线程并登记
//
// 名称在启动前占位（Starting），启动失败时释放。
// fn 的 ctx 在 RequestStop/RequestStopAll 时取消。
func (s *Supervisor) Spawn(b *rtthread.Builder, fn func(ctx context.Context) error) (*rtthread.Task, error) {
	name := b.Name()

	s.mu.Lock()
	w, prev, err := s.reserveLocked(name)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ctx, cancel := context.WithCancel(s.ctx)
	w.cancel = cancel
	s.mu.Unlock()
	s.finish(prev)

	if s.simulated {
		b = b.Clone().Simulated(true)
	}
	task, err := b.Spawn(func() error { return fn(ctx) })
	if err != nil {
		cancel()
		s.mu.Lock()
		if s.workers[name] == w {
			delete(s.workers, name)
		}
		close(w.ready)
		s.mu.Unlock()
		return nil, fmt.Errorf("spawn worker %q: %w", name, err)
	}

	s.mu.Lock()
	w.handle = task
	from := w.state
	if w.state == types.WorkerStarting {
		w.state = types.WorkerRunning
	}
	to := w.state
	close(w.ready)
	s.mu.Unlock()

	s.emit(Event{Name: name, From: from, To: to, Time: s.clk.Now()})
	logger.Info("工作线程已启动", "name", name, "tid", task.Tid(), "simulated", task.IsSimulated())
	go s.watch(w)
	return task, nil
}

// watch 等待线程结束并落定最终状态
func (s *Supervisor) watch(w *worker) {
	<-w.handle.Done()

	s.mu.Lock()
	st := s.settleLocked(w)
	s.mu.Unlock()
	s.finish(st)
}

// settlement 已落定、尚未对外通知的最终状态
type settlement struct {
	w      *worker
	ev     Event
	cancel context.CancelFunc
}

// settleLocked 把已退出的线程落定为 Stopped/Panicked，已落定时返回 nil
func (s *Supervisor) settleLocked(w *worker) *settlement {
	if w.settled {
		return nil
	}
	w.settled = true

	from := w.state
	w.finished = s.clk.Now()
	if p := w.handle.Panic(); p != nil {
		wp := &WorkerPanicked{Name: w.name, Info: p}
		w.state = types.WorkerPanicked
		w.panic = p
		w.err = wp
		s.panics = append(s.panics, wp)
	} else {
		w.state = types.WorkerStopped
		w.err = w.handle.Err()
	}
	return &settlement{
		w:      w,
		ev:     Event{Name: w.name, From: from, To: w.state, Err: w.err, Time: w.finished},
		cancel: w.cancel,
	}
}

// finish 在锁外释放资源并发出事件，最后唤醒 Join
func (s *Supervisor) finish(st *settlement) {
	if st == nil {
		return
	}
	if st.cancel != nil {
		st.cancel()
	}

	switch {
	case st.ev.To == types.WorkerPanicked:
		logger.Error("工作线程 panic", "name", st.w.name, "panic", st.w.panic.String())
	case st.ev.Err != nil:
		logger.Warn("工作线程异常退出", "name", st.w.name, "error", st.ev.Err)
	default:
		logger.Debug("工作线程已停止", "name", st.w.name)
	}
	s.emit(st.ev)
	close(st.w.final)
}

// ============================================================================
// 停止
// ============================================================================

// RequestStop 请求停止指定工作线程
func (s *Supervisor) RequestStop(name string) error {
	s.mu.Lock()
	w, ok := s.workers[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("worker %q: %w", name, types.ErrNotFound)
	}
	ev, cancel := s.markStoppingLocked(w)
	s.mu.Unlock()

	if ev != nil {
		s.emit(*ev)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// RequestStopAll 请求停止所有工作线程
//
// 取消根 context，并关闭所有 CloseOnStop 登记的对象以唤醒阻塞等待。
// 之后的 Register/Spawn 返回 ErrClosed。
func (s *Supervisor) RequestStopAll() {
	s.mu.Lock()
	s.stopping = true
	var (
		events  []Event
		cancels []context.CancelFunc
	)
	for _, w := range s.workers {
		ev, cancel := s.markStoppingLocked(w)
		if ev != nil {
			events = append(events, *ev)
		}
		if cancel != nil {
			cancels = append(cancels, cancel)
		}
	}
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, ev := range events {
		s.emit(ev)
	}
	s.cancel()
	for _, c := range cancels {
		c()
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Debug("关闭停止时资源失败", "error", err)
		}
	}
	logger.Info("已请求停止所有工作线程", "workers", len(events))
}

func (s *Supervisor) markStoppingLocked(w *worker) (*Event, context.CancelFunc) {
	if w.state.IsFinished() || w.state == types.WorkerStopping {
		return nil, nil
	}
	from := w.state
	w.state = types.WorkerStopping
	return &Event{Name: w.name, From: from, To: types.WorkerStopping, Time: s.clk.Now()}, w.cancel
}

// CloseOnStop 登记在 RequestStopAll 时关闭的对象，通常是通道句柄
//
// 已处于停止流程时立即关闭。
func (s *Supervisor) CloseOnStop(c io.Closer) {
	s.mu.Lock()
	if !s.stopping {
		s.closers = append(s.closers, c)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	_ = c.Close()
}

// Join 等待所有工作线程结束
//
// timeout <= 0 表示不设截止时间。截止时仍存活的工作线程列入报告，
// 并返回 ErrJoinTimeout；线程本身不会被终止。
func (s *Supervisor) Join(timeout time.Duration) (JoinReport, error) {
	start := s.clk.Now()

	s.mu.Lock()
	pending := make([]*worker, 0, len(s.workers))
	for _, w := range s.workers {
		if !w.state.IsFinished() {
			pending = append(pending, w)
		}
	}
	s.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		t := s.clk.Timer(timeout)
		defer t.Stop()
		deadline = t.C
	}

wait:
	for _, w := range pending {
		// Starting 的工作线程先等 Spawn 返回
		select {
		case <-w.ready:
		case <-deadline:
			break wait
		}
		s.mu.Lock()
		started := w.handle != nil
		s.mu.Unlock()
		if !started {
			continue
		}
		select {
		case <-w.final:
		case <-deadline:
			break wait
		}
	}

	report := s.report()
	report.Elapsed = s.clk.Since(start)
	if len(report.Alive) > 0 {
		logger.Warn("等待工作线程超时", "alive", report.Alive, "timeout", timeout)
		return report, fmt.Errorf("%d workers alive %v: %w", len(report.Alive), report.Alive, types.ErrJoinTimeout)
	}
	return report, nil
}

func (s *Supervisor) report() JoinReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := JoinReport{Failed: make(map[string]error)}
	for _, name := range s.namesLocked() {
		w := s.workers[name]
		switch w.state {
		case types.WorkerStopped:
			if w.err != nil {
				r.Failed[name] = w.err
			} else {
				r.Stopped = append(r.Stopped, name)
			}
		case types.WorkerPanicked:
			r.Panicked = append(r.Panicked, &WorkerPanicked{Name: name, Info: w.panic})
		default:
			r.Alive = append(r.Alive, name)
		}
	}
	return r
}

// ============================================================================
// 查询与清理
// ============================================================================

// Worker 返回指定工作线程信息
func (s *Supervisor) Worker(name string) (WorkerInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	if !ok {
		return WorkerInfo{}, false
	}
	return w.info(), true
}

// Workers 返回所有工作线程信息，按名称排序
func (s *Supervisor) Workers() []WorkerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.namesLocked()
	out := make([]WorkerInfo, 0, len(names))
	for _, name := range names {
		out = append(out, s.workers[name].info())
	}
	return out
}

// Panics 返回累计的 panic 事件
func (s *Supervisor) Panics() []*WorkerPanicked {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*WorkerPanicked(nil), s.panics...)
}

// Forget 移除已结束的工作线程
func (s *Supervisor) Forget(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	if !ok {
		return fmt.Errorf("worker %q: %w", name, types.ErrNotFound)
	}
	if !w.state.IsFinished() {
		return fmt.Errorf("worker %q is %s", name, w.state)
	}
	delete(s.workers, name)
	return nil
}

// Purge 移除所有已结束的工作线程，返回移除数量
func (s *Supervisor) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for name, w := range s.workers {
		if w.state.IsFinished() {
			delete(s.workers, name)
			n++
		}
	}
	return n
}

// Len 登记的工作线程数量
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Alive 存活的工作线程数量
func (s *Supervisor) Alive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.workers {
		if !w.state.IsFinished() {
			n++
		}
	}
	return n
}

func (s *Supervisor) namesLocked() []string {
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Supervisor) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
