package rtsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-rtsync/config"
	"github.com/dep2p/go-rtsync/internal/core/hub"
	"github.com/dep2p/go-rtsync/internal/core/lifecycle"
	"github.com/dep2p/go-rtsync/internal/core/metrics"
	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
	"github.com/dep2p/go-rtsync/pkg/lib/log"
)

var logger = log.Logger("rtsync/controller")

const (
	// startTimeout Fx 应用启动超时
	startTimeout = 15 * time.Second

	// stopTimeout Fx 应用停止超时（工作线程汇合之后）
	stopTimeout = 10 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              状态
// ════════════════════════════════════════════════════════════════════════════

// State 控制器状态
type State = lifecycle.State

const (
	StateStarting = lifecycle.StateStarting
	StateActive   = lifecycle.StateActive
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateStopped  = lifecycle.StateStopped
)

// ════════════════════════════════════════════════════════════════════════════
//                              工作线程
// ════════════════════════════════════════════════════════════════════════════

// Worker 由控制器启动的工作线程
//
// Run 返回的错误会被记录到监督器，不会终止进程。
// 需要及时退出的工作线程应周期检查 Context.IsOnline，
// 或在 Context.Done 关闭后返回。
type Worker[D any] interface {
	Name() string
	Run(ctx *Context[D]) error
}

// WorkerOptions 工作线程的实时参数
type WorkerOptions struct {
	Scheduling Scheduling
	Priority   int
	CPUs       []int

	// Blocking 工作线程阻塞在外部 I/O 上，不能保证及时响应停止请求
	Blocking bool
}

// ConfigurableWorker 声明自身实时参数的工作线程
//
// 未实现该接口的工作线程使用配置中的 Thread 默认参数。
type ConfigurableWorker interface {
	WorkerOptions() WorkerOptions
}

// Context 工作线程上下文
type Context[D any] struct {
	name string
	ctx  context.Context
	ctrl *Controller[D]
}

// Name 工作线程名称
func (c *Context[D]) Name() string { return c.name }

// Context 返回工作线程的 context，请求停止时取消
func (c *Context[D]) Context() context.Context { return c.ctx }

// Done 请求停止时关闭
func (c *Context[D]) Done() <-chan struct{} { return c.ctx.Done() }

// Hub 控制器的 Hub
func (c *Context[D]) Hub() *Hub[D] { return c.ctrl.hub }

// State 控制器当前状态
func (c *Context[D]) State() State { return c.ctrl.state.State() }

// IsOnline 控制器在线且本工作线程未被请求停止
func (c *Context[D]) IsOnline() bool {
	return c.ctrl.state.IsOnline() && c.ctx.Err() == nil
}

// Terminate 让控制器进入 Stopping，所有工作线程都会收到停止请求
func (c *Context[D]) Terminate() { c.ctrl.Terminate() }

// ════════════════════════════════════════════════════════════════════════════
//                              Controller
// ════════════════════════════════════════════════════════════════════════════

// Controller 组装监督器、Hub 与生命周期状态
//
// D 是 Hub 中流转的帧类型。
//
// 状态流转：
//
//	Starting ──Start──> Active ──> Running ──Terminate/Shutdown──> Stopping ──> Stopped
//
// 工作线程可以在 Start 之前启动；Start 之前控制器即视为在线。
type Controller[D any] struct {
	cfg *config.Config
	app *fx.App
	clk clock.Clock

	// 由 Fx 注入
	state      *lifecycle.Coordinator
	supervisor *supervisor.Supervisor
	hub        *hub.Hub[D]
	metrics    *metrics.Registry

	mu       sync.Mutex
	started  bool
	signals  bool
	report   supervisor.JoinReport
	stopOnce sync.Once
	stopErr  error
	stopped  chan struct{}
}

// NewController 创建控制器
//
// 创建后即可启动工作线程；Start 启动 Fx 应用并注册信号处理。
//
// 示例：
//
//	ctrl, err := rtsync.NewController[Frame](
//	    rtsync.WithPreset("realtime"),
//	    rtsync.WithEnv(),
//	)
func NewController[D any](opts ...Option) (*Controller[D], error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.toInternalConfig()
	if err != nil {
		return nil, err
	}

	// 日志配置必须在最早期应用
	cfg.Log.Apply()

	c := &Controller[D]{
		cfg:     cfg,
		clk:     o.clock,
		stopped: make(chan struct{}),
	}
	if c.clk == nil {
		c.clk = clock.New()
	}
	c.app = buildFxApp(cfg, o, c)
	if err := c.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	// 进入 Stopping 时通知所有工作线程
	c.state.OnStateChange(func(_, to State) {
		if to >= StateStopping {
			c.supervisor.RequestStopAll()
		}
	})

	logger.Debug("控制器已创建",
		"simulated", cfg.Thread.Simulated,
		"metrics", cfg.Metrics.Enabled)
	return c, nil
}

// Start 启动 Fx 应用并进入 Running
func (c *Controller[D]) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Reached(StateStopping) {
		c.mu.Unlock()
		return ErrControllerStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	// lifecycle.Module 的 OnStart 推进到 Active
	if err := c.app.Start(startCtx); err != nil {
		c.mu.Unlock()
		logger.Error("控制器启动失败", "error", err)
		return fmt.Errorf("start fx app: %w", err)
	}
	c.started = true
	c.mu.Unlock()

	if c.cfg.Supervisor.HandleSignals {
		if err := c.RegisterSignals(c.cfg.Supervisor.JoinTimeout.Duration()); err != nil {
			logger.Warn("注册信号处理失败", "error", err)
		}
	}

	if err := c.state.AdvanceTo(StateRunning); err != nil {
		return err
	}
	logger.Info("控制器已启动", "workers", c.supervisor.Len())
	return nil
}

// SpawnWorker 在实时线程上启动工作线程
//
// 名称必须在存活的工作线程中唯一。
func (c *Controller[D]) SpawnWorker(w Worker[D]) error {
	name := w.Name()
	b := rtthread.NewBuilder(name).Params(c.cfg.Thread.Params())
	if cw, ok := w.(ConfigurableWorker); ok {
		wo := cw.WorkerOptions()
		b = b.Scheduling(wo.Scheduling).
			Priority(wo.Priority).
			CPUs(wo.CPUs...).
			Blocking(wo.Blocking)
	}

	_, err := c.supervisor.Spawn(b, func(ctx context.Context) error {
		return w.Run(&Context[D]{name: name, ctx: ctx, ctrl: c})
	})
	if err != nil {
		return c.spawnErr(err)
	}
	return nil
}

// SpawnTask 以默认调度参数启动普通任务
func (c *Controller[D]) SpawnTask(name string, fn func(ctx context.Context) error) error {
	if _, err := c.supervisor.Spawn(rtthread.NewBuilder(name), fn); err != nil {
		return c.spawnErr(err)
	}
	return nil
}

// SpawnPeriodic 按周期运行 fn，直到请求停止或 fn 返回错误
//
// 第一拍立即触发；落后时按 Skip 保持原相位。
func (c *Controller[D]) SpawnPeriodic(name string, period time.Duration, fn func(ctx context.Context) error) error {
	if period <= 0 {
		return fmt.Errorf("period %s: %w", period, ErrInvalidConfig)
	}
	b := rtthread.NewBuilder(name).Params(c.cfg.Thread.Params())
	_, err := c.supervisor.Spawn(b, func(ctx context.Context) error {
		iv := rtthread.NewInterval(c.clk, period)
		iv.SetMissedTickBehavior(rtthread.Skip)
		for {
			if _, err := iv.Tick(ctx); err != nil {
				return nil
			}
			if err := fn(ctx); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return c.spawnErr(err)
	}
	return nil
}

func (c *Controller[D]) spawnErr(err error) error {
	if errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrControllerStopped, err)
	}
	return err
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// Terminate 进入 Stopping，请求所有工作线程停止，不等待
func (c *Controller[D]) Terminate() {
	if err := c.state.AdvanceTo(StateStopping); err == nil {
		c.supervisor.RequestStopAll()
	}
}

// Block 等待所有工作线程结束，然后关闭控制器
func (c *Controller[D]) Block() error {
	_, _ = c.supervisor.Join(0)
	return c.Shutdown(c.cfg.Supervisor.JoinTimeout.Duration())
}

// BlockWhileOnline 等待控制器进入 Stopping，然后关闭控制器
func (c *Controller[D]) BlockWhileOnline() error {
	<-c.state.Context().Done()
	return c.Shutdown(c.cfg.Supervisor.JoinTimeout.Duration())
}

// Shutdown 优雅关闭
//
// 流程：
//  1. 进入 Stopping，请求所有工作线程停止
//  2. 并行：在 timeout 内等待工作线程退出；关闭 Hub 唤醒阻塞的订阅者
//  3. 停止 Fx 应用，进入 Stopped
//
// 多次调用只执行一次，后续调用返回第一次的结果。
// 超时仍存活的工作线程列在 Report().Alive 中，返回的错误匹配 ErrJoinTimeout。
func (c *Controller[D]) Shutdown(timeout time.Duration) error {
	c.stopOnce.Do(func() {
		c.stopErr = c.shutdown(timeout)
		close(c.stopped)
	})
	<-c.stopped
	return c.stopErr
}

func (c *Controller[D]) shutdown(timeout time.Duration) error {
	logger.Info("正在关闭控制器", "timeout", timeout)

	_ = c.state.AdvanceTo(StateStopping)
	c.supervisor.RequestStopAll()

	var (
		g      errgroup.Group
		report supervisor.JoinReport
	)
	g.Go(func() error {
		var err error
		report, err = c.supervisor.Join(timeout)
		return err
	})
	g.Go(c.hub.Close)
	err := g.Wait()

	c.mu.Lock()
	c.report = report
	started := c.started
	c.mu.Unlock()

	if rerr := report.Err(); rerr != nil {
		logger.Warn("工作线程结束时存在错误", "error", rerr)
	}

	if started {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if serr := c.app.Stop(ctx); serr != nil {
			err = multierr.Append(err, fmt.Errorf("stop fx app: %w", serr))
		}
	}
	_ = c.state.AdvanceTo(StateStopped)

	logger.Info("控制器已关闭",
		"stopped", len(report.Stopped),
		"panicked", len(report.Panicked),
		"alive", len(report.Alive),
		"elapsed", report.Elapsed)
	return err
}

// Done 关闭完成时关闭
func (c *Controller[D]) Done() <-chan struct{} { return c.stopped }

// Report 最近一次关闭的汇合报告
func (c *Controller[D]) Report() JoinReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// Hub 控制器的 Hub
func (c *Controller[D]) Hub() *Hub[D] { return c.hub }

// Supervisor 控制器的监督器
func (c *Controller[D]) Supervisor() *Supervisor { return c.supervisor }

// State 当前状态
func (c *Controller[D]) State() State { return c.state.State() }

// IsOnline 是否尚未进入 Stopping
func (c *Controller[D]) IsOnline() bool { return c.state.IsOnline() }

// OnStateChange 注册状态变更回调，回调异步执行
func (c *Controller[D]) OnStateChange(fn func(from, to State)) {
	c.state.OnStateChange(fn)
}

// Config 返回生效配置的副本
func (c *Controller[D]) Config() *config.Config { return config.CloneConfig(c.cfg) }

// ObserveChannel 把通道登记为指标数据源，指标关闭时忽略
func (c *Controller[D]) ObserveChannel(name string, src interface{ Stats() ChannelStats }) error {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.AddChannel(name, src)
}

// ObserveBuffer 把缓冲区登记为指标数据源，指标关闭时忽略
func (c *Controller[D]) ObserveBuffer(name string, src interface{ Stats() BufferStats }) error {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.AddBuffer(name, src)
}
