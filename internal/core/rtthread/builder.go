package rtthread

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/pkg/lib/log"
	"github.com/dep2p/go-rtsync/pkg/types"
)

var logger = log.Logger("core/rtthread")

// Builder 实时线程构建器
//
// Spawn 启动的 goroutine 固定在独占的 OS 线程上，线程名、CPU 亲和性和调度类
// 在闭包运行前于该线程上完成设置。设置失败时闭包不会运行，被污染的线程随 goroutine 退出。
type Builder struct {
	name      string
	params    Params
	simulated bool
	blocking  bool
	missed    MissedTickBehavior
	clk       clock.Clock
}

// NewBuilder 创建构建器，默认普通调度、无亲和性
func NewBuilder(name string) *Builder {
	return &Builder{
		name: name,
		clk:  clock.New(),
	}
}

// Scheduling 设置调度类
func (b *Builder) Scheduling(s types.Scheduling) *Builder {
	b.params.Scheduling = s
	return b
}

// Priority 设置优先级
func (b *Builder) Priority(p int) *Builder {
	b.params.Priority = p
	return b
}

// CPUs 设置 CPU 亲和性
func (b *Builder) CPUs(cpus ...int) *Builder {
	b.params.CPUs = append([]int(nil), cpus...)
	return b
}

// Params 一次性设置全部调度参数
func (b *Builder) Params(p Params) *Builder {
	b.params = p.clone()
	return b
}

// Simulated 模拟模式：校验规则不变，跳过调度系统调用
func (b *Builder) Simulated(on bool) *Builder {
	b.simulated = on
	return b
}

// Blocking 声明线程体会长期阻塞（仅作为元信息）
func (b *Builder) Blocking(on bool) *Builder {
	b.blocking = on
	return b
}

// MissedTick 设置 SpawnPeriodic 的漏拍行为
func (b *Builder) MissedTick(m MissedTickBehavior) *Builder {
	b.missed = m
	return b
}

// Clock 设置时钟
func (b *Builder) Clock(c clock.Clock) *Builder {
	b.clk = c
	return b
}

// Name 线程名
func (b *Builder) Name() string { return b.name }

// IsSimulated 是否为模拟模式
func (b *Builder) IsSimulated() bool { return b.simulated }

// Clone 复制构建器
func (b *Builder) Clone() *Builder {
	c := *b
	c.params = b.params.clone()
	return &c
}

// Validate 校验名称与调度参数
func (b *Builder) Validate() error {
	if err := validateName(b.name); err != nil {
		return err
	}
	return b.params.Validate()
}

// Spawn 在新的 OS 线程上运行 fn
func (b *Builder) Spawn(fn func() error) (*Task, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	t := &Task{
		name:      b.name,
		blocking:  b.blocking,
		simulated: b.simulated,
		clk:       b.clk,
		params:    b.params.clone(),
		done:      make(chan struct{}),
	}
	params := t.params
	ready := make(chan error, 1)

	go func() {
		// 不解锁：线程结束时随 goroutine 一起销毁，调度属性不会泄漏回线程池
		runtime.LockOSThread()
		t.tid.Store(int64(gettid()))

		if err := b.configure(params); err != nil {
			ready <- err
			return
		}
		t.start = t.clk.Now()
		ready <- nil
		t.run(fn)
	}()

	if err := <-ready; err != nil {
		logger.Debug("线程配置失败", "name", b.name, "error", err)
		return nil, err
	}
	logger.Debug("线程已启动",
		"name", b.name,
		"tid", t.Tid(),
		"scheduling", params.Scheduling,
		"priority", params.Priority,
		"simulated", b.simulated)
	return t, nil
}

// configure 在当前（已锁定的）线程上应用名称与调度参数
func (b *Builder) configure(p Params) error {
	if b.simulated {
		return nil
	}
	if b.name != "" {
		if err := setThreadName(b.name); err != nil {
			logger.Debug("设置线程名失败", "name", b.name, "error", err)
		}
	}
	return applySched(0, p)
}

// SpawnPeriodic 按周期调用 fn，直到 ctx 结束或 fn 返回错误
func (b *Builder) SpawnPeriodic(ctx context.Context, period time.Duration, fn func(ctx context.Context) error) (*Task, error) {
	if period <= 0 {
		return nil, errors.New("rtthread: period must be positive")
	}
	clk := b.clk
	missed := b.missed
	return b.Spawn(func() error {
		iv := NewInterval(clk, period)
		iv.SetMissedTickBehavior(missed)
		for {
			if _, err := iv.Tick(ctx); err != nil {
				return nil
			}
			if err := fn(ctx); err != nil {
				return err
			}
		}
	})
}
