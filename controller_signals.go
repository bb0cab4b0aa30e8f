package rtsync

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// signalWorkerName 信号处理线程名称
const signalWorkerName = "rtsync-signals"

// 信号线程优先运行在 CPU 0 的最高 FIFO 优先级上
const (
	signalPriority = 99
	signalCPU      = 0
)

// RegisterSignals 在 SIGINT/SIGTERM 时优雅关闭控制器
//
// 等价于 RegisterSignalsWithHandler(timeout, nil)。
func (c *Controller[D]) RegisterSignals(timeout time.Duration) error {
	return c.RegisterSignalsWithHandler(timeout, nil)
}

// RegisterSignalsWithHandler 在 SIGINT/SIGTERM 时先调用 onShutdown，再优雅关闭控制器
//
// 信号由一个受监督的线程接收，优先以实时调度运行；没有权限或平台不支持时
// 回退到普通调度。重复注册无副作用。
//
// 为了能被及时停止，工作线程需要周期检查 Context.IsOnline，或者监听 Context.Done。
// onShutdown 可用来向 Hub 发布自定义的停止帧。
func (c *Controller[D]) RegisterSignalsWithHandler(timeout time.Duration, onShutdown func(*Context[D])) error {
	c.mu.Lock()
	if c.signals {
		c.mu.Unlock()
		return nil
	}
	c.signals = true
	c.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	run := func(ctx context.Context) error {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Warn("收到信号，开始优雅关闭", "signal", sig.String(), "timeout", timeout)
			if onShutdown != nil {
				onShutdown(&Context[D]{name: signalWorkerName, ctx: ctx, ctrl: c})
			}
			// 关闭流程会汇合本线程，必须在本线程之外执行
			go func() {
				if err := c.Shutdown(timeout); err != nil {
					logger.Error("优雅关闭未完成", "error", err)
				}
			}()
		case <-ctx.Done():
		}
		return nil
	}

	rt := rtthread.NewBuilder(signalWorkerName).
		Scheduling(types.SchedulingFIFO).
		Priority(signalPriority).
		CPUs(signalCPU)
	_, err := c.supervisor.Spawn(rt, run)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrInsufficientPrivilege) && !errors.Is(err, ErrUnsupported) && !errors.Is(err, ErrInvalidAffinity) {
		c.abortSignals(sigCh)
		return c.spawnErr(err)
	}

	logger.Info("信号线程无法使用实时调度，回退到普通调度", "error", err)
	if _, err := c.supervisor.Spawn(rtthread.NewBuilder(signalWorkerName), run); err != nil {
		c.abortSignals(sigCh)
		return c.spawnErr(err)
	}
	return nil
}

func (c *Controller[D]) abortSignals(sigCh chan os.Signal) {
	signal.Stop(sigCh)
	c.mu.Lock()
	c.signals = false
	c.mu.Unlock()
}
