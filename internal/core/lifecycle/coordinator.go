// Package lifecycle 提供控制器生命周期状态信标
//
// 状态只能向前推进：
//
//	Starting -> Active -> Running -> Stopping -> Stopped
//
// 本模块的核心职责：
//  1. 定义生命周期状态 gate
//  2. 提供基于信号的显式等待（WaitFor）
//  3. 确保状态按序推进，工作线程据此判断是否应退出
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-rtsync/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// ============================================================================
//                              状态定义
// ============================================================================

// State 控制器生命周期状态
type State int

const (
	// StateStarting 控制器已创建，工作线程正在启动
	StateStarting State = iota

	// StateActive 已上线，尚未进入稳态循环
	StateActive

	// StateRunning 稳态运行
	StateRunning

	// StateStopping 已请求关闭，工作线程应尽快退出
	StateStopping

	// StateStopped 关闭完成
	StateStopped
)

// String 返回状态字符串表示
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsOnline 尚未进入 Stopping
func (s State) IsOnline() bool {
	return s >= StateStarting && s < StateStopping
}

// ============================================================================
//                              生命周期协调器
// ============================================================================

// Coordinator 生命周期协调器
//
// 核心职责：
//  1. 追踪当前状态
//  2. 提供状态 gate（等待特定状态到达）
//  3. 通知状态变更
type Coordinator struct {
	mu sync.RWMutex

	// 当前状态
	state State

	// 状态到达信号
	// key: 状态, value: 到达后关闭的 channel
	signals map[State]chan struct{}

	// 状态变更回调
	onChange []func(old, new State)

	// 上下文
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		state:   StateStarting,
		signals: make(map[State]chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	for s := StateStarting; s <= StateStopped; s++ {
		c.signals[s] = make(chan struct{})
	}
	close(c.signals[StateStarting])

	return c
}

// ============================================================================
//                              状态管理
// ============================================================================

// State 返回当前状态
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsOnline 当前是否在线
func (c *Coordinator) IsOnline() bool {
	return c.State().IsOnline()
}

// AdvanceTo 推进到指定状态
//
// 规则：
//   - 只能向前推进，不能后退
//   - 会自动完成中间所有状态的信号
//   - 推进到 Stopping 或之后时取消协调器上下文
func (c *Coordinator) AdvanceTo(target State) error {
	if target < StateStarting || target > StateStopped {
		return fmt.Errorf("invalid state: %d", int(target))
	}

	c.mu.Lock()
	if target < c.state {
		cur := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot advance backwards: current=%s target=%s", cur, target)
	}
	if target == c.state {
		c.mu.Unlock()
		return nil // 已在目标状态
	}

	old := c.state
	for s := old + 1; s <= target; s++ {
		close(c.signals[s])
	}
	c.state = target

	callbacks := make([]func(old, new State), len(c.onChange))
	copy(callbacks, c.onChange)
	c.mu.Unlock()

	if target >= StateStopping {
		c.cancel()
	}

	logger.Info("生命周期状态推进",
		"from", old.String(),
		"to", target.String())

	// 异步通知，避免回调阻塞推进方
	if len(callbacks) > 0 {
		go func() {
			for _, cb := range callbacks {
				cb(old, target)
			}
		}()
	}

	return nil
}

// WaitFor 等待指定状态到达
//
// 阻塞直到目标状态到达或 ctx 取消。
func (c *Coordinator) WaitFor(ctx context.Context, state State) error {
	c.mu.RLock()
	ch := c.signals[state]
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("invalid state: %d", int(state))
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForWithTimeout 带超时等待指定状态到达
func (c *Coordinator) WaitForWithTimeout(state State, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.WaitFor(ctx, state)
}

// Reached 指定状态是否已经到达（当前状态不早于它）
func (c *Coordinator) Reached(state State) bool {
	c.mu.RLock()
	ch := c.signals[state]
	c.mu.RUnlock()

	if ch == nil {
		return false
	}

	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Done 到达 Stopped 时关闭
func (c *Coordinator) Done() <-chan struct{} {
	return c.signals[StateStopped]
}

// ============================================================================
//                              回调管理
// ============================================================================

// OnStateChange 注册状态变更回调
func (c *Coordinator) OnStateChange(callback func(old, new State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, callback)
}

// ============================================================================
//                              生命周期控制
// ============================================================================

// Context 返回协调器上下文，进入 Stopping 时取消
func (c *Coordinator) Context() context.Context {
	return c.ctx
}
