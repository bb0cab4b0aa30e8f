package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// Handle 受监督的线程句柄，*rtthread.Task 实现该接口
type Handle interface {
	Done() <-chan struct{}
	Err() error
	Panic() *rtthread.PanicInfo
}

// WorkerPanicked 工作线程 panic 事件
type WorkerPanicked struct {
	Name string
	Info *rtthread.PanicInfo
}

// Error 实现 error 接口
func (e *WorkerPanicked) Error() string {
	return fmt.Sprintf("worker %q panicked: %v", e.Name, e.Info.Value)
}

// Unwrap 与 rtthread.ErrPanicked 匹配
func (e *WorkerPanicked) Unwrap() error {
	return rtthread.ErrPanicked
}

// Event 工作线程状态变更事件
type Event struct {
	Name string
	From types.WorkerState
	To   types.WorkerState
	Err  error
	Time time.Time
}

// WorkerInfo 工作线程信息快照
type WorkerInfo struct {
	Name     string
	State    types.WorkerState
	Tid      int
	Err      error
	Panic    *rtthread.PanicInfo
	Started  time.Time
	Finished time.Time
}

// worker 注册表条目
type worker struct {
	name     string
	state    types.WorkerState
	handle   Handle
	cancel   context.CancelFunc
	err      error
	panic    *rtthread.PanicInfo
	started  time.Time
	finished time.Time

	// ready 在 Spawn 返回（成功或失败）后关闭
	ready   chan struct{}
	// final 在状态落定为 Stopped/Panicked 后关闭
	final   chan struct{}
	settled bool
}

// exited 线程已退出，最终状态可能尚未落定
func (w *worker) exited() bool {
	if w.handle == nil {
		return false
	}
	select {
	case <-w.handle.Done():
		return true
	default:
		return false
	}
}

func (w *worker) info() WorkerInfo {
	info := WorkerInfo{
		Name:     w.name,
		State:    w.state,
		Err:      w.err,
		Panic:    w.panic,
		Started:  w.started,
		Finished: w.finished,
	}
	if t, ok := w.handle.(interface{ Tid() int }); ok {
		info.Tid = t.Tid()
	}
	return info
}

// ============================================================================
// JoinReport
// ============================================================================

// JoinReport Join 的结果报告
type JoinReport struct {
	// Stopped 正常结束的工作线程
	Stopped []string
	// Panicked panic 结束的工作线程
	Panicked []*WorkerPanicked
	// Failed 返回错误结束的工作线程
	Failed map[string]error
	// Alive 截止时间后仍在运行的工作线程
	Alive []string
	// Elapsed 等待时长
	Elapsed time.Duration
}

// Err 合并所有失败与 panic，没有时为 nil
func (r JoinReport) Err() error {
	var err error
	for _, p := range r.Panicked {
		err = multierr.Append(err, p)
	}
	for name, e := range r.Failed {
		err = multierr.Append(err, fmt.Errorf("worker %q: %w", name, e))
	}
	return err
}

// Clean 所有工作线程都已正常结束
func (r JoinReport) Clean() bool {
	return len(r.Alive) == 0 && len(r.Panicked) == 0 && len(r.Failed) == 0
}
