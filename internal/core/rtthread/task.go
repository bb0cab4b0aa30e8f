package rtthread

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// PanicInfo 线程边界捕获的 panic
type PanicInfo struct {
	Value any
	Stack []byte
}

// String 返回 panic 值的字符串表示
func (p *PanicInfo) String() string {
	return fmt.Sprint(p.Value)
}

// Task 已启动线程的句柄
type Task struct {
	name      string
	blocking  bool
	simulated bool
	clk       clock.Clock

	tid   atomic.Int64
	start time.Time

	mu     sync.Mutex
	params Params
	end    time.Time
	err    error
	panic  *PanicInfo

	done chan struct{}
}

// run 在已锁定的线程上执行 fn，并在线程边界捕获 panic
func (t *Task) run(fn func() error) {
	defer func() {
		r := recover()
		t.mu.Lock()
		if r != nil {
			t.panic = &PanicInfo{Value: r, Stack: debug.Stack()}
			t.err = fmt.Errorf("%w: %s: %v", ErrPanicked, t.name, r)
		}
		t.end = t.clk.Now()
		t.mu.Unlock()
		close(t.done)
	}()

	err := fn()
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// Name 线程名
func (t *Task) Name() string { return t.name }

// Tid 内核线程 ID，模拟模式与非 Linux 平台可能为 0
func (t *Task) Tid() int { return int(t.tid.Load()) }

// IsBlocking 线程体是否声明为长期阻塞
func (t *Task) IsBlocking() bool { return t.blocking }

// IsSimulated 是否为模拟模式
func (t *Task) IsSimulated() bool { return t.simulated }

// Params 当前调度参数
func (t *Task) Params() Params {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params.clone()
}

// ApplyParams 修改运行中线程的调度参数
func (t *Task) ApplyParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if t.IsFinished() {
		return fmt.Errorf("apply params to %s: thread finished", t.name)
	}
	if !t.simulated {
		if err := applySched(t.Tid(), p); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.params = p.clone()
	t.mu.Unlock()
	return nil
}

// Done 线程结束时关闭
func (t *Task) Done() <-chan struct{} { return t.done }

// IsFinished 线程是否已结束
func (t *Task) IsFinished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Join 等待线程结束，返回线程体错误；panic 时返回包装 ErrPanicked 的错误
func (t *Task) Join() error {
	<-t.done
	return t.Err()
}

// Err 线程体错误，未结束时为 nil
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Panic 捕获的 panic，没有时为 nil
func (t *Task) Panic() *PanicInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.panic
}

// Elapsed 已运行时长，结束后固定为总时长
func (t *Task) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.end.IsZero() {
		return t.end.Sub(t.start)
	}
	return t.clk.Since(t.start)
}
