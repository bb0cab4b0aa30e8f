package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// untilDone 阻塞到 ctx 取消
func untilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestSupervisor_SpawnAndStop(t *testing.T) {
	s := New(WithSimulated(true))

	task, err := s.Spawn(rtthread.NewBuilder("io"), untilDone)
	require.NoError(t, err)
	assert.True(t, task.IsSimulated())

	info, ok := s.Worker("io")
	require.True(t, ok)
	assert.Equal(t, types.WorkerRunning, info.State)

	require.NoError(t, s.RequestStop("io"))
	report, err := s.Join(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"io"}, report.Stopped)
	assert.True(t, report.Clean())

	info, _ = s.Worker("io")
	assert.Equal(t, types.WorkerStopped, info.State)
	assert.False(t, info.Finished.IsZero())
}

// TestSupervisor_DuplicateName 存活期间名称唯一，结束后可重用
func TestSupervisor_DuplicateName(t *testing.T) {
	s := New(WithSimulated(true))

	_, err := s.Spawn(rtthread.NewBuilder("plc"), untilDone)
	require.NoError(t, err)

	_, err = s.Spawn(rtthread.NewBuilder("plc"), untilDone)
	assert.ErrorIs(t, err, types.ErrDuplicateName)

	require.NoError(t, s.RequestStop("plc"))
	_, err = s.Join(time.Second)
	require.NoError(t, err)

	_, err = s.Spawn(rtthread.NewBuilder("plc"), untilDone)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s.RequestStopAll()
	_, err = s.Join(time.Second)
	require.NoError(t, err)
}

// TestSupervisor_NameReusableAfterThreadExit 线程退出后立即可以重用名称，不依赖 Join
func TestSupervisor_NameReusableAfterThreadExit(t *testing.T) {
	s := New(WithSimulated(true))

	for i := 0; i < 500; i++ {
		task, err := s.Spawn(rtthread.NewBuilder("w"), func(context.Context) error { return nil })
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, task.Join())
	}
	assert.Equal(t, 1, s.Len())

	report, err := s.Join(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"w"}, report.Stopped)
}

// exitedHandle 已结束的线程句柄
type exitedHandle struct{ done chan struct{} }

func newExitedHandle() *exitedHandle {
	h := &exitedHandle{done: make(chan struct{})}
	close(h.done)
	return h
}

func (h *exitedHandle) Done() <-chan struct{}      { return h.done }
func (h *exitedHandle) Err() error                 { return nil }
func (h *exitedHandle) Panic() *rtthread.PanicInfo { return nil }

// TestSupervisor_JoinWaitsForStartingWorker Join 等待仍在启动中的工作线程
func TestSupervisor_JoinWaitsForStartingWorker(t *testing.T) {
	s := New(WithSimulated(true))

	s.mu.Lock()
	w, _, err := s.reserveLocked("slow")
	s.mu.Unlock()
	require.NoError(t, err)

	type joinResult struct {
		report JoinReport
		err    error
	}
	joined := make(chan joinResult, 1)
	go func() {
		r, err := s.Join(time.Second)
		joined <- joinResult{r, err}
	}()

	time.Sleep(20 * time.Millisecond)
	s.mu.Lock()
	w.handle = newExitedHandle()
	w.state = types.WorkerRunning
	close(w.ready)
	s.mu.Unlock()
	go s.watch(w)

	select {
	case r := <-joined:
		require.NoError(t, r.err)
		assert.Equal(t, []string{"slow"}, r.report.Stopped)
		assert.Empty(t, r.report.Alive)
	case <-time.After(2 * time.Second):
		t.Fatal("join did not return")
	}
}

// TestSupervisor_RegisterAfterExitedHandle 已退出但未落定的同名条目不阻止登记
func TestSupervisor_RegisterAfterExitedHandle(t *testing.T) {
	var events []Event
	var mu sync.Mutex
	s := New(WithEventHandler(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	s.mu.Lock()
	w, _, err := s.reserveLocked("io")
	s.mu.Unlock()
	require.NoError(t, err)

	s.mu.Lock()
	w.handle = newExitedHandle()
	w.state = types.WorkerRunning
	close(w.ready)
	s.mu.Unlock()

	// watch 尚未运行，旧条目仍是 Running
	require.NoError(t, s.Register("io", newExitedHandle()))

	// 旧条目的 watch 晚到时不会重复落定
	s.watch(w)

	report, err := s.Join(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"io"}, report.Stopped)

	mu.Lock()
	defer mu.Unlock()
	stopped := 0
	for _, ev := range events {
		if ev.To == types.WorkerStopped {
			stopped++
		}
	}
	assert.Equal(t, 2, stopped, "each registration settles exactly once")
}

// TestSupervisor_PanicIsolated panic 不会传播到调用方
func TestSupervisor_PanicIsolated(t *testing.T) {
	s := New(WithSimulated(true))

	_, err := s.Spawn(rtthread.NewBuilder("crash"), func(context.Context) error {
		panic("bus fault")
	})
	require.NoError(t, err)

	report, err := s.Join(time.Second)
	require.NoError(t, err)
	require.Len(t, report.Panicked, 1)
	assert.Equal(t, "crash", report.Panicked[0].Name)
	assert.Equal(t, "bus fault", report.Panicked[0].Info.String())
	assert.ErrorIs(t, report.Err(), rtthread.ErrPanicked)
	assert.False(t, report.Clean())

	info, _ := s.Worker("crash")
	assert.Equal(t, types.WorkerPanicked, info.State)

	var wp *WorkerPanicked
	require.True(t, errors.As(info.Err, &wp))
	assert.Contains(t, wp.Error(), "bus fault")
	assert.Len(t, s.Panics(), 1)
}

func TestSupervisor_FailedWorker(t *testing.T) {
	s := New(WithSimulated(true))
	want := errors.New("sensor gone")

	_, err := s.Spawn(rtthread.NewBuilder("sensor"), func(context.Context) error { return want })
	require.NoError(t, err)

	report, err := s.Join(time.Second)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Failed["sensor"], want)
	assert.ErrorIs(t, report.Err(), want)
}

// TestSupervisor_JoinTimeout 超时只报告，不终止线程
func TestSupervisor_JoinTimeout(t *testing.T) {
	s := New(WithSimulated(true))
	release := make(chan struct{})

	_, err := s.Spawn(rtthread.NewBuilder("stuck"), func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	_, err = s.Spawn(rtthread.NewBuilder("polite"), untilDone)
	require.NoError(t, err)

	require.NoError(t, s.RequestStop("polite"))
	require.Eventually(t, func() bool {
		info, _ := s.Worker("polite")
		return info.State.IsFinished()
	}, time.Second, 5*time.Millisecond)

	s.RequestStopAll()
	report, err := s.Join(50 * time.Millisecond)
	assert.ErrorIs(t, err, types.ErrJoinTimeout)
	assert.Equal(t, []string{"stuck"}, report.Alive)
	assert.Equal(t, []string{"polite"}, report.Stopped)

	info, _ := s.Worker("stuck")
	assert.Equal(t, types.WorkerStopping, info.State)

	close(release)
	report, err = s.Join(time.Second)
	require.NoError(t, err)
	assert.Empty(t, report.Alive)
}

// TestSupervisor_StopAllClosesResources 停止时关闭登记的通道，唤醒阻塞接收
func TestSupervisor_StopAllClosesResources(t *testing.T) {
	s := New(WithSimulated(true))
	c := &closer{}
	s.CloseOnStop(c)

	s.RequestStopAll()
	assert.Equal(t, 1, c.count())
	assert.Error(t, s.Context().Err())

	_, err := s.Spawn(rtthread.NewBuilder("late"), untilDone)
	assert.ErrorIs(t, err, types.ErrClosed)

	// 停止后登记的对象立即关闭
	late := &closer{}
	s.CloseOnStop(late)
	assert.Equal(t, 1, late.count())
}

func TestSupervisor_RegisterTask(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	task, err := rtthread.NewBuilder("ext").Simulated(true).Spawn(func() error {
		return untilDone(ctx)
	})
	require.NoError(t, err)

	require.NoError(t, s.Register("ext", task, WithCancel(cancel)))
	assert.ErrorIs(t, s.Register("ext", task), types.ErrDuplicateName)

	require.NoError(t, s.RequestStop("ext"))
	_, err = s.Join(time.Second)
	require.NoError(t, err)
	assert.ErrorIs(t, s.RequestStop("missing"), types.ErrNotFound)
}

func TestSupervisor_Events(t *testing.T) {
	var (
		mu     sync.Mutex
		states []types.WorkerState
	)
	s := New(WithSimulated(true), WithEventHandler(func(ev Event) {
		mu.Lock()
		states = append(states, ev.To)
		mu.Unlock()
	}))

	_, err := s.Spawn(rtthread.NewBuilder("ev"), untilDone)
	require.NoError(t, err)
	require.NoError(t, s.RequestStop("ev"))
	_, err = s.Join(time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []types.WorkerState{types.WorkerRunning, types.WorkerStopping, types.WorkerStopped}, states)
	mu.Unlock()
}

// TestSupervisor_SpawnFailureReleasesName 启动失败时释放名称
func TestSupervisor_SpawnFailureReleasesName(t *testing.T) {
	s := New(WithSimulated(true))

	_, err := s.Spawn(rtthread.NewBuilder("rt").Scheduling(types.SchedulingFIFO), untilDone)
	assert.ErrorIs(t, err, rtthread.ErrInvalidPriority)
	_, ok := s.Worker("rt")
	assert.False(t, ok)

	_, err = s.Spawn(rtthread.NewBuilder("rt").Scheduling(types.SchedulingFIFO).Priority(50), untilDone)
	require.NoError(t, err)
	s.RequestStopAll()
	_, err = s.Join(time.Second)
	require.NoError(t, err)
}

func TestSupervisor_ForgetAndPurge(t *testing.T) {
	s := New(WithSimulated(true))
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Spawn(rtthread.NewBuilder(name), untilDone)
		require.NoError(t, err)
	}
	assert.Error(t, s.Forget("a"), "live workers cannot be forgotten")

	require.NoError(t, s.RequestStop("a"))
	require.NoError(t, s.RequestStop("b"))
	require.Eventually(t, func() bool {
		ia, _ := s.Worker("a")
		ib, _ := s.Worker("b")
		return ia.State.IsFinished() && ib.State.IsFinished()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Forget("a"))
	assert.ErrorIs(t, s.Forget("a"), types.ErrNotFound)
	assert.Equal(t, 1, s.Purge())
	assert.Equal(t, 1, s.Alive())

	names := make([]string, 0)
	for _, w := range s.Workers() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"c"}, names)

	s.RequestStopAll()
	_, err := s.Join(time.Second)
	require.NoError(t, err)
}

func TestModule(t *testing.T) {
	var s *Supervisor
	app := fxtest.New(t,
		Module(time.Second, WithSimulated(true)),
		fx.Populate(&s),
	)
	app.RequireStart()

	_, err := s.Spawn(rtthread.NewBuilder("fx"), untilDone)
	require.NoError(t, err)

	app.RequireStop()
	info, ok := s.Worker("fx")
	require.True(t, ok)
	assert.Equal(t, types.WorkerStopped, info.State)
}

type closer struct {
	mu sync.Mutex
	n  int
}

func (c *closer) Close() error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *closer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
