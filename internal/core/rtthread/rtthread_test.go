package rtthread

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// ============================================================================
// 参数校验
// ============================================================================

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   error
	}{
		{"default", Params{}, nil},
		{"fifo ok", Params{Scheduling: types.SchedulingFIFO, Priority: 50}, nil},
		{"rr max", Params{Scheduling: types.SchedulingRoundRobin, Priority: 99}, nil},
		{"fifo zero", Params{Scheduling: types.SchedulingFIFO, Priority: 0}, ErrInvalidPriority},
		{"rr too high", Params{Scheduling: types.SchedulingRoundRobin, Priority: 100}, ErrInvalidPriority},
		{"other nonzero", Params{Scheduling: types.SchedulingOther, Priority: 5}, ErrInvalidPriority},
		{"batch nonzero", Params{Scheduling: types.SchedulingBatch, Priority: 1}, ErrInvalidPriority},
		{"unknown class", Params{Scheduling: types.Scheduling(42)}, ErrInvalidPriority},
		{"cpu negative", Params{CPUs: []int{-1}}, ErrInvalidAffinity},
		{"cpu missing", Params{CPUs: []int{runtime.NumCPU()}}, ErrInvalidAffinity},
		{"cpu zero", Params{CPUs: []int{0}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)

			var se *SchedulerError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "validate", se.Op)
		})
	}
}

func TestBuilder_NameTooLong(t *testing.T) {
	_, err := NewBuilder("a-very-long-thread-name").Simulated(true).Spawn(func() error { return nil })
	assert.ErrorIs(t, err, ErrInvalidName)

	var se *SchedulerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindInvalidName, se.Kind)
}

// TestBuilder_SimulatedSameValidation 模拟模式与真实模式使用相同的校验
func TestBuilder_SimulatedSameValidation(t *testing.T) {
	ran := atomic.Bool{}
	_, err := NewBuilder("rt").
		Simulated(true).
		Scheduling(types.SchedulingFIFO).
		Priority(0).
		Spawn(func() error { ran.Store(true); return nil })
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = NewBuilder("rt").Simulated(true).CPUs(runtime.NumCPU() + 3).Spawn(func() error { return nil })
	assert.ErrorIs(t, err, ErrInvalidAffinity)
	assert.False(t, ran.Load(), "closure must not run when configuration fails")
}

func TestSchedulerError_Message(t *testing.T) {
	err := &SchedulerError{Kind: KindInsufficientPrivilege, Op: "sched_setattr"}
	assert.Equal(t, "rtthread: sched_setattr: insufficient privilege", err.Error())
	assert.ErrorIs(t, err, ErrInsufficientPrivilege)

	inner := errors.New("EPERM")
	err = &SchedulerError{Kind: KindInsufficientPrivilege, Op: "sched_setattr", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "invalid affinity", KindInvalidAffinity.String())
}

// ============================================================================
// 启动与结束
// ============================================================================

func TestBuilder_SpawnSimulated(t *testing.T) {
	b := NewBuilder("ctrl").
		Scheduling(types.SchedulingFIFO).
		Priority(80).
		CPUs(0).
		Simulated(true).
		Blocking(true)

	want := errors.New("done")
	task, err := b.Spawn(func() error { return want })
	require.NoError(t, err)

	assert.ErrorIs(t, task.Join(), want)
	assert.True(t, task.IsFinished())
	assert.True(t, task.IsBlocking())
	assert.True(t, task.IsSimulated())
	assert.Equal(t, "ctrl", task.Name())
	assert.Equal(t, Params{Scheduling: types.SchedulingFIFO, Priority: 80, CPUs: []int{0}}, task.Params())
	assert.Nil(t, task.Panic())
}

func TestBuilder_SpawnDefaultParams(t *testing.T) {
	task, err := NewBuilder("plain").Spawn(func() error { return nil })
	require.NoError(t, err)
	require.NoError(t, task.Join())
	if runtime.GOOS == "linux" {
		assert.NotZero(t, task.Tid())
	}
}

// TestBuilder_SpawnRealtime 真实模式下实时调度要么成功，要么报告权限不足
func TestBuilder_SpawnRealtime(t *testing.T) {
	task, err := NewBuilder("rt-real").
		Scheduling(types.SchedulingFIFO).
		Priority(10).
		Spawn(func() error { return nil })
	if err != nil {
		assert.True(t,
			errors.Is(err, ErrInsufficientPrivilege) || errors.Is(err, ErrUnsupported),
			"unexpected error: %v", err)
		return
	}
	assert.NoError(t, task.Join())
}

// TestTask_PanicCaptured panic 在线程边界被捕获
func TestTask_PanicCaptured(t *testing.T) {
	task, err := NewBuilder("boom").Simulated(true).Spawn(func() error {
		panic("sensor offline")
	})
	require.NoError(t, err)

	err = task.Join()
	assert.ErrorIs(t, err, ErrPanicked)
	assert.Contains(t, err.Error(), "sensor offline")

	info := task.Panic()
	require.NotNil(t, info)
	assert.Equal(t, "sensor offline", info.String())
	assert.NotEmpty(t, info.Stack)
}

func TestTask_Elapsed(t *testing.T) {
	mock := clock.NewMock()
	release := make(chan struct{})
	task, err := NewBuilder("timed").Simulated(true).Clock(mock).Spawn(func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	mock.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, task.Elapsed())

	close(release)
	require.NoError(t, task.Join())
	mock.Add(time.Hour)
	assert.Equal(t, 3*time.Second, task.Elapsed())
}

func TestTask_ApplyParams(t *testing.T) {
	release := make(chan struct{})
	task, err := NewBuilder("adjust").Simulated(true).Spawn(func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, task.ApplyParams(Params{Scheduling: types.SchedulingRoundRobin}), ErrInvalidPriority)

	p := Params{Scheduling: types.SchedulingRoundRobin, Priority: 20}
	require.NoError(t, task.ApplyParams(p))
	assert.Equal(t, p, task.Params())

	close(release)
	require.NoError(t, task.Join())
	assert.Error(t, task.ApplyParams(p))
}

func TestBuilder_Clone(t *testing.T) {
	b := NewBuilder("orig").CPUs(0)
	c := b.Clone().Simulated(true)
	c.params.CPUs[0] = 9

	assert.False(t, b.IsSimulated())
	assert.Equal(t, []int{0}, b.params.CPUs)
}

// ============================================================================
// Interval
// ============================================================================

func TestInterval_FirstTickImmediate(t *testing.T) {
	mock := clock.NewMock()
	iv := NewInterval(mock, 10*time.Millisecond)
	start := mock.Now()

	tick, err := iv.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, tick)
	assert.Equal(t, start.Add(10*time.Millisecond), iv.Next())
}

func TestInterval_MissedTickBehavior(t *testing.T) {
	const period = 10 * time.Millisecond
	tests := []struct {
		behavior MissedTickBehavior
		next     time.Duration // 相对起点
	}{
		{Burst, 20 * time.Millisecond},
		{Delay, 45 * time.Millisecond},
		{Skip, 40 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.behavior.String(), func(t *testing.T) {
			mock := clock.NewMock()
			start := mock.Now()
			iv := NewInterval(mock, period)
			iv.SetMissedTickBehavior(tt.behavior)

			_, err := iv.Tick(context.Background())
			require.NoError(t, err)

			// 落后 2.5 个周期
			mock.Add(35 * time.Millisecond)
			tick, err := iv.Tick(context.Background())
			require.NoError(t, err)
			assert.Equal(t, start.Add(period), tick)
			assert.Equal(t, start.Add(tt.next), iv.Next())
		})
	}
}

func TestInterval_BurstCatchesUp(t *testing.T) {
	mock := clock.NewMock()
	start := mock.Now()
	iv := NewInterval(mock, 10*time.Millisecond)

	mock.Add(35 * time.Millisecond)
	var ticks []time.Duration
	for i := 0; i < 4; i++ {
		tick, err := iv.Tick(context.Background())
		require.NoError(t, err)
		ticks = append(ticks, tick.Sub(start))
	}
	assert.Equal(t, []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, ticks)
}

func TestInterval_WaitsAndCancels(t *testing.T) {
	mock := clock.NewMock()
	iv := NewInterval(mock, time.Second)
	_, _ = iv.Tick(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := iv.Tick(ctx)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("tick returned before period elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestInterval_Reset(t *testing.T) {
	mock := clock.NewMock()
	iv := NewInterval(mock, time.Second)
	mock.Add(500 * time.Millisecond)
	iv.Reset()
	assert.Equal(t, mock.Now().Add(time.Second), iv.Next())
	assert.Equal(t, time.Second, iv.Period())
}

func TestSpawnPeriodic(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int32
	task, err := NewBuilder("periodic").Simulated(true).Clock(mock).
		SpawnPeriodic(ctx, 100*time.Millisecond, func(context.Context) error {
			count.Add(1)
			return nil
		})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mock.Add(100 * time.Millisecond)
		return count.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, task.Join())
}

func TestSpawnPeriodic_StopsOnError(t *testing.T) {
	want := errors.New("io failure")
	task, err := NewBuilder("failing").Simulated(true).Clock(clock.NewMock()).
		SpawnPeriodic(context.Background(), time.Second, func(context.Context) error {
			return want
		})
	require.NoError(t, err)
	assert.ErrorIs(t, task.Join(), want)

	_, err = NewBuilder("bad").SpawnPeriodic(context.Background(), 0, nil)
	assert.Error(t, err)
}
