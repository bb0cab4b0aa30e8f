package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "unknown(9)", State(9).String())
	assert.True(t, StateStarting.IsOnline())
	assert.True(t, StateRunning.IsOnline())
	assert.False(t, StateStopping.IsOnline())
	assert.False(t, StateStopped.IsOnline())
}

func TestCoordinator_AdvanceForwardOnly(t *testing.T) {
	c := NewCoordinator()
	assert.Equal(t, StateStarting, c.State())
	assert.True(t, c.Reached(StateStarting))
	assert.True(t, c.IsOnline())

	require.NoError(t, c.AdvanceTo(StateRunning))
	assert.True(t, c.Reached(StateActive), "intermediate states are signalled")
	assert.True(t, c.IsOnline())
	assert.NoError(t, c.AdvanceTo(StateRunning))

	assert.Error(t, c.AdvanceTo(StateActive))
	assert.Error(t, c.AdvanceTo(State(42)))
	assert.Equal(t, StateRunning, c.State())
}

func TestCoordinator_WaitFor(t *testing.T) {
	c := NewCoordinator()

	done := make(chan error, 1)
	go func() { done <- c.WaitFor(context.Background(), StateRunning) }()

	select {
	case <-done:
		t.Fatal("WaitFor returned before state was reached")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, c.AdvanceTo(StateRunning))
	assert.NoError(t, <-done)

	assert.Error(t, c.WaitForWithTimeout(StateStopped, 10*time.Millisecond))
	assert.Error(t, c.WaitFor(context.Background(), State(-1)))
}

func TestCoordinator_StoppingCancelsContext(t *testing.T) {
	c := NewCoordinator()
	require.NoError(t, c.AdvanceTo(StateActive))
	assert.NoError(t, c.Context().Err())

	require.NoError(t, c.AdvanceTo(StateStopping))
	assert.Error(t, c.Context().Err())

	select {
	case <-c.Done():
		t.Fatal("Done closed before Stopped")
	default:
	}
	require.NoError(t, c.AdvanceTo(StateStopped))
	<-c.Done()
}

func TestCoordinator_OnStateChange(t *testing.T) {
	c := NewCoordinator()

	var (
		mu   sync.Mutex
		seen [][2]State
	)
	c.OnStateChange(func(old, new State) {
		mu.Lock()
		seen = append(seen, [2]State{old, new})
		mu.Unlock()
	})

	require.NoError(t, c.AdvanceTo(StateActive))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, [2]State{StateStarting, StateActive}, seen[0])
	mu.Unlock()
}

func TestModule(t *testing.T) {
	var c *Coordinator
	app := fxtest.New(t,
		Module(),
		fx.Populate(&c),
	)
	app.RequireStart()
	assert.Equal(t, StateActive, c.State())

	app.RequireStop()
	assert.Equal(t, StateStopped, c.State())
}
