package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-rtsync/config"
	"github.com/dep2p/go-rtsync/internal/core/databuf"
	"github.com/dep2p/go-rtsync/internal/core/hub"
	"github.com/dep2p/go-rtsync/internal/core/pchannel"
	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// fixture 一组已产生流量的数据源
type fixture struct {
	reg *Registry
	tx  *pchannel.Sender[int]
	rx  *pchannel.Receiver[int]
	buf *databuf.Buffer[int]
	hub *hub.Hub[int]
	sup *supervisor.Supervisor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{reg: NewRegistry()}

	var err error
	f.tx, f.rx, err = pchannel.New[int](pchannel.WithCapacity(4), pchannel.WithName("cmd"))
	require.NoError(t, err)
	require.NoError(t, f.tx.TrySend(1))
	require.NoError(t, f.tx.TrySend(2))
	_, err = f.rx.TryRecv()
	require.NoError(t, err)

	f.buf, err = databuf.New[int](2)
	require.NoError(t, err)
	require.NoError(t, f.buf.Push(1))
	require.NoError(t, f.buf.Push(2))
	assert.ErrorIs(t, f.buf.Push(3), types.ErrFull)

	f.hub = hub.New[int]()
	_, err = f.hub.Subscribe(hub.Name("logger"))
	require.NoError(t, err)
	require.NoError(t, f.hub.Publish(7))

	f.sup = supervisor.New(supervisor.WithSimulated(true))
	_, err = f.sup.Spawn(rtthread.NewBuilder("io"), func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		f.sup.RequestStopAll()
		_, _ = f.sup.Join(time.Second)
	})

	require.NoError(t, f.reg.AddChannel("cmd", f.tx))
	require.NoError(t, f.reg.AddBuffer("samples", f.buf))
	require.NoError(t, f.reg.AddHub("bus", f.hub))
	require.NoError(t, f.reg.AddSupervisor("main", f.sup))
	return f
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	tx, _, err := pchannel.New[int]()
	require.NoError(t, err)

	require.NoError(t, reg.AddChannel("a", tx))
	assert.ErrorIs(t, reg.AddChannel("a", tx), types.ErrDuplicateName)
	assert.ErrorIs(t, reg.AddChannel("", tx), types.ErrInvalidConfig)
	assert.Equal(t, 1, reg.Len())

	reg.Remove("a")
	assert.Equal(t, 0, reg.Len())
}

func TestCollector(t *testing.T) {
	f := newFixture(t)
	c := NewCollector(f.reg, "")

	// 8 通道 + 6 缓冲区 + 4 Hub + 5 状态 + 1 panic 计数
	assert.Equal(t, 24, testutil.CollectAndCount(c))

	expected := `
# HELP rtsync_channel_sent_total Entries admitted into the channel.
# TYPE rtsync_channel_sent_total counter
rtsync_channel_sent_total{channel="cmd"} 2
# HELP rtsync_channel_length Entries currently queued in the channel.
# TYPE rtsync_channel_length gauge
rtsync_channel_length{channel="cmd"} 1
# HELP rtsync_buffer_rejected_total Pushes rejected because the buffer was full.
# TYPE rtsync_buffer_rejected_total counter
rtsync_buffer_rejected_total{buffer="samples"} 1
# HELP rtsync_hub_delivered_total Frame deliveries to subscribers.
# TYPE rtsync_hub_delivered_total counter
rtsync_hub_delivered_total{hub="bus"} 1
# HELP rtsync_hub_subscribers Active hub subscriptions.
# TYPE rtsync_hub_subscribers gauge
rtsync_hub_subscribers{hub="bus"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"rtsync_channel_sent_total",
		"rtsync_channel_length",
		"rtsync_buffer_rejected_total",
		"rtsync_hub_delivered_total",
		"rtsync_hub_subscribers",
	))

	workers := `
# HELP rtsync_supervisor_workers Supervised workers by state.
# TYPE rtsync_supervisor_workers gauge
rtsync_supervisor_workers{state="panicked",supervisor="main"} 0
rtsync_supervisor_workers{state="running",supervisor="main"} 1
rtsync_supervisor_workers{state="starting",supervisor="main"} 0
rtsync_supervisor_workers{state="stopped",supervisor="main"} 0
rtsync_supervisor_workers{state="stopping",supervisor="main"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(workers), "rtsync_supervisor_workers"))
}

// TestCollector_Lint 指标命名符合 Prometheus 约定
func TestCollector_Lint(t *testing.T) {
	f := newFixture(t)
	problems, err := testutil.CollectAndLint(NewCollector(f.reg, "plc"))
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestSnapshotCollector(t *testing.T) {
	f := newFixture(t)
	mock := clock.NewMock()
	sc := NewSnapshotCollector(f.reg, mock)

	mock.Add(time.Minute)
	s := sc.Collect()
	assert.Equal(t, 1, s.Channels)
	assert.Equal(t, 1, s.Queued)
	assert.Equal(t, uint64(2), s.SentTotal)
	assert.InDelta(t, 2.0, s.SentPerMin, 1e-9)
	assert.InDelta(t, 1.0, s.ReceivedPerMin, 1e-9)
	assert.Equal(t, "cmd", s.FullestChannel)
	assert.InDelta(t, 0.25, s.FullestFillRate, 1e-9)
	assert.Equal(t, 2, s.Buffered)
	assert.Equal(t, uint64(1), s.RejectedTotal)
	assert.Equal(t, 1, s.Subscribers)
	assert.Equal(t, uint64(1), s.PublishedTotal)
	assert.Equal(t, 1, s.WorkersAlive)
	assert.Equal(t, int64(60), s.UptimeSeconds)
	assert.Same(t, s, sc.LastSnapshot())

	// 没有新流量时速率为 0
	mock.Add(time.Minute)
	s = sc.Collect()
	assert.Zero(t, s.SentPerMin)
}

func TestSnapshotCollector_StartStop(t *testing.T) {
	f := newFixture(t)
	mock := clock.NewMock()
	sc := NewSnapshotCollector(f.reg, mock)

	sc.Start(time.Second)
	sc.Start(time.Second) // 重复启动无效果
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return sc.LastSnapshot() != nil
	}, time.Second, 5*time.Millisecond)
	sc.Stop()
	sc.Stop()
}

func TestModule(t *testing.T) {
	promReg := prometheus.NewRegistry()
	cfg := config.NewConfig()
	cfg.Metrics.Namespace = "plc"

	var reg *Registry
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(func() prometheus.Registerer { return promReg }),
		Module,
		fx.Populate(&reg),
	)
	app.RequireStart()

	tx, _, err := pchannel.New[int](pchannel.WithCapacity(1))
	require.NoError(t, err)
	require.NoError(t, reg.AddChannel("cmd", tx))

	families, err := promReg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "plc_channel_capacity")

	app.RequireStop()
	families, err = promReg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}
