package metrics

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/pkg/lib/log"
	"github.com/dep2p/go-rtsync/pkg/types"
)

var logger = log.Logger("core/metrics")

// DefaultSnapshotInterval 默认快照周期
const DefaultSnapshotInterval = 30 * time.Second

// Snapshot 同步层指标快照
//
// 周期性汇总所有登记的数据源，输出到日志，便于在没有 Prometheus 的部署中分析。
type Snapshot struct {
	// 时间信息
	Timestamp     time.Time     `json:"timestamp"`
	UptimeSeconds int64         `json:"uptimeSeconds"`
	Interval      time.Duration `json:"interval"`

	// 通道汇总
	Channels        int     `json:"channels"`
	Queued          int     `json:"queued"`
	SentTotal       uint64  `json:"sentTotal"`
	ReceivedTotal   uint64  `json:"receivedTotal"`
	DroppedTotal    uint64  `json:"droppedTotal"`
	EvictedTotal    uint64  `json:"evictedTotal"`
	ExpiredTotal    uint64  `json:"expiredTotal"`
	SentPerMin      float64 `json:"sentPerMin"`
	ReceivedPerMin  float64 `json:"receivedPerMin"`
	FullestChannel  string  `json:"fullestChannel,omitempty"`
	FullestFillRate float64 `json:"fullestFillRate"`

	// 缓冲区汇总
	Buffers       int    `json:"buffers"`
	Buffered      int    `json:"buffered"`
	RejectedTotal uint64 `json:"rejectedTotal"`

	// Hub 汇总
	Hubs           int     `json:"hubs"`
	Subscribers    int     `json:"subscribers"`
	PublishedTotal uint64  `json:"publishedTotal"`
	MissedTotal    uint64  `json:"missedTotal"`
	MissedPerMin   float64 `json:"missedPerMin"`

	// 工作线程
	WorkersAlive    int `json:"workersAlive"`
	WorkersPanicked int `json:"workersPanicked"`

	// 资源统计
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heapAllocMB"`
}

// SnapshotCollector 周期快照收集器
type SnapshotCollector struct {
	reg *Registry
	clk clock.Clock

	mu        sync.RWMutex
	startTime time.Time

	// 上次快照时的值（用于计算速率）
	lastSnapshot     *Snapshot
	lastSent         uint64
	lastReceived     uint64
	lastMissed       uint64
	lastSnapshotTime time.Time

	// 控制
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSnapshotCollector 创建快照收集器，clk 为 nil 时使用系统时钟
func NewSnapshotCollector(reg *Registry, clk clock.Clock) *SnapshotCollector {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &SnapshotCollector{
		reg:              reg,
		clk:              clk,
		startTime:        now,
		lastSnapshotTime: now,
	}
}

// Start 启动周期性快照
func (c *SnapshotCollector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return // 已经启动
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.lastSnapshotTime = c.clk.Now()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.snapshotLoop(ctx, interval)

	logger.Info("指标快照收集器已启动", "interval", interval)
}

// Stop 停止快照收集
func (c *SnapshotCollector) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *SnapshotCollector) snapshotLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := c.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logSnapshot(c.Collect())
		}
	}
}

// Collect 收集当前快照
func (c *SnapshotCollector) Collect() *Snapshot {
	now := c.clk.Now()

	c.mu.RLock()
	lastTime := c.lastSnapshotTime
	lastSent, lastRecv, lastMissed := c.lastSent, c.lastReceived, c.lastMissed
	c.mu.RUnlock()

	elapsed := now.Sub(lastTime)
	elapsedMinutes := elapsed.Minutes()
	if elapsedMinutes <= 0 {
		elapsedMinutes = 1.0 / 60.0 // 最小 1 秒
	}

	s := &Snapshot{
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(c.startTime).Seconds()),
		Interval:      elapsed,
	}

	channels, buffers, hubs, sups := c.reg.snapshot()

	s.Channels = len(channels)
	for _, n := range channels {
		st := n.src.Stats()
		s.Queued += st.Len
		s.SentTotal += st.Sent
		s.ReceivedTotal += st.Received
		s.DroppedTotal += st.Dropped
		s.EvictedTotal += st.Evicted
		s.ExpiredTotal += st.Expired
		if st.Cap > 0 {
			if fill := float64(st.Len) / float64(st.Cap); fill > s.FullestFillRate {
				s.FullestFillRate = fill
				s.FullestChannel = n.name
			}
		}
	}

	s.Buffers = len(buffers)
	for _, n := range buffers {
		st := n.src.Stats()
		s.Buffered += st.Len
		s.RejectedTotal += st.Rejected
	}

	s.Hubs = len(hubs)
	for _, n := range hubs {
		st := n.src.Stats()
		s.Subscribers += st.Subscribers
		s.PublishedTotal += st.Published
		s.MissedTotal += st.Missed
	}

	for _, n := range sups {
		for _, w := range n.src.Workers() {
			switch {
			case w.State == types.WorkerPanicked:
				s.WorkersPanicked++
			case !w.State.IsFinished():
				s.WorkersAlive++
			}
		}
	}

	s.SentPerMin = perMin(s.SentTotal, lastSent, elapsedMinutes)
	s.ReceivedPerMin = perMin(s.ReceivedTotal, lastRecv, elapsedMinutes)
	s.MissedPerMin = perMin(s.MissedTotal, lastMissed, elapsedMinutes)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAllocMB = float64(memStats.HeapAlloc) / 1024 / 1024

	c.mu.Lock()
	c.lastSnapshot = s
	c.lastSnapshotTime = now
	c.lastSent = s.SentTotal
	c.lastReceived = s.ReceivedTotal
	c.lastMissed = s.MissedTotal
	c.mu.Unlock()

	return s
}

// perMin 计数器被移除的数据源拉低时按 0 计
func perMin(cur, last uint64, minutes float64) float64 {
	if cur < last {
		return 0
	}
	return float64(cur-last) / minutes
}

func (c *SnapshotCollector) logSnapshot(s *Snapshot) {
	logger.Info("同步层指标快照",
		"uptime", s.UptimeSeconds,
		// 通道
		"channels", s.Channels,
		"queued", s.Queued,
		"sentPerMin", formatFloat(s.SentPerMin),
		"receivedPerMin", formatFloat(s.ReceivedPerMin),
		"dropped", s.DroppedTotal,
		"fullest", s.FullestChannel,
		"fullestFill", formatFloat(s.FullestFillRate),
		// Hub
		"subscribers", s.Subscribers,
		"missedPerMin", formatFloat(s.MissedPerMin),
		// 工作线程
		"workersAlive", s.WorkersAlive,
		"workersPanicked", s.WorkersPanicked,
		// 资源
		"goroutines", s.Goroutines,
		"heapAllocMB", formatFloat(s.HeapAllocMB),
	)
}

// LastSnapshot 获取最新快照
func (c *SnapshotCollector) LastSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSnapshot
}

// formatFloat 保留 2 位小数
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
