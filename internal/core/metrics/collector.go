package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// DefaultNamespace 指标命名空间
const DefaultNamespace = "rtsync"

// Collector 把 Registry 中的数据源导出为 Prometheus 指标
//
// 指标在 Collect 时从各数据源的 Stats 计算，不持有任何计数器。
// 本包不提供 HTTP 导出端点，由调用方把 Collector 注册到自己的 Registerer。
type Collector struct {
	reg *Registry

	chanLen      *prometheus.Desc
	chanCap      *prometheus.Desc
	chanSent     *prometheus.Desc
	chanReplaced *prometheus.Desc
	chanEvicted  *prometheus.Desc
	chanDropped  *prometheus.Desc
	chanExpired  *prometheus.Desc
	chanRecv     *prometheus.Desc

	bufLen      *prometheus.Desc
	bufCap      *prometheus.Desc
	bufPushed   *prometheus.Desc
	bufEvicted  *prometheus.Desc
	bufRejected *prometheus.Desc
	bufDrained  *prometheus.Desc

	hubSubs      *prometheus.Desc
	hubPublished *prometheus.Desc
	hubDelivered *prometheus.Desc
	hubMissed    *prometheus.Desc

	workers *prometheus.Desc
	panics  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建采集器，namespace 为空时使用 DefaultNamespace
func NewCollector(reg *Registry, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Collector{
		reg: reg,

		chanLen:      desc("channel", "length", "Entries currently queued in the channel.", "channel"),
		chanCap:      desc("channel", "capacity", "Channel capacity, 0 means unbounded.", "channel"),
		chanSent:     desc("channel", "sent_total", "Entries admitted into the channel.", "channel"),
		chanReplaced: desc("channel", "replaced_total", "Entries that replaced a pending entry of the same kind.", "channel"),
		chanEvicted:  desc("channel", "evicted_total", "Entries evicted to make room.", "channel"),
		chanDropped:  desc("channel", "dropped_total", "Entries rejected by their delivery policy.", "channel"),
		chanExpired:  desc("channel", "expired_total", "Entries discarded as expired.", "channel"),
		chanRecv:     desc("channel", "received_total", "Entries delivered to receivers.", "channel"),

		bufLen:      desc("buffer", "length", "Items currently held in the buffer.", "buffer"),
		bufCap:      desc("buffer", "capacity", "Buffer capacity.", "buffer"),
		bufPushed:   desc("buffer", "pushed_total", "Items pushed into the buffer.", "buffer"),
		bufEvicted:  desc("buffer", "evicted_total", "Items overwritten by forced pushes.", "buffer"),
		bufRejected: desc("buffer", "rejected_total", "Pushes rejected because the buffer was full.", "buffer"),
		bufDrained:  desc("buffer", "drained_total", "Items taken out of the buffer.", "buffer"),

		hubSubs:      desc("hub", "subscribers", "Active hub subscriptions.", "hub"),
		hubPublished: desc("hub", "published_total", "Frames published to the hub.", "hub"),
		hubDelivered: desc("hub", "delivered_total", "Frame deliveries to subscribers.", "hub"),
		hubMissed:    desc("hub", "missed_total", "Frame deliveries missed by full subscribers.", "hub"),

		workers: desc("supervisor", "workers", "Supervised workers by state.", "supervisor", "state"),
		panics:  desc("supervisor", "panics_total", "Worker panics captured at the thread boundary.", "supervisor"),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.chanLen, c.chanCap, c.chanSent, c.chanReplaced, c.chanEvicted, c.chanDropped, c.chanExpired, c.chanRecv,
		c.bufLen, c.bufCap, c.bufPushed, c.bufEvicted, c.bufRejected, c.bufDrained,
		c.hubSubs, c.hubPublished, c.hubDelivered, c.hubMissed,
		c.workers, c.panics,
	} {
		ch <- d
	}
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	channels, buffers, hubs, sups := c.reg.snapshot()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	for _, n := range channels {
		s := n.src.Stats()
		gauge(c.chanLen, float64(s.Len), n.name)
		gauge(c.chanCap, float64(s.Cap), n.name)
		counter(c.chanSent, s.Sent, n.name)
		counter(c.chanReplaced, s.Replaced, n.name)
		counter(c.chanEvicted, s.Evicted, n.name)
		counter(c.chanDropped, s.Dropped, n.name)
		counter(c.chanExpired, s.Expired, n.name)
		counter(c.chanRecv, s.Received, n.name)
	}

	for _, n := range buffers {
		s := n.src.Stats()
		gauge(c.bufLen, float64(s.Len), n.name)
		gauge(c.bufCap, float64(s.Cap), n.name)
		counter(c.bufPushed, s.Pushed, n.name)
		counter(c.bufEvicted, s.Evicted, n.name)
		counter(c.bufRejected, s.Rejected, n.name)
		counter(c.bufDrained, s.Drained, n.name)
	}

	for _, n := range hubs {
		s := n.src.Stats()
		gauge(c.hubSubs, float64(s.Subscribers), n.name)
		counter(c.hubPublished, s.Published, n.name)
		counter(c.hubDelivered, s.Delivered, n.name)
		counter(c.hubMissed, s.Missed, n.name)
	}

	for _, n := range sups {
		counts := make(map[types.WorkerState]int)
		for _, w := range n.src.Workers() {
			counts[w.State]++
		}
		for st := types.WorkerStarting; st <= types.WorkerPanicked; st++ {
			gauge(c.workers, float64(counts[st]), n.name, st.String())
		}
		counter(c.panics, uint64(len(n.src.Panics())), n.name)
	}
}
