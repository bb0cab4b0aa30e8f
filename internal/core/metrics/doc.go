// Package metrics 导出同步层的运行指标
//
// 各组件在自己的 Stats 中维护计数器，本包只在采集时读取：
//
//	reg := metrics.NewRegistry()
//	_ = reg.AddChannel("commands", tx)
//	_ = reg.AddHub("bus", h)
//	_ = reg.AddSupervisor("main", sup)
//
//	prometheus.MustRegister(metrics.NewCollector(reg, ""))
//
// # 指标
//
//   - rtsync_channel_{length,capacity,sent_total,replaced_total,evicted_total,dropped_total,expired_total,received_total}
//   - rtsync_buffer_{length,capacity,pushed_total,evicted_total,rejected_total,drained_total}
//   - rtsync_hub_{subscribers,published_total,delivered_total,missed_total}
//   - rtsync_supervisor_{workers,panics_total}
//
// # 快照日志
//
// SnapshotCollector 周期性汇总所有数据源并输出一条日志，计算每分钟速率。
//
// 本包不提供 HTTP 导出端点。
package metrics
