package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-rtsync/config"
)

// Config 指标配置
type Config struct {
	// Enabled 是否启用指标收集
	Enabled bool
	// Namespace Prometheus 命名空间
	Namespace string
	// SnapshotInterval 快照日志周期，0 表示不输出快照
	SnapshotInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Namespace: DefaultNamespace,
	}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled:          cfg.Metrics.Enabled,
		Namespace:        cfg.Metrics.Namespace,
		SnapshotInterval: cfg.Metrics.SnapshotInterval.Duration(),
	}
}

// Params 依赖参数
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Result 模块导出
type Result struct {
	fx.Out

	Registry  *Registry
	Collector *Collector
	Snapshots *SnapshotCollector
}

// Module 是 metrics 的 Fx 模块
//
// 提供 *Registry 供各组件登记数据源。注入了 prometheus.Registerer 时注册 Collector；
// 配置了快照周期时随应用启停周期输出快照日志。
var Module = fx.Module("metrics",
	fx.Provide(Provide),
)

// Provide 创建注册表与采集器
func Provide(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	reg := NewRegistry()
	col := NewCollector(reg, cfg.Namespace)
	snaps := NewSnapshotCollector(reg, nil)

	if cfg.Enabled && p.Registerer != nil {
		if err := p.Registerer.Register(col); err != nil {
			return Result{}, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				p.Registerer.Unregister(col)
				return nil
			},
		})
	}
	if cfg.Enabled && cfg.SnapshotInterval > 0 {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				snaps.Start(cfg.SnapshotInterval)
				return nil
			},
			OnStop: func(_ context.Context) error {
				snaps.Stop()
				return nil
			},
		})
	}
	return Result{Registry: reg, Collector: col, Snapshots: snaps}, nil
}
