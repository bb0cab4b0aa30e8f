package rtsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-rtsync/config"
	"github.com/dep2p/go-rtsync/internal/core/hub"
	"github.com/dep2p/go-rtsync/internal/core/lifecycle"
	"github.com/dep2p/go-rtsync/internal/core/metrics"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
	"github.com/dep2p/go-rtsync/pkg/lib/log"
)

// metricsSourceName 控制器自身的 Hub 与监督器在指标中的名称
const metricsSourceName = "controller"

var fxLogger = log.Logger("rtsync/fx")

// buildFxApp 构建 Fx 应用
//
// 组装所有内部模块：
//   - 核心模块：必须加载（Lifecycle, Supervisor, Hub）
//   - 条件模块：根据配置加载（Metrics）
//   - 扩展模块：用户自定义 Fx 选项
//
// 停止顺序与注册顺序相反：Hub 关闭、工作线程汇合，最后生命周期进入 Stopped。
func buildFxApp[D any](cfg *config.Config, o *options, c *Controller[D]) *fx.App {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置与生命周期
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),

		// 生命周期协调器（全局单例，工作线程据此判断是否在线）
		lifecycle.Module(),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 监督器
	// ════════════════════════════════════════════════════════════════════════
	supOpts := []supervisor.Option{supervisor.WithSimulated(cfg.Thread.Simulated)}
	if o.clock != nil {
		supOpts = append(supOpts, supervisor.WithClock(o.clock))
	}
	if o.onEvent != nil {
		supOpts = append(supOpts, supervisor.WithEventHandler(o.onEvent))
	}
	modules = append(modules, supervisor.Module(cfg.Supervisor.JoinTimeout.Duration(), supOpts...))

	// ════════════════════════════════════════════════════════════════════════
	// 3. Hub
	// ════════════════════════════════════════════════════════════════════════
	hubOpts := []hub.Option{
		hub.WithCapacity(cfg.Hub.Capacity),
		hub.WithPolicy(cfg.Hub.Policy),
		hub.WithLock(cfg.Hub.Lock),
	}
	if o.clock != nil {
		hubOpts = append(hubOpts, hub.WithClock(o.clock))
	}
	hubOpts = append(hubOpts, o.hubOptions...)
	modules = append(modules, hub.Module[D](hubOpts...))

	// ════════════════════════════════════════════════════════════════════════
	// 4. 指标（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.Metrics.Enabled {
		modules = append(modules, metrics.Module)
		if o.registerer != nil {
			r := o.registerer
			modules = append(modules, fx.Provide(func() prometheus.Registerer { return r }))
		}
		modules = append(modules, fx.Invoke(registerMetricsSources[D]))
		fxLogger.Debug("已加载 metrics 模块", "namespace", cfg.Metrics.Namespace)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. Controller 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectControllerComponents(c)))

	// ════════════════════════════════════════════════════════════════════════
	// 7. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// controllerInjectParams Controller 组件注入参数
type controllerInjectParams[D any] struct {
	fx.In

	Coordinator *lifecycle.Coordinator
	Supervisor  *supervisor.Supervisor
	Hub         *hub.Hub[D]

	// 可选组件
	Metrics *metrics.Registry `optional:"true"`
}

// injectControllerComponents 创建 Controller 组件注入函数
func injectControllerComponents[D any](c *Controller[D]) interface{} {
	return func(params controllerInjectParams[D]) {
		c.state = params.Coordinator
		c.supervisor = params.Supervisor
		c.hub = params.Hub
		c.metrics = params.Metrics
	}
}

// metricsSourcesParams 指标数据源参数
type metricsSourcesParams[D any] struct {
	fx.In

	Registry   *metrics.Registry
	Supervisor *supervisor.Supervisor
	Hub        *hub.Hub[D]
}

// registerMetricsSources 把控制器自身的 Hub 与监督器登记为指标数据源
func registerMetricsSources[D any](p metricsSourcesParams[D]) error {
	if err := p.Registry.AddHub(metricsSourceName, p.Hub); err != nil {
		return err
	}
	return p.Registry.AddSupervisor(metricsSourceName, p.Supervisor)
}
