package lifecycle

import (
	"context"

	"go.uber.org/fx"
)

// Module 返回 Fx 模块
//
// 提供 *Coordinator 单例并绑定到应用启停：
//   - 启动完成后进入 Active
//   - 停止时进入 Stopped，同时取消信标 context
//
// 启动前已越过 Active 的协调器保持原状态。
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(NewCoordinator),
		fx.Invoke(bindAppLifecycle),
	)
}

// bindAppLifecycle 把应用启停映射为状态推进
//
// Fx 按注册的逆序执行 OnStop，本钩子最先注册，因此 Stopped 在其它模块停止之后到达。
func bindAppLifecycle(lc fx.Lifecycle, c *Coordinator) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if c.State() >= StateActive {
				return nil
			}
			return c.AdvanceTo(StateActive)
		},
		OnStop: func(context.Context) error {
			logger.Debug("应用停止", "state", c.State())
			return c.AdvanceTo(StateStopped)
		},
	})
}
