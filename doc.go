// Package rtsync 提供面向实时控制程序的进程内同步层
//
// rtsync 围绕"按策略投递"构建：每个负载声明自己的投递策略与优先级，
// 通道在容量不足时据此决定阻塞、替换、淘汰还是丢弃，而不是一律阻塞。
//
// # 核心概念
//
//   - Channel: 有界的多生产者多消费者策略通道，提供阻塞与 context 两种前端
//   - Buffer: 生产者不阻塞的环形缓冲区，消费者批量取走
//   - Hub: 进程内发布/订阅，每个订阅者拥有独立的策略通道
//   - Builder: 实时线程构建器（调度类、优先级、CPU 亲和性、模拟模式）
//   - Supervisor: 按名称登记工作线程，协作式停止并在截止时间内等待
//   - Controller: 把 Supervisor、Hub 与生命周期状态组装在一起
//
// # 快速开始
//
//	import "github.com/dep2p/go-rtsync"
//
//	ctrl, err := rtsync.NewController[Frame](
//	    rtsync.WithPreset("simulated"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctrl.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	_ = ctrl.SpawnWorker(&Poller{})
//	_ = ctrl.RegisterSignals(5 * time.Second)
//	ctrl.Block()
//
// # 投递策略
//
//	┌────────────────┬───────────────────────────────────────────────┐
//	│ Always         │ 必须投递，通道满时阻塞发送方                  │
//	│ Latest         │ 通道满时替换同类条目或淘汰最旧的尽力条目      │
//	│ Optional       │ 通道满时静默丢弃                              │
//	│ Single         │ 同类只保留一个待处理条目，不可丢弃            │
//	│ SingleOptional │ 同类只保留一个，通道满时静默丢弃              │
//	└────────────────┴───────────────────────────────────────────────┘
//
// # 文件组织
//
//   - controller.go: Controller、Worker 与 Context
//   - controller_signals.go: SIGINT/SIGTERM 优雅关闭
//   - facade.go: 内部组件的类型别名与构造函数
//   - fx.go: Fx 应用组装
//   - options.go: Controller 选项
//   - errors.go: 公共错误
//   - version.go: 版本信息
package rtsync
