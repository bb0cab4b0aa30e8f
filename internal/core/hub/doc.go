// Package hub 实现进程内发布/订阅路由
//
// 发布方推送一次帧，每个匹配的订阅者通过自己的策略通道独立接收。
//
// # 快速开始
//
//	h := hub.New[Frame](hub.WithCapacity(256))
//	defer h.Close()
//
//	plot, _ := h.Subscribe(
//	    hub.Name("plot"),
//	    hub.Policy(types.PolicyOptional),
//	    hub.OfType[*Sample](),
//	)
//	defer plot.Close()
//
//	_ = h.Publish(&Sample{...})
//	f, err := plot.Recv()
//
// 需要在 context 上等待的订阅者使用 SubscribeAsync：
//
//	c, _ := h.SubscribeAsync(hub.Name("uplink"))
//	f, err := c.Recv(ctx)
//
// # 分发
//
//   - Publish 在调用方栈上执行，不持有 Hub 级别的锁
//   - 订阅列表为写时复制快照，按订阅优先级降序分发
//   - 每个订阅者的过滤器每帧只求值一次
//   - 每个订阅者用非阻塞准入：满了就错过该帧，计入 Missed
//   - 实现 types.Cloner 的帧为除最后一个订阅者外的每个订阅者克隆一次
//
// # Fx 模块
//
//	app := fx.New(
//	    hub.Module[Frame](hub.WithCapacity(256)),
//	    fx.Invoke(func(h *hub.Hub[Frame]) { ... }),
//	)
package hub
