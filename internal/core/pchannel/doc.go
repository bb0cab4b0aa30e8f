// Package pchannel 实现基于策略队列的多生产者/多消费者通道
//
// 提供两种前端，共享同一个策略核心：
//   - New：阻塞式 Sender/Receiver，供实时线程使用
//   - NewAsync：协作式 AsyncSender/AsyncReceiver，等待可被 context 取消
//
// # 阻塞点
//
// 只有两处会等待：
//   - Always（及无可驱逐条目的 Single）发送时等待空间
//   - Recv 等待数据或超时
//
// 其它所有操作在有界临界区内完成后立即返回。
//
// # 快速开始
//
//	tx, rx, _ := pchannel.New[Frame](
//	    pchannel.WithCapacity(64),
//	    pchannel.WithPolicy(types.PolicyLatest),
//	)
//	defer tx.Close()
//
//	go func() {
//	    for {
//	        f, err := rx.Recv()
//	        if errors.Is(err, types.ErrClosed) {
//	            return
//	        }
//	        handle(f)
//	    }
//	}()
//
//	_ = tx.Send(frame, pchannel.SendPriority(5))
//
// # 锁
//
// 每个通道独占一把锁，WithLock(locking.KindPriorityInheritance) 选择优先级继承锁。
// 锁的选择只影响延迟特性，不改变任何策略语义。
//
// # 等待机制
//
// 等待者按 FIFO 排队，每个等待者持有一次性唤醒信号，没有轮询与自旋。
// 超时或取消的等待者若已收到唤醒，会把唤醒转交给下一个等待者。
package pchannel
