// Package types 定义 rtsync 的公共基础类型
//
// 本包是最底层的类型定义，不依赖任何内部包：
//   - Policy: 每次插入携带的投递策略
//   - Priority: 条目优先级（数值越大越先投递）
//   - Scheduling: 实时线程调度策略
//   - WorkerState: 工作线程生命周期状态
//   - 负载能力接口: HasPriority / Expires / HasPolicy / HasKind / Cloner
//   - 公共错误: ErrFull / ErrClosed / ErrTimeout / ErrEmpty / ErrDuplicateName ...
//
// # 策略语义
//
//	策略             同类条目存在      队列已满且无同类
//	Always           -                 阻塞等待空间（通道层）
//	Latest           原位替换          淘汰最低优先级/最旧条目
//	Optional         -                 静默丢弃
//	Single           替换              淘汰非 Single 条目，不可丢弃
//	SingleOptional   替换              静默丢弃
package types
