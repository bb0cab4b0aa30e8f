package types

import "time"

// ============================================================================
//                              负载能力接口
// ============================================================================
//
// 核心组件从不检查负载内容，只通过以下可选接口读取元数据。
// 未实现的负载使用默认值：最低优先级、永不过期、通道默认策略、
// 以负载的动态类型作为同类键。

// HasPriority 负载自带优先级
type HasPriority interface {
	Priority() Priority
}

// Expires 负载可判断自身是否过期
type Expires interface {
	IsExpired(now time.Time) bool
}

// HasPolicy 负载自带投递策略
type HasPolicy interface {
	DeliveryPolicy() Policy
}

// HasKind 负载自带同类键（Single/Latest 策略使用）
type HasKind interface {
	KindKey() any
}

// Cloner 负载在多订阅者扇出时可以被复制
type Cloner[T any] interface {
	Clone() T
}
