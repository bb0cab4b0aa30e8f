package hub

import (
	"reflect"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// ============================================================================
// Hub 选项
// ============================================================================

const (
	// DefaultCapacity 订阅通道默认容量
	DefaultCapacity = 1024
	// DefaultSubscriberPriority 订阅者默认分发优先级
	DefaultSubscriberPriority = 100
)

type settings struct {
	capacity int
	policy   types.Policy
	lock     locking.Kind
	clock    clock.Clock
}

func defaultSettings() settings {
	return settings{
		capacity: DefaultCapacity,
		policy:   types.PolicyAlways,
		lock:     locking.KindDefault,
		clock:    clock.New(),
	}
}

// Option Hub 选项
type Option func(*settings)

// WithCapacity 设置订阅通道默认容量
func WithCapacity(n int) Option {
	return func(s *settings) { s.capacity = n }
}

// WithPolicy 设置订阅默认策略
func WithPolicy(p types.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithLock 设置订阅通道锁类型
func WithLock(kind locking.Kind) Option {
	return func(s *settings) { s.lock = kind }
}

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// ============================================================================
// 订阅选项
// ============================================================================

type subSettings struct {
	name     string
	policy   types.Policy
	capacity int
	priority int
	types    []reflect.Type
	match    any // func(T) bool
}

// SubscribeOption 订阅选项
type SubscribeOption func(*subSettings)

// Name 设置订阅者名称，非空名称在 Hub 内唯一
func Name(name string) SubscribeOption {
	return func(s *subSettings) { s.name = name }
}

// Policy 设置订阅策略
func Policy(p types.Policy) SubscribeOption {
	return func(s *subSettings) { s.policy = p }
}

// Capacity 设置订阅通道容量
func Capacity(n int) SubscribeOption {
	return func(s *subSettings) { s.capacity = n }
}

// Priority 设置分发顺序，值越大越先收到
func Priority(p int) SubscribeOption {
	return func(s *subSettings) { s.priority = p }
}

// Types 只接收指定动态类型的帧
//
// 接口类型表示接收所有实现该接口的帧。
func Types(ts ...reflect.Type) SubscribeOption {
	return func(s *subSettings) { s.types = append(s.types, ts...) }
}

// OfType 只接收类型为 F 的帧
func OfType[F any]() SubscribeOption {
	return Types(reflect.TypeOf((*F)(nil)).Elem())
}

// Match 只接收满足谓词的帧，fn 的参数类型必须与 Hub 的帧类型一致
func Match[T any](fn func(T) bool) SubscribeOption {
	return func(s *subSettings) { s.match = fn }
}
