package pchannel

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// ============================================================================
// 通道选项
// ============================================================================

// settings 通道构造参数
type settings struct {
	capacity int
	policy   types.Policy
	priority types.Priority
	lock     locking.Kind
	clock    clock.Clock
	name     string
}

func defaultSettings() settings {
	return settings{
		capacity: 0,
		policy:   types.PolicyAlways,
		lock:     locking.KindDefault,
		clock:    clock.New(),
	}
}

func (s *settings) validate() error {
	if s.capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", types.ErrInvalidConfig, s.capacity)
	}
	if !s.policy.IsValid() {
		return fmt.Errorf("%w: unknown policy %d", types.ErrInvalidConfig, int(s.policy))
	}
	if s.clock == nil {
		return fmt.Errorf("%w: nil clock", types.ErrInvalidConfig)
	}
	return nil
}

// Option 通道选项
type Option func(*settings)

// WithCapacity 设置容量，0 表示无界
func WithCapacity(n int) Option {
	return func(s *settings) { s.capacity = n }
}

// WithPolicy 设置默认投递策略
func WithPolicy(p types.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithPriority 设置默认优先级（负载未实现 HasPriority 时使用）
func WithPriority(p types.Priority) Option {
	return func(s *settings) { s.priority = p }
}

// WithLock 设置锁类型
func WithLock(kind locking.Kind) Option {
	return func(s *settings) { s.lock = kind }
}

// WithClock 设置时钟，测试中可注入 clock.Mock
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithName 设置通道名称，用于日志与指标
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// ============================================================================
// 发送选项
// ============================================================================

type sendSettings struct {
	policy      types.Policy
	hasPolicy   bool
	priority    types.Priority
	hasPriority bool
	kind        any
	deadline    time.Time
	ttl         time.Duration
}

// SendOption 单次发送选项
type SendOption func(*sendSettings)

// SendPolicy 覆盖本次发送的策略
func SendPolicy(p types.Policy) SendOption {
	return func(s *sendSettings) {
		s.policy = p
		s.hasPolicy = true
	}
}

// SendPriority 覆盖本次发送的优先级
func SendPriority(p types.Priority) SendOption {
	return func(s *sendSettings) {
		s.priority = p
		s.hasPriority = true
	}
}

// SendKind 指定显式种类键
func SendKind(k any) SendOption {
	return func(s *sendSettings) { s.kind = k }
}

// SendDeadline 指定绝对过期时间
func SendDeadline(t time.Time) SendOption {
	return func(s *sendSettings) { s.deadline = t }
}

// SendTTL 指定相对过期时长，从发送时刻起算
func SendTTL(d time.Duration) SendOption {
	return func(s *sendSettings) { s.ttl = d }
}
