package config

import (
	"fmt"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// ChannelConfig 策略通道默认配置
type ChannelConfig struct {
	// Capacity 通道容量，0 表示不限
	// 默认值: 64
	Capacity int `json:"capacity" env:"CAPACITY"`

	// Policy 未指定策略的负载使用的投递策略
	// 默认值: always
	Policy types.Policy `json:"policy" env:"POLICY"`

	// Lock 通道锁类型（default/pi）
	// 默认值: default
	Lock locking.Kind `json:"lock" env:"LOCK"`
}

// DefaultChannelConfig 返回默认通道配置
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Capacity: 64,
		Policy:   types.PolicyAlways,
		Lock:     locking.KindDefault,
	}
}

// Validate 验证通道配置
func (c ChannelConfig) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("channel capacity %d: %w", c.Capacity, types.ErrInvalidConfig)
	}
	if !c.Policy.IsValid() {
		return fmt.Errorf("channel policy %d: %w", int(c.Policy), types.ErrInvalidConfig)
	}
	return validateLock("channel", c.Lock)
}

// HubConfig Hub 默认配置
type HubConfig struct {
	// Capacity 订阅者通道默认容量
	// 默认值: 1024
	Capacity int `json:"capacity" env:"CAPACITY"`

	// Policy 订阅者默认投递策略
	// 默认值: always
	Policy types.Policy `json:"policy" env:"POLICY"`

	// Lock 订阅者通道锁类型
	// 默认值: default
	Lock locking.Kind `json:"lock" env:"LOCK"`
}

// DefaultHubConfig 返回默认 Hub 配置
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Capacity: 1024,
		Policy:   types.PolicyAlways,
		Lock:     locking.KindDefault,
	}
}

// Validate 验证 Hub 配置
func (c HubConfig) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("hub capacity %d: %w", c.Capacity, types.ErrInvalidConfig)
	}
	if !c.Policy.IsValid() {
		return fmt.Errorf("hub policy %d: %w", int(c.Policy), types.ErrInvalidConfig)
	}
	return validateLock("hub", c.Lock)
}

func validateLock(section string, k locking.Kind) error {
	if k != locking.KindDefault && k != locking.KindPriorityInheritance {
		return fmt.Errorf("%s lock %s: %w", section, k, types.ErrInvalidConfig)
	}
	return nil
}
