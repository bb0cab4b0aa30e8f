package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ValidateAll 校验全部子配置并汇总所有错误
//
// 与 Config.Validate 不同，遇到第一个错误不会停止，适合在部署前一次性报告。
// 返回的错误可用 multierr.Errors 拆分。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return multierr.Combine(
		c.Channel.Validate(),
		c.Hub.Validate(),
		c.Thread.Validate(),
		c.Supervisor.Validate(),
		c.Metrics.Validate(),
		c.Log.Validate(),
	)
}

// MustValidate 校验配置，失败时 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
