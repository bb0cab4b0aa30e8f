package config

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-rtsync/pkg/lib/log"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用指标采集
	// 默认值: true
	Enabled bool `json:"enabled" env:"ENABLED"`

	// Namespace Prometheus 命名空间
	// 默认值: rtsync
	Namespace string `json:"namespace" env:"NAMESPACE"`

	// SnapshotInterval 快照日志周期，0 表示不输出
	// 默认值: 0
	SnapshotInterval Duration `json:"snapshot_interval" env:"SNAPSHOT_INTERVAL"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "rtsync",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("metrics snapshot interval %s: %w", c.SnapshotInterval, types.ErrInvalidConfig)
	}
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别配置，格式: component=level,...,default
	// 示例: core/hub=debug,warn
	// 默认值: info
	Level string `json:"level" env:"LEVEL"`

	// Format 输出格式（text/json）
	// 默认值: text
	Format string `json:"format" env:"FORMAT"`

	// AddSource 是否添加源码位置
	AddSource bool `json:"add_source" env:"ADD_SOURCE"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log format %q: %w", c.Format, types.ErrInvalidConfig)
	}
	return nil
}

// Apply 按配置安装默认日志 handler
func (c LogConfig) Apply() {
	def, levels := log.ParseLevels(c.Level)
	log.Configure(log.Config{
		DefaultLevel:    def,
		ComponentLevels: levels,
		Format:          log.ParseFormat(c.Format),
		AddSource:       c.AddSource,
	})
}
