package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
//
// 示例 JSON:
//
//	{
//	  "channel": {"capacity": 16, "policy": "latest", "lock": "pi"},
//	  "thread": {"scheduling": "fifo", "priority": 80, "cpus": [2]},
//	  "supervisor": {"join_timeout": "2s"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ToJSON 把配置编码为带缩进的 JSON
func ToJSON(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// FromEnv 从默认配置开始，应用 RTSYNC_ 前缀的环境变量
func FromEnv() (*Config, error) {
	cfg := NewConfig()
	if err := LoadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv 用环境变量覆盖已有配置，未设置的变量保持原值
//
// 变量名由子配置前缀和字段名组成，例如：
//
//	RTSYNC_CHANNEL_CAPACITY=16
//	RTSYNC_CHANNEL_LOCK=pi
//	RTSYNC_THREAD_SCHEDULING=fifo
//	RTSYNC_THREAD_CPUS=2,3
//	RTSYNC_SUPERVISOR_JOIN_TIMEOUT=2s
//	RTSYNC_LOG_LEVEL=core/hub=debug,info
func LoadEnv(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "realtime": 优先级继承锁，FIFO 调度
//   - "simulated": 模拟线程模式，用于测试与开发机
//   - "minimal": 小容量通道，关闭指标
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "realtime":
		applyRealtimePreset(cfg)
	case "simulated":
		cfg.Thread.Simulated = true
	case "minimal":
		applyMinimalPreset(cfg)
	case "":
		// 空预设，不做任何操作
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
	return nil
}

// applyRealtimePreset 实时部署
//
// 锁持有方继承等待方的优先级，避免优先级反转。
func applyRealtimePreset(cfg *Config) {
	cfg.Channel.Lock = locking.KindPriorityInheritance
	cfg.Hub.Lock = locking.KindPriorityInheritance
	cfg.Thread.Simulated = false
	if !cfg.Thread.Scheduling.IsRealtime() {
		cfg.Thread.Scheduling = types.SchedulingFIFO
		cfg.Thread.Priority = 50
	}
}

func applyMinimalPreset(cfg *Config) {
	cfg.Channel.Capacity = 8
	cfg.Hub.Capacity = 64
	cfg.Metrics.Enabled = false
	cfg.Metrics.SnapshotInterval = 0
}

// CloneConfig 克隆配置
//
// 创建配置的深拷贝，用于安全地修改配置而不影响原始配置。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.Thread.CPUs = append([]int(nil), cfg.Thread.CPUs...)
	return &cloned
}
