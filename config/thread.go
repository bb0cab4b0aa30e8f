package config

import (
	"fmt"
	"time"

	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// ThreadConfig 实时线程配置
//
// 对应线程构建器的 {scheduling, priority, cpus, simulated}。
type ThreadConfig struct {
	// Simulated 模拟模式，只校验不调用调度系统调用
	// 默认值: false
	Simulated bool `json:"simulated" env:"SIMULATED"`

	// Scheduling 调度类（other/fifo/rr/batch/idle）
	// 默认值: other
	Scheduling types.Scheduling `json:"scheduling" env:"SCHEDULING"`

	// Priority 实时优先级，FIFO/RR 为 1..99，其它调度类为 0
	// 默认值: 0
	Priority int `json:"priority" env:"PRIORITY"`

	// CPUs CPU 亲和性，空表示不限制
	CPUs []int `json:"cpus,omitempty" env:"CPUS" envSeparator:","`
}

// DefaultThreadConfig 返回默认线程配置
func DefaultThreadConfig() ThreadConfig {
	return ThreadConfig{
		Scheduling: types.SchedulingOther,
	}
}

// Params 转换为线程调度参数
func (c ThreadConfig) Params() rtthread.Params {
	return rtthread.Params{
		Scheduling: c.Scheduling,
		Priority:   c.Priority,
		CPUs:       append([]int(nil), c.CPUs...),
	}
}

// Validate 验证线程配置，模拟模式使用相同的校验
func (c ThreadConfig) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("thread: %w", err)
	}
	return nil
}

// SupervisorConfig 监督器配置
type SupervisorConfig struct {
	// JoinTimeout 停止时等待工作线程退出的时长
	// 默认值: 5s
	JoinTimeout Duration `json:"join_timeout" env:"JOIN_TIMEOUT"`

	// HandleSignals 是否在 SIGINT/SIGTERM 时优雅关闭
	// 默认值: true
	HandleSignals bool `json:"handle_signals" env:"HANDLE_SIGNALS"`
}

// DefaultSupervisorConfig 返回默认监督器配置
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		JoinTimeout:   Duration(5 * time.Second),
		HandleSignals: true,
	}
}

// Validate 验证监督器配置
func (c SupervisorConfig) Validate() error {
	if c.JoinTimeout < 0 {
		return fmt.Errorf("supervisor join timeout %s: %w", c.JoinTimeout, types.ErrInvalidConfig)
	}
	return nil
}
