package rtsync

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-rtsync/config"
	"github.com/dep2p/go-rtsync/internal/core/hub"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
)

// Option 控制器配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置，为 nil 时使用默认配置
	config *config.Config

	// 预设名称
	preset string

	// 是否读取 RTSYNC_ 环境变量
	fromEnv bool

	// 覆盖项
	simulated *bool
	signals   *bool

	// 时钟（测试用）
	clock clock.Clock

	// 指标注册器
	registerer prometheus.Registerer

	// 工作线程状态事件
	onEvent func(supervisor.Event)

	// 用户扩展
	hubOptions    []hub.Option
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// toInternalConfig 转换为内部配置
//
// 应用顺序：基础配置 → 预设 → 环境变量 → 显式覆盖。
func (o *options) toInternalConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if o.config != nil {
		cfg = config.CloneConfig(o.config)
	}

	if err := config.ApplyPreset(cfg, o.preset); err != nil {
		return nil, err
	}

	if o.fromEnv {
		if err := config.LoadEnv(cfg); err != nil {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}

	if o.simulated != nil {
		cfg.Thread.Simulated = *o.simulated
	}
	if o.signals != nil {
		cfg.Supervisor.HandleSignals = *o.signals
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用给定配置作为基础，配置会被复制
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用预设（realtime/simulated/minimal）
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// WithEnv 读取 RTSYNC_ 前缀的环境变量覆盖配置
func WithEnv() Option {
	return func(o *options) error {
		o.fromEnv = true
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              覆盖项
// ════════════════════════════════════════════════════════════════════════════

// WithSimulated 模拟模式：校验调度参数但不调用调度系统调用
func WithSimulated(on bool) Option {
	return func(o *options) error {
		o.simulated = &on
		return nil
	}
}

// WithSignals Start 时是否自动注册 SIGINT/SIGTERM 处理
func WithSignals(on bool) Option {
	return func(o *options) error {
		o.signals = &on
		return nil
	}
}

// WithClock 设置监督器与 Hub 使用的时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("clock is nil")
		}
		o.clock = c
		return nil
	}
}

// WithRegisterer 把同步层指标注册到 r
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = r
		return nil
	}
}

// WithEventHandler 接收工作线程状态变化事件，回调在锁外同步执行
func WithEventHandler(fn func(WorkerEvent)) Option {
	return func(o *options) error {
		o.onEvent = fn
		return nil
	}
}

// WithHubOptions 追加 Hub 选项，覆盖配置中的默认值
func WithHubOptions(opts ...HubOption) Option {
	return func(o *options) error {
		o.hubOptions = append(o.hubOptions, opts...)
		return nil
	}
}

// WithFxOptions 追加用户自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
