// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持从 RTSYNC_ 前缀的环境变量覆盖
//   - 支持预设配置（realtime/simulated/minimal）
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Channel.Lock = locking.KindPriorityInheritance
//
//	// 应用预设到现有配置
//	config.ApplyPreset(cfg, "simulated")
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 环境变量覆盖，例如 RTSYNC_THREAD_SIMULATED=true
//	err = config.LoadEnv(cfg)
package config

// EnvPrefix 环境变量前缀
const EnvPrefix = "RTSYNC_"

// Config 是 rtsync 的完整配置结构
//
// 配置按照功能模块组织：
//   - Channel: 策略通道默认值
//   - Hub: 发布/订阅默认值
//   - Thread: 实时线程调度参数
//   - Supervisor: 工作线程监督与关闭
//   - Metrics: 指标采集
//   - Log: 日志
//
// 锁类型与调度参数属于部署配置，只影响时序，不改变行为。
type Config struct {
	// Channel 通道配置
	Channel ChannelConfig `json:"channel" envPrefix:"CHANNEL_"`

	// Hub 发布/订阅配置
	Hub HubConfig `json:"hub" envPrefix:"HUB_"`

	// Thread 实时线程配置
	Thread ThreadConfig `json:"thread" envPrefix:"THREAD_"`

	// Supervisor 监督器配置
	Supervisor SupervisorConfig `json:"supervisor" envPrefix:"SUPERVISOR_"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" envPrefix:"METRICS_"`

	// Log 日志配置
	Log LogConfig `json:"log" envPrefix:"LOG_"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Channel:    DefaultChannelConfig(),
		Hub:        DefaultHubConfig(),
		Thread:     DefaultThreadConfig(),
		Supervisor: DefaultSupervisorConfig(),
		Metrics:    DefaultMetricsConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
func (c *Config) Validate() error {
	if err := c.Channel.Validate(); err != nil {
		return err
	}
	if err := c.Hub.Validate(); err != nil {
		return err
	}
	if err := c.Thread.Validate(); err != nil {
		return err
	}
	if err := c.Supervisor.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
