package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dep2p/go-rtsync/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// buildConfig 按优先级合并配置
//
// 预设作为基线，配置文件覆盖预设，RTSYNC_ 环境变量覆盖配置文件，
// 显式给出的命令行参数最后生效。
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()

	if err := config.ApplyPreset(cfg, *preset); err != nil {
		return nil, err
	}

	if *configFile != "" {
		if err := loadConfigFile(*configFile, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
	}

	if err := config.LoadEnv(cfg); err != nil {
		return nil, err
	}

	if isFlagSet("simulated") {
		cfg.Thread.Simulated = *simulated
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 把 JSON 文件叠加到已有配置上，文件中未出现的字段保持原值
func loadConfigFile(path string, cfg *config.Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}
