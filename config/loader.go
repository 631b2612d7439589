/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-10 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-21 17:02:55
 * @FilePath: \go-ipopt\config\loader.go
 * @Description: 配置加载器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"gopkg.in/yaml.v3"
)

// Loader 配置加载器
type Loader struct{}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromFile 从文件加载配置
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// filepath.Ext 返回 ".yaml" / ".yml" / ".json"，去掉前缀点号
	ext := filepath.Ext(path)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	return l.LoadFromBytes(data, ext)
}

// LoadFromBytes 从字节数据加载配置（支持 YAML 和 JSON）
func (l *Loader) LoadFromBytes(data []byte, format string) (*Config, error) {
	config := DefaultConfig()

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析YAML配置失败: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析JSON配置失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置格式: %s (仅支持yaml/yml/json)", format)
	}

	return l.processConfig(config)
}

// processConfig 处理配置（默认值回填、验证）
func (l *Loader) processConfig(config *Config) (*Config, error) {
	l.fillDefaults(config)

	if err := l.validate(config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return config, nil
}

// fillDefaults 对零值字段回填默认值（用户显式配置优先）
func (l *Loader) fillDefaults(config *Config) {
	defaults := DefaultConfig()

	config.Mode = mathx.IfEmpty(config.Mode, defaults.Mode)
	config.LogLevel = mathx.IfEmpty(config.LogLevel, defaults.LogLevel)

	config.Scan.Binary = mathx.IfEmpty(config.Scan.Binary, defaults.Scan.Binary)
	config.Scan.ResultFile = mathx.IfEmpty(config.Scan.ResultFile, defaults.Scan.ResultFile)
	config.Scan.PreIPFile = mathx.IfEmpty(config.Scan.PreIPFile, defaults.Scan.PreIPFile)
	config.Scan.ScreenMin = mathx.IfNotZero(config.Scan.ScreenMin, defaults.Scan.ScreenMin)
	config.Scan.RefineMax = mathx.IfNotZero(config.Scan.RefineMax, defaults.Scan.RefineMax)

	config.Xray.Binary = mathx.IfEmpty(config.Xray.Binary, defaults.Xray.Binary)
	config.Xray.MainConfig = mathx.IfEmpty(config.Xray.MainConfig, defaults.Xray.MainConfig)
	config.Xray.TempDir = mathx.IfEmpty(config.Xray.TempDir, defaults.Xray.TempDir)
	config.Xray.LogFile = mathx.IfEmpty(config.Xray.LogFile, defaults.Xray.LogFile)
	config.Xray.PortMin = mathx.IfNotZero(config.Xray.PortMin, defaults.Xray.PortMin)
	config.Xray.PortMax = mathx.IfNotZero(config.Xray.PortMax, defaults.Xray.PortMax)
	config.Xray.SettleMillis = mathx.IfNotZero(config.Xray.SettleMillis, defaults.Xray.SettleMillis)
	config.Xray.GraceMillis = mathx.IfNotZero(config.Xray.GraceMillis, defaults.Xray.GraceMillis)

	fillStage(&config.Coarse, &defaults.Coarse)
	fillStage(&config.Elite, &defaults.Elite)
	fillStage(&config.Baseline, &defaults.Baseline)

	config.Thresholds.MinImprovement = mathx.IfNotZero(config.Thresholds.MinImprovement, defaults.Thresholds.MinImprovement)
	config.Thresholds.MinImprovementPct = mathx.IfNotZero(config.Thresholds.MinImprovementPct, defaults.Thresholds.MinImprovementPct)

	config.Pacing.ProbeDelay = mathx.IfNotZero(config.Pacing.ProbeDelay, defaults.Pacing.ProbeDelay)
	config.Pacing.PassDelay = mathx.IfNotZero(config.Pacing.PassDelay, defaults.Pacing.PassDelay)
	config.Pacing.LoopInterval = mathx.IfNotZero(config.Pacing.LoopInterval, defaults.Pacing.LoopInterval)

	config.Archive.Mode = mathx.IfEmpty(config.Archive.Mode, defaults.Archive.Mode)
	config.Archive.Path = mathx.IfEmpty(config.Archive.Path, defaults.Archive.Path)

	config.Realtime.Addr = mathx.IfEmpty(config.Realtime.Addr, defaults.Realtime.Addr)
}

// fillStage 回填单阶段参数默认值
func fillStage(stage, defaults *StageParams) {
	stage.Candidates = mathx.IfNotZero(stage.Candidates, defaults.Candidates)
	stage.Probes = mathx.IfNotZero(stage.Probes, defaults.Probes)
	stage.Passes = mathx.IfNotZero(stage.Passes, defaults.Passes)
	stage.Timeout = mathx.IfNotZero(stage.Timeout, defaults.Timeout)
	stage.PayloadURL = mathx.IfEmpty(stage.PayloadURL, defaults.PayloadURL)
}

// validate 验证配置
func (l *Loader) validate(config *Config) error {
	if config.Mode != "" && config.Mode != "once" && config.Mode != "loop" {
		return fmt.Errorf("不支持的运行模式: %s (仅支持 once/loop)", config.Mode)
	}

	if config.Xray.MainConfig == "" {
		return fmt.Errorf("主配置路径不能为空")
	}

	if config.Xray.PortMin <= 0 || config.Xray.PortMax < config.Xray.PortMin {
		return fmt.Errorf("端口范围无效: [%d, %d]", config.Xray.PortMin, config.Xray.PortMax)
	}

	for _, s := range []struct {
		name  string
		stage *StageParams
	}{
		{"coarse", &config.Coarse},
		{"elite", &config.Elite},
		{"baseline", &config.Baseline},
	} {
		if s.stage.Candidates <= 0 {
			return fmt.Errorf("%s 阶段候选数必须大于0", s.name)
		}
		if s.stage.Probes <= 0 || s.stage.Passes <= 0 {
			return fmt.Errorf("%s 阶段探测次数与轮数必须大于0", s.name)
		}
		if s.stage.Timeout <= 0 {
			return fmt.Errorf("%s 阶段超时必须大于0", s.name)
		}
		if s.stage.PayloadURL == "" {
			return fmt.Errorf("%s 阶段测速地址不能为空", s.name)
		}
	}

	// 粗测入围数必须不少于精测入围数，否则漏斗无法收敛
	if config.Coarse.Candidates < config.Elite.Candidates {
		return fmt.Errorf("粗测候选数(%d)不能小于精测候选数(%d)", config.Coarse.Candidates, config.Elite.Candidates)
	}

	if config.Thresholds.MinImprovement < 0 || config.Thresholds.MinImprovementPct < 0 {
		return fmt.Errorf("晋升阈值不能为负数")
	}

	switch config.Archive.Mode {
	case "csv", "sqlite", "badger", "memory":
	default:
		return fmt.Errorf("不支持的归档模式: %s (支持: csv, sqlite, badger, memory)", config.Archive.Mode)
	}

	if config.Archive.Mode != "memory" && config.Archive.Path == "" {
		return fmt.Errorf("%s 归档需要指定 path 参数", config.Archive.Mode)
	}

	return nil
}
