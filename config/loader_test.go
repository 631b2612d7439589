/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 18:09:33
 * @FilePath: \go-ipopt\config\loader_test.go
 * @Description: 配置加载器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"testing"

	"github.com/kamalyes/go-ipopt/types"
	"github.com/stretchr/testify/assert"
)

func TestLoadFromBytes(t *testing.T) {
	loader := NewLoader()

	t.Run("YAML局部覆盖保留其余默认值", func(t *testing.T) {
		yamlData := []byte(`
mode: loop
coarse:
  candidates: 20
thresholds:
  min_improvement: 2.5
`)
		cfg, err := loader.LoadFromBytes(yamlData, "yaml")
		assert.NoError(t, err)

		assert.Equal(t, types.RunModeLoop, cfg.Mode)
		assert.Equal(t, 20, cfg.Coarse.Candidates)
		assert.Equal(t, 2.5, cfg.Thresholds.MinImprovement)

		// 未覆盖的字段保持默认
		assert.Equal(t, 5, cfg.Coarse.Probes)
		assert.Equal(t, 3, cfg.Elite.Candidates)
		assert.Equal(t, 5.0, cfg.Thresholds.MinImprovementPct)
		assert.Equal(t, types.StorageModeCSV, cfg.Archive.Mode)
		assert.Equal(t, 20800, cfg.Xray.PortMin)
	})

	t.Run("JSON格式", func(t *testing.T) {
		jsonData := []byte(`{"mode": "once", "archive": {"mode": "sqlite", "path": "history.db"}}`)
		cfg, err := loader.LoadFromBytes(jsonData, "json")
		assert.NoError(t, err)
		assert.Equal(t, types.StorageModeSQLite, cfg.Archive.Mode)
		assert.Equal(t, "history.db", cfg.Archive.Path)
	})

	t.Run("不支持的格式报错", func(t *testing.T) {
		_, err := loader.LoadFromBytes([]byte("mode = loop"), "toml")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	loader := NewLoader()

	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"非法运行模式", func(cfg *Config) { cfg.Mode = "daemon" }},
		{"非法端口区间", func(cfg *Config) { cfg.Xray.PortMin = 30000; cfg.Xray.PortMax = 20000 }},
		{"负的晋升阈值", func(cfg *Config) { cfg.Thresholds.MinImprovement = -1 }},
		{"非法归档模式", func(cfg *Config) { cfg.Archive.Mode = "redis" }},
		{"粗测名额少于精测名额", func(cfg *Config) { cfg.Coarse.Candidates = 2; cfg.Elite.Candidates = 5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			_, err := loader.processConfig(cfg)
			assert.Error(t, err)
		})
	}

	t.Run("默认配置合法", func(t *testing.T) {
		_, err := loader.processConfig(DefaultConfig())
		assert.NoError(t, err)
	})
}

func TestDefaultBaselineMirrorsElite(t *testing.T) {
	cfg := DefaultConfig()

	// 基准复测必须与精测同负载同超时，否则速度不可比
	assert.Equal(t, cfg.Elite.PayloadURL, cfg.Baseline.PayloadURL)
	assert.Equal(t, cfg.Elite.Timeout, cfg.Baseline.Timeout)
	assert.Equal(t, 1, cfg.Baseline.Probes)
	assert.Equal(t, 1, cfg.Baseline.Passes)
}

func TestStageParamsDuration(t *testing.T) {
	stage := StageParams{Timeout: 15}
	assert.Equal(t, "15s", stage.TimeoutDuration().String())

	pacing := PacingConfig{ProbeDelay: 1, PassDelay: 2, LoopInterval: 60}
	assert.Equal(t, "1s", pacing.ProbeDelayDuration().String())
	assert.Equal(t, "1m0s", pacing.LoopIntervalDuration().String())
}
