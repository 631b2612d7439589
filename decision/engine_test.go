/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 14:02:33
 * @FilePath: \go-ipopt\decision\engine_test.go
 * @Description: 晋升决策测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package decision

import (
	"fmt"
	"testing"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

func ok(ip string, speed float64) types.Measurement {
	return types.Measurement{IP: ip, Speed: speed, Status: types.StatusOK}
}

func TestDecide(t *testing.T) {
	th := &config.ThresholdConfig{MinImprovement: 1.0, MinImprovementPct: 5.0}

	t.Run("绝对提升超过阈值则晋升", func(t *testing.T) {
		d := Decide(ok("1.1.1.1", 50.0), ok("2.2.2.2", 51.5), th)
		assert.True(t, d.Promote)
		assert.Equal(t, "2.2.2.2", d.Winner.IP)
		assert.InDelta(t, 1.5, d.ImprovementAbs, 1e-9)
	})

	t.Run("绝对提升恰好等于阈值也晋升", func(t *testing.T) {
		d := Decide(ok("1.1.1.1", 50.0), ok("2.2.2.2", 51.0), th)
		assert.True(t, d.Promote)
	})

	t.Run("两个阈值都不达标则保留基准", func(t *testing.T) {
		// 提升 0.4 Mbit/s (0.8%)，双阈值均未达标
		d := Decide(ok("1.1.1.1", 50.0), ok("2.2.2.2", 50.4), th)
		assert.False(t, d.Promote)
		assert.Equal(t, "1.1.1.1", d.Winner.IP)
	})

	t.Run("相对提升达标即可晋升", func(t *testing.T) {
		// 提升 0.11 Mbit/s 不足绝对阈值，但 5.5% 超过相对阈值
		d := Decide(ok("1.1.1.1", 2.0), ok("2.2.2.2", 2.11), th)
		assert.True(t, d.Promote)
		assert.InDelta(t, 5.5, d.ImprovementPct, 1e-9)
	})

	t.Run("基准复测失败挑战者直接晋升", func(t *testing.T) {
		baseline := types.Measurement{IP: "1.1.1.1", Speed: 0, Status: types.StatusTimeout}
		d := Decide(baseline, ok("2.2.2.2", 0.5), th)
		assert.True(t, d.Promote)
		assert.Equal(t, "2.2.2.2", d.Winner.IP)
	})

	t.Run("挑战者测速失败永不晋升", func(t *testing.T) {
		challenger := types.Measurement{IP: "2.2.2.2", Speed: 0, Status: types.StatusTransferFailed}
		d := Decide(ok("1.1.1.1", 50.0), challenger, th)
		assert.False(t, d.Promote)
		assert.Equal(t, "1.1.1.1", d.Winner.IP)

		// 即使基准也失败，挑战者失败时仍保留基准
		baseline := types.Measurement{IP: "1.1.1.1", Speed: 0, Status: types.StatusTimeout}
		d = Decide(baseline, challenger, th)
		assert.False(t, d.Promote)
	})

	t.Run("基准速率为零时不计算相对提升", func(t *testing.T) {
		baseline := ok("1.1.1.1", 0)
		d := Decide(baseline, ok("2.2.2.2", 0.5), th)
		// 0.5 < 1.0 绝对阈值；相对阈值因基准为 0 不参与
		assert.False(t, d.Promote)
		assert.Equal(t, 0.0, d.ImprovementPct)
	})
}

func TestEngineResolve(t *testing.T) {
	log := logger.NewLogger(nil)
	th := &config.ThresholdConfig{MinImprovement: 1.0, MinImprovementPct: 5.0}

	t.Run("晋升时改写主配置", func(t *testing.T) {
		engine := NewEngine("config.json", th, log)

		var promotedIP string
		engine.promote = func(mainConfig, ip string) error {
			assert.Equal(t, "config.json", mainConfig)
			promotedIP = ip
			return nil
		}

		d, err := engine.Resolve(ok("1.1.1.1", 10.0), ok("2.2.2.2", 20.0))
		assert.NoError(t, err)
		assert.True(t, d.Promote)
		assert.Equal(t, "2.2.2.2", promotedIP)
	})

	t.Run("保留基准时不落盘", func(t *testing.T) {
		engine := NewEngine("config.json", th, log)

		called := false
		engine.promote = func(mainConfig, ip string) error {
			called = true
			return nil
		}

		d, err := engine.Resolve(ok("1.1.1.1", 50.0), ok("2.2.2.2", 50.1))
		assert.NoError(t, err)
		assert.False(t, d.Promote)
		assert.False(t, called)
	})

	t.Run("落盘失败返回错误但决策保留", func(t *testing.T) {
		engine := NewEngine("config.json", th, log)
		engine.promote = func(mainConfig, ip string) error {
			return fmt.Errorf("磁盘只读")
		}

		d, err := engine.Resolve(ok("1.1.1.1", 10.0), ok("2.2.2.2", 20.0))
		assert.Error(t, err)
		assert.True(t, d.Promote)
	})
}
