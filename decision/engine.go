/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-15 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-26 14:19:55
 * @FilePath: \go-ipopt\decision\engine.go
 * @Description: 晋升决策引擎 - 双阈值比较与主配置落盘
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package decision

import (
	"fmt"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-ipopt/xray"
)

// Decide 双阈值晋升判定
//
// 挑战者必须测速成功才有资格；基准测速失败视为已不可用，
// 挑战者直接晋升。否则看绝对提升或相对提升任一达标（均为闭区间）。
func Decide(baseline, challenger types.Measurement, th *config.ThresholdConfig) types.Decision {
	d := types.Decision{
		Baseline:       baseline,
		Challenger:     challenger,
		ImprovementAbs: challenger.Speed - baseline.Speed,
	}
	if baseline.Speed > 0 {
		d.ImprovementPct = d.ImprovementAbs / baseline.Speed * 100
	}

	if !challenger.Status.IsOK() {
		d.Promote = false
		d.Winner = baseline
		d.Reason = fmt.Sprintf("挑战者测速失败 (%s)，保留基准", challenger.Status)
		return d
	}

	switch {
	case !baseline.Status.IsOK():
		d.Promote = true
		d.Reason = fmt.Sprintf("基准复测失败 (%s)，挑战者直接晋升", baseline.Status)

	case d.ImprovementAbs >= th.MinImprovement:
		d.Promote = true
		d.Reason = fmt.Sprintf("绝对提升 %.2f Mbit/s ≥ 阈值 %.2f", d.ImprovementAbs, th.MinImprovement)

	case baseline.Speed > 0 && d.ImprovementPct >= th.MinImprovementPct:
		d.Promote = true
		d.Reason = fmt.Sprintf("相对提升 %.1f%% ≥ 阈值 %.1f%%", d.ImprovementPct, th.MinImprovementPct)

	default:
		d.Promote = false
		d.Reason = fmt.Sprintf("提升不足 (%.2f Mbit/s / %.1f%%)，保留基准", d.ImprovementAbs, d.ImprovementPct)
	}

	if d.Promote {
		d.Winner = challenger
	} else {
		d.Winner = baseline
	}
	return d
}

// Engine 决策引擎：判定 + 主配置落盘
type Engine struct {
	mainConfig string
	thresholds *config.ThresholdConfig
	logger     logger.ILogger
	promote    func(mainConfig, ip string) error // 可注入，测试免落盘
}

// NewEngine 创建决策引擎
func NewEngine(mainConfig string, th *config.ThresholdConfig, log logger.ILogger) *Engine {
	return &Engine{
		mainConfig: mainConfig,
		thresholds: th,
		logger:     log,
		promote:    xray.PromoteAddress,
	}
}

// Resolve 判定并应用决策（晋升时原子改写主配置的出站地址）
func (e *Engine) Resolve(baseline, challenger types.Measurement) (types.Decision, error) {
	d := Decide(baseline, challenger, e.thresholds)

	if !d.Promote {
		e.logger.Infof("🛡️  保留基准 %s: %s", baseline.IP, d.Reason)
		return d, nil
	}

	e.logger.Infof("🚀 晋升 %s → 主配置: %s", challenger.IP, d.Reason)
	if err := e.promote(e.mainConfig, challenger.IP); err != nil {
		return d, fmt.Errorf("主配置落盘失败: %w", err)
	}
	return d, nil
}
