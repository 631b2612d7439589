/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-26 16:02:38
 * @FilePath: \go-ipopt\report\leaderboard.go
 * @Description: 控制台榜单输出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package report

import (
	"fmt"
	"time"

	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

// Printer 控制台榜单输出器
type Printer struct {
	logger logger.ILogger
}

// NewPrinter 创建榜单输出器
func NewPrinter(log logger.ILogger) *Printer {
	return &Printer{
		logger: log,
	}
}

// PrintStage 打印单个阶段的排名表
func (p *Printer) PrintStage(stage *types.StageResult) {
	p.logger.Info("")
	p.logger.Infof("📊 %s阶段榜单 (耗时 %v)", stage.Stage, stage.Elapsed.Round(time.Second))

	rows := make([]map[string]interface{}, 0, len(stage.Ranked))
	for i, m := range stage.Ranked {
		rows = append(rows, map[string]interface{}{
			"名次": i + 1,
			"IP": m.IP,
			"速率": m.SpeedText(),
			"状态": string(m.Status),
			"采样": m.Samples,
		})
	}
	p.logger.ConsoleTable(rows)
}

// PrintDecision 打印决策结论
func (p *Printer) PrintDecision(d *types.Decision) {
	p.logger.Info("")
	p.logger.Info("⚖️  晋升决策")

	rows := []map[string]interface{}{
		{
			"角色": "基准",
			"IP": d.Baseline.IP,
			"速率": d.Baseline.SpeedText(),
			"状态": string(d.Baseline.Status),
		},
		{
			"角色": "挑战者",
			"IP": d.Challenger.IP,
			"速率": d.Challenger.SpeedText(),
			"状态": string(d.Challenger.Status),
		},
	}
	p.logger.ConsoleTable(rows)

	verdict := "🛡️  保留基准"
	if d.Promote {
		verdict = "🚀 晋升挑战者"
	}
	p.logger.Infof("%s: %s (提升 %.2f Mbit/s / %s)",
		verdict, d.Winner.IP, d.ImprovementAbs, pctText(d))
}

// pctText 相对提升展示文本（基准为 0 时不显示百分比）
func pctText(d *types.Decision) string {
	if d.Baseline.Speed <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", d.ImprovementPct)
}
