/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-10 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-20 09:15:43
 * @FilePath: \go-ipopt\types\result.go
 * @Description: 测速结果与决策数据结构
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

import (
	"fmt"
	"time"
)

// Candidate 候选端点（初筛产出）
type Candidate struct {
	IP       string  // 端点地址
	Latency  float64 // 初筛延迟（毫秒，来自扫描器，仅参考）
	LossRate float64 // 初筛丢包率（仅参考）
}

// Measurement 单个端点的测速结果
type Measurement struct {
	IP      string      // 端点地址
	Speed   float64     // 速率（Mbit/s，十进制换算），失败为 0
	Status  ProbeStatus // 最终状态（多轮中任一轮成功即为 OK）
	Samples int         // 实际探测次数（轮数 × 每轮次数）
}

// SpeedText 速率的展示文本
func (m *Measurement) SpeedText() string {
	return fmt.Sprintf("%.2f Mbit/s", m.Speed)
}

// Decision 晋升决策结果
type Decision struct {
	Promote        bool        // 是否晋升挑战者
	Winner         Measurement // 胜出端点（晋升时为挑战者，否则为基准）
	Baseline       Measurement // 基准端点本轮实测
	Challenger     Measurement // 终选挑战者
	ImprovementAbs float64     // 绝对提升（Mbit/s）
	ImprovementPct float64     // 相对提升（%），基准为 0 时无意义
	Reason         string      // 决策依据说明
}

// RunRecord 归档记录（一轮运行中的一行）
type RunRecord struct {
	RunID  string      // 本轮运行ID
	Rank   string      // 名次（"1"/"2"/... 或基准的 "now"）
	IP     string      // 端点地址
	Speed  float64     // 实测速率（Mbit/s）
	Status ProbeStatus // 探测状态
	Time   time.Time   // 记录时间
}

// StageResult 漏斗单阶段结果
type StageResult struct {
	Stage    string        // 阶段名
	Ranked   []Measurement // 按速率降序的测速结果
	Elapsed  time.Duration // 阶段耗时
	Promoted int           // 晋级下一阶段的数量
}

// Best 阶段最优结果，无结果时返回 false
func (r *StageResult) Best() (Measurement, bool) {
	if len(r.Ranked) == 0 {
		return Measurement{}, false
	}
	return r.Ranked[0], true
}
