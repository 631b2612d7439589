/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-15 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-26 09:48:21
 * @FilePath: \go-ipopt\funnel\funnel.go
 * @Description: 分级漏斗 - 海选/精选/粗测/精测逐级收敛
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package funnel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/scanner"
	"github.com/kamalyes/go-ipopt/types"
)

// 漏斗哨兵错误
var (
	ErrNoCandidates = errors.New("扫描未产出任何候选")
	ErrAllFailed    = errors.New("本阶段所有候选测速失败")
)

// Measurer 阶段测速依赖
type Measurer interface {
	MeasureAll(ctx context.Context, ips []string, stage *config.StageParams) []types.Measurement
}

// CandidateSource 候选来源依赖
type CandidateSource interface {
	Select(ctx context.Context, skip bool, extra []string) ([]types.Candidate, error)
}

// Outcome 漏斗完整产出
type Outcome struct {
	Candidates int               // 进入漏斗的候选总数
	Coarse     types.StageResult // 粗测阶段
	Elite      types.StageResult // 精测阶段
	Challenger types.Measurement // 终选挑战者（精测第一名）
}

// Funnel 分级漏斗
//
// 每一级都只淘汰不复活：上一级落选的端点不会再进入下一级。
type Funnel struct {
	source   CandidateSource
	measurer Measurer
	cfg      *config.Config
	logger   logger.ILogger
}

// New 创建漏斗
func New(source CandidateSource, measurer Measurer, cfg *config.Config, log logger.ILogger) *Funnel {
	return &Funnel{
		source:   source,
		measurer: measurer,
		cfg:      cfg,
		logger:   log,
	}
}

// Run 执行一次完整漏斗，extra 为需并入候选的历史晋级 IP
func (f *Funnel) Run(ctx context.Context, extra []string) (*Outcome, error) {
	candidates, err := f.source.Select(ctx, f.cfg.SkipSelection, extra)
	if err != nil {
		return nil, fmt.Errorf("候选获取失败: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	f.logger.Infof("🏁 漏斗启动: %d 个候选进入测速", len(candidates))

	outcome := &Outcome{Candidates: len(candidates)}

	coarse, err := f.runStage(ctx, "粗测", scanner.TopIPs(candidates, f.cfg.Coarse.Candidates), &f.cfg.Coarse)
	if err != nil {
		return nil, err
	}
	outcome.Coarse = coarse

	eliteIPs := promotedIPs(coarse.Ranked, f.cfg.Elite.Candidates)
	outcome.Coarse.Promoted = len(eliteIPs)

	elite, err := f.runStage(ctx, "精测", eliteIPs, &f.cfg.Elite)
	if err != nil {
		return nil, err
	}
	outcome.Elite = elite
	outcome.Elite.Promoted = 1

	best, _ := elite.Best()
	outcome.Challenger = best
	f.logger.Infof("🏆 终选挑战者: %s (%.2f Mbit/s)", best.IP, best.Speed)
	return outcome, nil
}

// runStage 执行单个测速阶段并按速率排名
func (f *Funnel) runStage(ctx context.Context, name string, ips []string, stage *config.StageParams) (types.StageResult, error) {
	f.logger.Infof("📶 %s阶段: %d 个候选, 每轮 %d 次探测 × %d 轮", name, len(ips), stage.Probes, stage.Passes)

	start := time.Now()
	results := f.measurer.MeasureAll(ctx, ips, stage)
	elapsed := time.Since(start)

	Rank(results)

	okCount := 0
	for _, m := range results {
		if m.Status.IsOK() {
			okCount++
		}
	}
	if okCount == 0 {
		return types.StageResult{}, fmt.Errorf("%s阶段: %w", name, ErrAllFailed)
	}

	f.logger.Infof("✅ %s完成: %d/%d 成功, 耗时 %v, 第一名 %s (%.2f Mbit/s)",
		name, okCount, len(results), elapsed.Round(time.Second), results[0].IP, results[0].Speed)

	return types.StageResult{
		Stage:   name,
		Ranked:  results,
		Elapsed: elapsed,
	}, nil
}

// Rank 按速率降序原地排序（稳定排序保持同速候选的先到顺序）
func Rank(results []types.Measurement) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Speed > results[j].Speed
	})
}

// promotedIPs 从排名中取晋级名额（只要成功的）
func promotedIPs(ranked []types.Measurement, n int) []string {
	ips := make([]string, 0, n)
	for _, m := range ranked {
		if len(ips) >= n {
			break
		}
		if m.Status.IsOK() {
			ips = append(ips, m.IP)
		}
	}
	return ips
}
