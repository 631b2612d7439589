/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-17 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-27 15:44:28
 * @FilePath: \go-ipopt\bootstrap\runner.go
 * @Description: 单轮/循环优选执行器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kamalyes/go-ipopt/archive"
	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/decision"
	"github.com/kamalyes/go-ipopt/funnel"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/measure"
	"github.com/kamalyes/go-ipopt/prober"
	"github.com/kamalyes/go-ipopt/report"
	"github.com/kamalyes/go-ipopt/scanner"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-ipopt/xray"
	"github.com/kamalyes/go-toolbox/pkg/idgen"
)

// 归档时间统一用东八区，与线上节点时区一致
var cst = time.FixedZone("CST", 8*3600)

// 历史晋级 IP 并入候选的数量上限
const historyMergeLimit = 10

// Runner 优选执行器，持有一轮运行需要的全部组件
type Runner struct {
	cfg      *config.Config
	funnel   *funnel.Funnel
	service  *measure.Service
	engine   *decision.Engine
	store    archive.Interface
	printer  *report.Printer
	realtime *report.RealtimeServer
	idGen    *idgen.SnowflakeGenerator
	logger   logger.ILogger
}

// NewRunner 组装优选执行器
func NewRunner(cfg *config.Config, log logger.ILogger) (*Runner, error) {
	store, err := archive.NewFactory(log).Create(&cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("创建归档失败: %w", err)
	}

	launcher := xray.NewLauncher(&cfg.Xray, log)
	service := measure.NewService(
		measure.LaunchFunc(func(ctx context.Context, ip string) (measure.Session, error) {
			return launcher.Launch(ctx, ip)
		}),
		prober.NewCurlProber(log),
		cfg.Pacing,
		log,
	)

	r := &Runner{
		cfg:     cfg,
		funnel:  funnel.New(scanner.NewScanner(&cfg.Scan, log), service, cfg, log),
		service: service,
		engine:  decision.NewEngine(cfg.Xray.MainConfig, &cfg.Thresholds, log),
		store:   store,
		printer: report.NewPrinter(log),
		idGen:   idgen.NewSnowflakeGenerator(1, 1),
		logger:  log,
	}

	if cfg.Realtime.Enabled {
		r.realtime = report.NewRealtimeServer(cfg.Realtime.Addr, log)
		if err := r.realtime.Start(); err != nil {
			store.Close()
			return nil, fmt.Errorf("启动实时状态服务器失败: %w", err)
		}
	}
	return r, nil
}

// Close 释放执行器资源
func (r *Runner) Close() {
	if r.realtime != nil {
		if err := r.realtime.Stop(); err != nil {
			r.logger.Warnf("⚠️  关闭实时状态服务器失败: %v", err)
		}
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warnf("⚠️  关闭归档失败: %v", err)
	}
}

// RunOnce 执行一轮完整优选：漏斗 → 基准复测 → 决策 → 归档
func (r *Runner) RunOnce(ctx context.Context, round int) error {
	runID := r.idGen.GenerateRequestID()
	start := time.Now()
	r.logger.Infof("═══ 第 %d 轮优选启动 (run_id=%s) ═══", round, runID)

	r.updatePhase(runID, "候选扫描", round)
	extra, err := r.historyIPs()
	if err != nil {
		r.logger.Warnf("⚠️  读取历史晋级 IP 失败，忽略合并: %v", err)
	}

	outcome, err := r.funnel.Run(ctx, extra)
	if err != nil {
		return fmt.Errorf("漏斗执行失败: %w", err)
	}
	r.printer.PrintStage(&outcome.Coarse)
	r.printer.PrintStage(&outcome.Elite)

	r.updatePhase(runID, "基准复测", round)
	baseline := r.measureBaseline(ctx)

	r.updatePhase(runID, "晋升决策", round)
	d, err := r.engine.Resolve(baseline, outcome.Challenger)
	if err != nil {
		// 决策已出但落盘失败：记录本轮数据后把错误抛给上层
		r.printer.PrintDecision(&d)
		r.appendRecords(runID, outcome, baseline)
		return err
	}
	r.printer.PrintDecision(&d)
	if r.realtime != nil {
		r.realtime.UpdateDecision(&d)
	}

	if err := r.appendRecords(runID, outcome, baseline); err != nil {
		return fmt.Errorf("归档失败: %w", err)
	}

	r.logger.Infof("═══ 第 %d 轮优选完成, 耗时 %v ═══", round, time.Since(start).Round(time.Second))
	return nil
}

// Loop 循环执行，每轮之间固定休眠；单轮失败不中断循环
func (r *Runner) Loop(ctx context.Context) error {
	for round := 1; ; round++ {
		if err := r.RunOnce(ctx, round); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Errorf("❌ 第 %d 轮优选失败: %v", round, err)
		}

		r.logger.Infof("😴 休眠 %v 后开始下一轮...", r.cfg.Pacing.LoopIntervalDuration())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.Pacing.LoopIntervalDuration()):
		}
	}
}

// measureBaseline 复测主配置当前指向的端点
//
// 主配置读不出地址时基准按测速失败处理（速率 0），挑战者将直接晋升。
func (r *Runner) measureBaseline(ctx context.Context) types.Measurement {
	doc, err := xray.LoadDocument(r.cfg.Xray.MainConfig)
	if err != nil {
		r.logger.Warnf("⚠️  读取主配置失败，基准按失败处理: %v", err)
		return types.Measurement{Status: types.StatusConfigFailed}
	}
	ip, err := doc.Address()
	if err != nil {
		r.logger.Warnf("⚠️  主配置缺少出站地址，基准按失败处理: %v", err)
		return types.Measurement{Status: types.StatusConfigFailed}
	}

	r.logger.Infof("🎯 基准复测: %s", ip)
	return r.service.Measure(ctx, ip, &r.cfg.Baseline)
}

// historyIPs 读取需并入候选的历史晋级 IP
func (r *Runner) historyIPs() ([]string, error) {
	if !r.cfg.MergePrevious {
		return nil, nil
	}
	return r.store.RecentIPs(historyMergeLimit)
}

// appendRecords 归档本轮记录：基准复测 "now" 行在前，精测名次逐行在后
func (r *Runner) appendRecords(runID string, outcome *funnel.Outcome, baseline types.Measurement) error {
	now := time.Now().In(cst)
	records := make([]types.RunRecord, 0, len(outcome.Elite.Ranked)+1)

	records = append(records, types.RunRecord{
		RunID:  runID,
		Rank:   "now",
		IP:     baseline.IP,
		Speed:  baseline.Speed,
		Status: baseline.Status,
		Time:   now,
	})
	for i, m := range outcome.Elite.Ranked {
		records = append(records, types.RunRecord{
			RunID:  runID,
			Rank:   fmt.Sprintf("%d", i+1),
			IP:     m.IP,
			Speed:  m.Speed,
			Status: m.Status,
			Time:   now,
		})
	}

	return r.store.Append(records)
}

// updatePhase 推送阶段状态
func (r *Runner) updatePhase(runID, phase string, round int) {
	if r.realtime != nil {
		r.realtime.UpdatePhase(runID, phase, round)
	}
}
