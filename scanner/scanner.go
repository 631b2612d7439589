/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-13 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-24 15:36:02
 * @FilePath: \go-ipopt\scanner\scanner.go
 * @Description: 候选端点扫描（cfst 海选/精选、结果解析、历史合并）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package scanner

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

// 海选重试上限：网络波动时单次扫描可能产出不足
const maxScreenAttempts = 3

// Scanner 候选端点扫描器，包装 cfst 两阶段扫描
type Scanner struct {
	cfg    *config.ScanConfig
	logger logger.ILogger
	run    func(ctx context.Context, args ...string) error // 可注入，测试免进程
}

// NewScanner 创建扫描器
func NewScanner(cfg *config.ScanConfig, log logger.ILogger) *Scanner {
	s := &Scanner{
		cfg:    cfg,
		logger: log,
	}
	s.run = s.runCfst
	return s
}

// Select 执行完整候选获取流程
//
// skip 为真时不启动扫描，直接解析已有结果文件；extra 为需要并入
// 精选名单的历史晋级 IP（去重后追加）。
func (s *Scanner) Select(ctx context.Context, skip bool, extra []string) ([]types.Candidate, error) {
	if skip {
		s.logger.Info("⏭️  跳过扫描，直接读取已有结果文件")
		candidates, err := ParseResultCSV(s.cfg.ResultFile)
		if err != nil {
			return nil, fmt.Errorf("读取已有结果失败: %w", err)
		}
		return mergeExtra(candidates, extra), nil
	}

	screened, err := s.Screen(ctx)
	if err != nil {
		return nil, err
	}
	return s.Refine(ctx, screened, extra)
}

// Screen 海选：反复扫描直到产出数量达标
func (s *Scanner) Screen(ctx context.Context) ([]types.Candidate, error) {
	for attempt := 1; attempt <= maxScreenAttempts; attempt++ {
		s.logger.Infof("🌊 海选扫描 (第 %d/%d 次)...", attempt, maxScreenAttempts)

		if err := s.run(ctx, s.screenArgs()...); err != nil {
			return nil, fmt.Errorf("海选扫描失败: %w", err)
		}

		candidates, err := ParseResultCSV(s.cfg.ResultFile)
		if err != nil {
			return nil, fmt.Errorf("解析海选结果失败: %w", err)
		}

		if len(candidates) >= s.cfg.ScreenMin {
			s.logger.Infof("✅ 海选完成: %d 个候选", len(candidates))
			return candidates, nil
		}
		s.logger.Warnf("⚠️  海选产出不足: %d/%d，重新扫描", len(candidates), s.cfg.ScreenMin)
	}
	return nil, fmt.Errorf("海选 %d 次后产出仍不足 %d 个", maxScreenAttempts, s.cfg.ScreenMin)
}

// Refine 精选：截取海选前列 + 历史 IP 写入名单，再做针对性扫描
func (s *Scanner) Refine(ctx context.Context, screened []types.Candidate, extra []string) ([]types.Candidate, error) {
	limit := len(screened)
	if limit > s.cfg.RefineMax {
		limit = s.cfg.RefineMax
	}

	ips := make([]string, 0, limit+len(extra))
	for _, c := range screened[:limit] {
		ips = append(ips, c.IP)
	}
	ips = DedupeIPs(append(ips, extra...))

	if err := WritePreIP(s.cfg.PreIPFile, ips); err != nil {
		return nil, fmt.Errorf("写入精选名单失败: %w", err)
	}
	s.logger.Infof("🎯 精选扫描: 名单 %d 个 IP", len(ips))

	if err := s.run(ctx, s.refineArgs()...); err != nil {
		return nil, fmt.Errorf("精选扫描失败: %w", err)
	}

	candidates, err := ParseResultCSV(s.cfg.ResultFile)
	if err != nil {
		return nil, fmt.Errorf("解析精选结果失败: %w", err)
	}
	s.logger.Infof("✅ 精选完成: %d 个候选", len(candidates))
	return candidates, nil
}

// screenArgs 海选命令参数
func (s *Scanner) screenArgs() []string {
	args := []string{"-o", s.cfg.ResultFile, "-dn", strconv.Itoa(s.cfg.ScreenMin)}
	return append(args, splitArgs(s.cfg.ExtraArgs)...)
}

// refineArgs 精选命令参数
func (s *Scanner) refineArgs() []string {
	args := []string{"-o", s.cfg.ResultFile, "-f", s.cfg.PreIPFile}
	return append(args, splitArgs(s.cfg.ExtraArgs)...)
}

// splitArgs 拆分配置里的附加参数（空白分隔，空串返回 nil）
func splitArgs(extra string) []string {
	return strings.Fields(extra)
}

// runCfst 启动 cfst 子进程并等待完成
func (s *Scanner) runCfst(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("执行 %s 失败: %w", s.cfg.Binary, err)
	}
	return nil
}

// ParseResultCSV 解析 cfst 结果文件
//
// 首行是表头；每行首列为 IP，第 4 列丢包率，第 5 列平均延迟（毫秒）。
// 个别行解析失败只跳过该行，不中断整体。
func ParseResultCSV(path string) ([]types.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开结果文件失败: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 失败: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	candidates := make([]types.Candidate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		c := types.Candidate{IP: strings.TrimSpace(row[0])}
		if len(row) > 3 {
			c.LossRate, _ = strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		}
		if len(row) > 4 {
			c.Latency, _ = strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// WritePreIP 写入精选名单文件（每行一个 IP）
func WritePreIP(path string, ips []string) error {
	content := strings.Join(ips, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// DedupeIPs 去重并保持原有顺序
func DedupeIPs(ips []string) []string {
	seen := make(map[string]struct{}, len(ips))
	result := make([]string, 0, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		result = append(result, ip)
	}
	return result
}

// mergeExtra 将历史 IP 以候选形式并入（去重，历史 IP 排在已有候选之后）
func mergeExtra(candidates []types.Candidate, extra []string) []types.Candidate {
	if len(extra) == 0 {
		return candidates
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		seen[c.IP] = struct{}{}
	}
	for _, ip := range DedupeIPs(extra) {
		if _, ok := seen[ip]; ok {
			continue
		}
		candidates = append(candidates, types.Candidate{IP: ip})
	}
	return candidates
}

// TopIPs 按结果顺序截取前 n 个 IP
func TopIPs(candidates []types.Candidate, n int) []string {
	if n > len(candidates) {
		n = len(candidates)
	}
	ips := make([]string, 0, n)
	for _, c := range candidates[:n] {
		ips = append(ips, c.IP)
	}
	return ips
}
