/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-17 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 10:09:17
 * @FilePath: \go-ipopt\bootstrap\standalone.go
 * @Description: Standalone 模式启动器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/monitor"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-toolbox/pkg/osx"
	"github.com/kamalyes/go-toolbox/pkg/units"
)

// StandaloneOptions Standalone 模式选项
type StandaloneOptions struct {
	ConfigFile    string            // 配置文件路径（空则使用默认配置）
	Mode          types.RunMode     // 命令行覆盖：运行模式
	StorageMode   types.StorageMode // 命令行覆盖：归档模式
	ArchivePath   string            // 命令行覆盖：归档路径
	SkipSelection bool              // 命令行覆盖：跳过扫描
	MaxMemory     string            // 内存阈值（如 512MB，空则不监控）
	Logger        logger.ILogger
}

// RunStandalone 运行独立模式
func RunStandalone(opts StandaloneOptions) error {
	var cfg *config.Config
	var err error

	if opts.ConfigFile != "" {
		opts.Logger.Infof("📄 加载配置文件: %s", opts.ConfigFile)
		cfg, err = config.NewLoader().LoadFromFile(opts.ConfigFile)
		if err != nil {
			return fmt.Errorf("加载配置文件失败: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	applyOverrides(cfg, &opts)

	if err := preflight(cfg, opts.Logger); err != nil {
		return fmt.Errorf("运行环境检查失败: %w", err)
	}

	// 创建context，支持Ctrl+C中断
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		opts.Logger.Warn("\n\n⚠️  收到中断信号，正在停止...")
		cancel()
	}()

	// 内存监控（如果配置了阈值）
	if opts.MaxMemory != "" {
		if err := startMemoryMonitor(ctx, opts.MaxMemory, cancel, opts.Logger); err != nil {
			opts.Logger.Warnf("⚠️  %v", err)
		}
	}

	// 本机资源监控
	if cfg.Monitor.Enabled {
		rm := monitor.NewResourceMonitor(opts.Logger, 10*time.Second)
		go rm.Start(ctx)
	}

	runner, err := NewRunner(cfg, opts.Logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if cfg.Mode == types.RunModeLoop {
		opts.Logger.Infof("🔁 循环模式启动, 轮次间隔 %v", cfg.Pacing.LoopIntervalDuration())
		return runner.Loop(ctx)
	}

	if err := runner.RunOnce(ctx, 1); err != nil {
		if ctx.Err() != nil {
			opts.Logger.Warn("⚠️  用户已中断优选")
			return nil
		}
		return err
	}
	return nil
}

// applyOverrides 命令行参数覆盖配置文件
func applyOverrides(cfg *config.Config, opts *StandaloneOptions) {
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
	}
	if opts.StorageMode != "" {
		cfg.Archive.Mode = opts.StorageMode
	}
	if opts.ArchivePath != "" {
		cfg.Archive.Path = opts.ArchivePath
	}
	if opts.SkipSelection {
		cfg.SkipSelection = true
	}
}

// preflight 启动前环境检查，缺什么早点报出来
func preflight(cfg *config.Config, log logger.ILogger) error {
	if _, err := exec.LookPath("curl"); err != nil {
		return fmt.Errorf("未找到 curl: %w", err)
	}

	if _, err := os.Stat(cfg.Xray.Binary); err != nil {
		return fmt.Errorf("xray 可执行文件不可用 (%s): %w", cfg.Xray.Binary, err)
	}
	if _, err := os.Stat(cfg.Xray.MainConfig); err != nil {
		return fmt.Errorf("主配置不可用 (%s): %w", cfg.Xray.MainConfig, err)
	}

	if cfg.SkipSelection {
		if _, err := os.Stat(cfg.Scan.ResultFile); err != nil {
			return fmt.Errorf("跳过扫描模式需要已有结果文件 (%s): %w", cfg.Scan.ResultFile, err)
		}
	} else {
		if _, err := os.Stat(cfg.Scan.Binary); err != nil {
			return fmt.Errorf("cfst 可执行文件不可用 (%s): %w", cfg.Scan.Binary, err)
		}
	}

	if !portPairAvailable(cfg.Xray.PortMin, cfg.Xray.PortMax) {
		return fmt.Errorf("端口区间 [%d, %d] 内没有可用端口对", cfg.Xray.PortMin, cfg.Xray.PortMax)
	}

	log.Info("✅ 运行环境检查通过")
	return nil
}

// portPairAvailable 检查区间内是否至少有一对相邻空闲端口
func portPairAvailable(min, max int) bool {
	for port := min; port < max; port += 2 {
		if listenable(port) && listenable(port+1) {
			return true
		}
	}
	return false
}

func listenable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// startMemoryMonitor 启动内存监控
func startMemoryMonitor(ctx context.Context, maxMemory string, cancel context.CancelFunc, log logger.ILogger) error {
	threshold, err := units.ParseBytes(maxMemory)
	if err != nil {
		return fmt.Errorf("内存阈值格式错误: %w,将忽略内存监控", err)
	}

	log.Infof("🔍 启动内存监控，阈值: %s (%d MB)", maxMemory, threshold/(1024*1024))

	mon := osx.NewAdvancedMonitor().
		AddThreshold(osx.LevelWarning, threshold*80/100).
		AddThreshold(osx.LevelCritical, threshold).
		SetMetricType(osx.MetricAlloc).
		SetCheckOnce(false).
		SetMaxHistory(200).
		EnableGrowthCheck(20.0, 30*time.Second).
		OnWarning(func(snapshot osx.Snapshot) {
			log.Warnf("[⚠️  警告] 内存使用: %s / %s (%.1f%%), Goroutines: %d",
				units.FormatBytes(snapshot.Alloc),
				maxMemory,
				float64(snapshot.Alloc)/float64(threshold)*100,
				snapshot.Goroutines)
		}).
		OnCritical(func(snapshot osx.Snapshot) {
			log.Warnf("\n[🚨 严重] 内存使用超过阈值: %s / %s (%.1f%%)",
				units.FormatBytes(snapshot.Alloc),
				maxMemory,
				float64(snapshot.Alloc)/float64(threshold)*100)
			log.Warnf("  GC次数: %d, Goroutines: %d", snapshot.NumGC, snapshot.Goroutines)
			log.Warn("🛑 自动停止优选任务...")
			cancel()
		}).
		OnGrowthAlert(func(rate osx.GrowthRate, snapshot osx.Snapshot) {
			log.Warnf("[📈 增长告警] 增长率: %.2f%%, 绝对增长: %s, 时间窗口: %v",
				rate.Percentage,
				units.FormatBytes(uint64(rate.Absolute)),
				rate.Duration)
		}).
		OnCheck(func(snapshot osx.Snapshot) {
			log.Debugf("📊 内存监控 - Alloc: %s, Sys: %s, Goroutines: %d, GC: %d",
				units.FormatBytes(snapshot.Alloc),
				units.FormatBytes(snapshot.Sys),
				snapshot.Goroutines,
				snapshot.NumGC)
		})

	go mon.Start(ctx, 5*time.Second)
	return nil
}
