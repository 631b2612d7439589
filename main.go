/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-10 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 11:26:40
 * @FilePath: \go-ipopt\main.go
 * @Description: 代理端点优选工具主入口
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kamalyes/go-ipopt/bootstrap"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

var (
	// 基础参数
	configFile    string
	mode          types.RunMode
	skipSelection bool

	// 归档配置
	storageMode types.StorageMode
	archivePath string

	// 日志配置
	logLevel = logger.LogLevelFlag{Level: logger.INFO}
	logFile  string
	quiet    bool
	verbose  bool

	// 内存限制
	maxMemory string
)

func init() {
	flag.StringVar(&configFile, "config", "", "配置文件路径 (yaml/json)")
	flag.Var(&mode, "mode", "运行模式 (once:单轮 | loop:循环)")
	flag.BoolVar(&skipSelection, "skip-selection", false, "跳过扫描，直接复用已有结果文件")

	// 归档配置
	flag.Var(&storageMode, "storage", "归档模式 (csv | sqlite | badger | memory)")
	flag.StringVar(&archivePath, "archive-path", "", "归档路径 (覆盖配置文件)")

	// 日志配置
	flag.Var(&logLevel, "log-level", "日志级别 (debug/info/warn/error)")
	flag.StringVar(&logFile, "log-file", "", "日志文件路径")
	flag.BoolVar(&quiet, "quiet", false, "静默模式（仅错误）")
	flag.BoolVar(&verbose, "verbose", false, "详细模式（包含调试信息）")

	// 内存限制
	flag.StringVar(&maxMemory, "max-memory", "", "内存使用阈值，超过后自动停止 (如: 1GB, 512MB)")
}

func main() {
	flag.Parse()

	// 初始化日志器
	initLogger()

	// 处理子命令
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "help", "-h", "--help":
			printBanner()
			printSimpleUsage()
			os.Exit(0)
		case "examples", "demo", "-demo":
			printBanner()
			printExamplesHelp()
			os.Exit(0)
		case "version", "-v", "--version":
			printVersion()
			os.Exit(0)
		}
	}

	// 打印banner
	printBanner()

	opts := bootstrap.StandaloneOptions{
		ConfigFile:    configFile,
		Mode:          mode,
		StorageMode:   storageMode,
		ArchivePath:   archivePath,
		SkipSelection: skipSelection,
		MaxMemory:     maxMemory,
		Logger:        logger.Default,
	}
	if err := bootstrap.RunStandalone(opts); err != nil {
		logger.Default.Fatalf("❌ 运行优选失败: %v", err)
	}
}

// initLogger 初始化日志器
func initLogger() {
	config := logger.DefaultConfig()

	// 优先级：verbose > quiet > logLevel
	switch {
	case verbose:
		config = config.WithLevel(logger.DEBUG).WithShowCaller(true).WithTimeFormat("2006-01-02 15:04:05.000")
	case quiet:
		config = config.WithLevel(logger.ERROR)
	default:
		config = config.WithLevel(logLevel.Level)
	}

	// 配置输出
	if logFile != "" {
		rotateWriter := logger.NewRotateWriter(logFile, 100*1024*1024, 5)
		config = config.WithOutput(rotateWriter).WithColorful(false)
	}

	logger.SetDefault(logger.New(config))
}

// printBanner 打印启动banner
func printBanner() {
	logger.Default.Info(`
╔══════════════════════════════════════════════════════════╗
║                                                          ║
║     ⚡ Go IP Optimizer ⚡                                ║
║                                                          ║
║     🚀 代理端点自动优选工具                               ║
║     🔧 分级漏斗测速 + 双阈值晋升                          ║
║     ⚙️  基于 go-toolbox 工具库                           ║
║                                                          ║
╚══════════════════════════════════════════════════════════╝
`)
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Println("go-ipopt version 1.0.0")
	fmt.Println("代理端点自动优选工具")
}

// printSimpleUsage 打印简化的使用说明
func printSimpleUsage() {
	fmt.Println("\n使用方法:")
	flag.Usage()

	fmt.Println("\n常用子命令:")
	fmt.Println("  go-ipopt help           - 显示完整帮助信息")
	fmt.Println("  go-ipopt examples       - 显示详细使用示例")
	fmt.Println("  go-ipopt version        - 显示版本信息")

	fmt.Println("\n快速开始:")
	fmt.Println("  # 单轮优选")
	fmt.Println("  go-ipopt -config config.yaml")
	fmt.Println("")
	fmt.Println("  # 循环优选")
	fmt.Println("  go-ipopt -config config.yaml -mode loop")
	fmt.Println("")
	fmt.Println("  # 复用已有扫描结果")
	fmt.Println("  go-ipopt -config config.yaml -skip-selection")
}

// printExamplesHelp 打印示例帮助
func printExamplesHelp() {
	fmt.Println("\n基本示例:")
	examples := []string{
		"# 默认配置单轮优选（需要当前目录有 cfst/xray/config.json）",
		"go-ipopt",
		"",
		"# 循环优选，每 60s 一轮",
		"go-ipopt -config config.yaml -mode loop",
		"",
		"# SQLite 归档（支持历史查询）",
		"go-ipopt -config config.yaml -storage sqlite -archive-path history.db",
		"",
		"# 跳过扫描，直接测速已有候选",
		"go-ipopt -skip-selection",
		"",
		"# 内存限制",
		"go-ipopt -config config.yaml -max-memory 512MB",
	}
	for _, example := range examples {
		fmt.Println(example)
	}

	fmt.Println("\n配置文件示例 (config.yaml):")
	printConfigExample()
}

func printConfigExample() {
	fmt.Println("mode: loop")
	fmt.Println("merge_previous: true")
	fmt.Println("scan:")
	fmt.Println("  binary: ./cfst")
	fmt.Println("  screen_min: 50")
	fmt.Println("xray:")
	fmt.Println("  binary: ./xray")
	fmt.Println("  main_config: config.json")
	fmt.Println("coarse:")
	fmt.Println("  candidates: 10")
	fmt.Println("  probes: 5")
	fmt.Println("  passes: 2")
	fmt.Println("elite:")
	fmt.Println("  candidates: 3")
	fmt.Println("  timeout: 15")
	fmt.Println("thresholds:")
	fmt.Println("  min_improvement: 1.0")
	fmt.Println("  min_improvement_pct: 5.0")
	fmt.Println("archive:")
	fmt.Println("  mode: csv")
	fmt.Println("  path: test.csv")
}
