/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-10 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-21 16:33:08
 * @FilePath: \go-ipopt\config\config.go
 * @Description: 优选配置结构定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"os"
	"time"

	"github.com/kamalyes/go-ipopt/types"
)

// StageParams 漏斗单阶段测速参数
type StageParams struct {
	Candidates int    `yaml:"candidates" json:"candidates"`   // 参与本阶段的候选数量上限
	Probes     int    `yaml:"probes" json:"probes"`           // 每轮探测次数
	Passes     int    `yaml:"passes" json:"passes"`           // 独立轮数（取各轮均值的最大值）
	Timeout    int    `yaml:"timeout" json:"timeout"`         // 单次探测超时（秒）
	PayloadURL string `yaml:"payload_url" json:"payload_url"` // 测速负载地址
}

// TimeoutDuration 探测超时时长
func (p *StageParams) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// ScanConfig 扫描器（cfst）配置
type ScanConfig struct {
	Binary     string `yaml:"binary" json:"binary"`           // cfst 可执行文件路径
	ResultFile string `yaml:"result_file" json:"result_file"` // 扫描结果 CSV 路径
	PreIPFile  string `yaml:"preip_file" json:"preip_file"`   // 精选 IP 列表路径
	ScreenMin  int    `yaml:"screen_min" json:"screen_min"`   // 海选最小产出数量
	RefineMax  int    `yaml:"refine_max" json:"refine_max"`   // 精选输入上限
	ExtraArgs  string `yaml:"extra_args" json:"extra_args"`   // 附加命令行参数
}

// XrayConfig 代理进程配置
type XrayConfig struct {
	Binary       string `yaml:"binary" json:"binary"`               // xray 可执行文件路径
	MainConfig   string `yaml:"main_config" json:"main_config"`     // 线上主配置（基准来源与晋升目标）
	TempDir      string `yaml:"temp_dir" json:"temp_dir"`           // 临时配置目录
	LogFile      string `yaml:"log_file" json:"log_file"`           // 临时进程日志
	PortMin      int    `yaml:"port_min" json:"port_min"`           // 临时入站端口下界
	PortMax      int    `yaml:"port_max" json:"port_max"`           // 临时入站端口上界
	SettleMillis int    `yaml:"settle_millis" json:"settle_millis"` // 进程监听等待上限（毫秒）
	GraceMillis  int    `yaml:"grace_millis" json:"grace_millis"`   // 终止宽限（毫秒）
}

// SettleDuration 监听等待时长
func (x *XrayConfig) SettleDuration() time.Duration {
	return time.Duration(x.SettleMillis) * time.Millisecond
}

// GraceDuration 终止宽限时长
func (x *XrayConfig) GraceDuration() time.Duration {
	return time.Duration(x.GraceMillis) * time.Millisecond
}

// ThresholdConfig 晋升阈值
type ThresholdConfig struct {
	MinImprovement    float64 `yaml:"min_improvement" json:"min_improvement"`         // 绝对阈值（Mbit/s）
	MinImprovementPct float64 `yaml:"min_improvement_pct" json:"min_improvement_pct"` // 相对阈值（%）
}

// PacingConfig 节奏控制
type PacingConfig struct {
	ProbeDelay   int `yaml:"probe_delay" json:"probe_delay"`     // 相邻探测间隔（秒）
	PassDelay    int `yaml:"pass_delay" json:"pass_delay"`       // 相邻轮次间隔（秒）
	LoopInterval int `yaml:"loop_interval" json:"loop_interval"` // 循环模式轮次间隔（秒）
}

// ProbeDelayDuration 相邻探测间隔时长
func (p *PacingConfig) ProbeDelayDuration() time.Duration {
	return time.Duration(p.ProbeDelay) * time.Second
}

// PassDelayDuration 相邻轮次间隔时长
func (p *PacingConfig) PassDelayDuration() time.Duration {
	return time.Duration(p.PassDelay) * time.Second
}

// LoopIntervalDuration 循环轮次间隔时长
func (p *PacingConfig) LoopIntervalDuration() time.Duration {
	return time.Duration(p.LoopInterval) * time.Second
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	Mode types.StorageMode `yaml:"mode" json:"mode"` // 归档存储模式
	Path string            `yaml:"path" json:"path"` // 归档路径（csv 文件 / sqlite 文件 / badger 目录）
}

// RealtimeConfig 实时状态服务配置
type RealtimeConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"` // 是否启用 WebSocket 状态推送
	Addr    string `yaml:"addr" json:"addr"`       // 监听地址
}

// MonitorConfig 资源监控配置
type MonitorConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"` // 是否启用本机资源监控
}

// Config 优选总配置
type Config struct {
	Mode          types.RunMode `yaml:"mode" json:"mode"`                     // once / loop
	SkipSelection bool          `yaml:"skip_selection" json:"skip_selection"` // 跳过扫描，直接复用已有结果文件
	MergePrevious bool          `yaml:"merge_previous" json:"merge_previous"` // 将历史晋级 IP 并入候选

	Scan       ScanConfig      `yaml:"scan" json:"scan"`
	Xray       XrayConfig      `yaml:"xray" json:"xray"`
	Coarse     StageParams     `yaml:"coarse" json:"coarse"`     // 粗测阶段
	Elite      StageParams     `yaml:"elite" json:"elite"`       // 精测阶段
	Baseline   StageParams     `yaml:"baseline" json:"baseline"` // 基准复测
	Thresholds ThresholdConfig `yaml:"thresholds" json:"thresholds"`
	Pacing     PacingConfig    `yaml:"pacing" json:"pacing"`
	Archive    ArchiveConfig   `yaml:"archive" json:"archive"`
	Realtime   RealtimeConfig  `yaml:"realtime" json:"realtime"`
	Monitor    MonitorConfig   `yaml:"monitor" json:"monitor"`

	LogLevel string `yaml:"log_level" json:"log_level"` // 日志级别
	LogFile  string `yaml:"log_file" json:"log_file"`   // 日志文件（空则仅控制台）
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Mode:          types.RunModeOnce,
		SkipSelection: false,
		MergePrevious: true,
		Scan: ScanConfig{
			Binary:     "./cfst",
			ResultFile: "result.csv",
			PreIPFile:  "preip.txt",
			ScreenMin:  50,
			RefineMax:  100,
		},
		Xray: XrayConfig{
			Binary:       "./xray",
			MainConfig:   "config.json",
			TempDir:      os.TempDir(),
			LogFile:      "xray_probe.log",
			PortMin:      20800,
			PortMax:      20899,
			SettleMillis: 3000,
			GraceMillis:  3000,
		},
		Coarse: StageParams{
			Candidates: 10,
			Probes:     5,
			Passes:     2,
			Timeout:    3,
			PayloadURL: "https://speed.cloudflare.com/__down?bytes=1000000",
		},
		Elite: StageParams{
			Candidates: 3,
			Probes:     1,
			Passes:     1,
			Timeout:    15,
			PayloadURL: "https://speed.cloudflare.com/__down?bytes=30000000",
		},
		// 基准复测与精测同参，保证与挑战者可比
		Baseline: StageParams{
			Candidates: 1,
			Probes:     1,
			Passes:     1,
			Timeout:    15,
			PayloadURL: "https://speed.cloudflare.com/__down?bytes=30000000",
		},
		Thresholds: ThresholdConfig{
			MinImprovement:    1.0,
			MinImprovementPct: 5.0,
		},
		Pacing: PacingConfig{
			ProbeDelay:   1,
			PassDelay:    2,
			LoopInterval: 60,
		},
		Archive: ArchiveConfig{
			Mode: types.StorageModeCSV,
			Path: "test.csv",
		},
		Realtime: RealtimeConfig{
			Enabled: false,
			Addr:    ":18090",
		},
		Monitor: MonitorConfig{
			Enabled: false,
		},
		LogLevel: "info",
	}
}
