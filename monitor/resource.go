/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-27 11:14:09
 * @FilePath: \go-ipopt\monitor\resource.go
 * @Description: 资源监控器 - 测速期间观察本机负载，避免资源挤占污染测速
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// ResourceUsage 资源使用快照
type ResourceUsage struct {
	Timestamp      time.Time `json:"timestamp"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryPercent  float64   `json:"memory_percent"`
	MemoryUsed     int64     `json:"memory_used"`
	MemoryTotal    int64     `json:"memory_total"`
	LoadAverage    float64   `json:"load_average"`
	NetworkInMbps  float64   `json:"network_in_mbps"`
	NetworkOutMbps float64   `json:"network_out_mbps"`
}

// ResourceMonitor 资源监控器
//
// 测速结果对本机 CPU 与带宽占用敏感，监控器在测速期间周期性
// 采样，负载异常时告警提示本轮数据可信度存疑。
type ResourceMonitor struct {
	mu             *syncx.RWLock
	logger         logger.ILogger
	updateInterval time.Duration
	lastNetIO      *net.IOCountersStat
	lastNetIOTime  time.Time
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(log logger.ILogger, interval time.Duration) *ResourceMonitor {
	return &ResourceMonitor{
		mu:             syncx.NewRWLock(),
		logger:         log,
		updateInterval: interval,
		lastNetIOTime:  time.Now(),
	}
}

// Start 启动资源监控（阻塞直到 ctx 取消，通常放在独立协程）
func (rm *ResourceMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(rm.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			usage, err := rm.GetResourceUsage()
			if err != nil {
				rm.logger.ErrorContextKV(ctx, "Failed to get resource usage", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}

			rm.logger.DebugContextKV(ctx, "Resource usage updated", map[string]interface{}{
				"cpu_percent":    usage.CPUPercent,
				"memory_percent": usage.MemoryPercent,
				"load_average":   usage.LoadAverage,
				"net_in_mbps":    usage.NetworkInMbps,
			})

			if healthy, reason := rm.check(usage); !healthy {
				rm.logger.Warnf("⚠️  本机负载异常，本轮测速结果可信度存疑: %s", reason)
			}
		}
	}
}

// GetResourceUsage 获取当前资源使用情况
func (rm *ResourceMonitor) GetResourceUsage() (*ResourceUsage, error) {
	usage := &ResourceUsage{
		Timestamp: time.Now(),
	}

	// CPU 使用率
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err == nil && len(cpuPercent) > 0 {
		usage.CPUPercent = cpuPercent[0]
	}

	// 内存使用情况
	vmStat, err := mem.VirtualMemory()
	if err == nil {
		usage.MemoryPercent = vmStat.UsedPercent
		usage.MemoryUsed = int64(vmStat.Used)
		usage.MemoryTotal = int64(vmStat.Total)
	}

	// 系统负载
	loadAvg, err := load.Avg()
	if err == nil {
		usage.LoadAverage = loadAvg.Load1
	}

	// 网络 IO 速率
	netIO, err := net.IOCounters(false)
	if err == nil && len(netIO) > 0 {
		currentIO := &netIO[0]
		currentTime := time.Now()

		rm.mu.Lock()
		if rm.lastNetIO != nil {
			duration := currentTime.Sub(rm.lastNetIOTime).Seconds()
			if duration > 0 {
				bytesInDiff := float64(currentIO.BytesRecv - rm.lastNetIO.BytesRecv)
				bytesOutDiff := float64(currentIO.BytesSent - rm.lastNetIO.BytesSent)
				usage.NetworkInMbps = (bytesInDiff * 8) / (1024 * 1024 * duration)
				usage.NetworkOutMbps = (bytesOutDiff * 8) / (1024 * 1024 * duration)
			}
		}
		rm.lastNetIO = currentIO
		rm.lastNetIOTime = currentTime
		rm.mu.Unlock()
	}

	return usage, nil
}

// check 资源健康判断
func (rm *ResourceMonitor) check(usage *ResourceUsage) (bool, string) {
	if usage.CPUPercent > 95 {
		return false, "CPU usage too high"
	}
	if usage.MemoryPercent > 95 {
		return false, "Memory usage too high"
	}
	numCPU := runtime.NumCPU()
	if usage.LoadAverage > float64(numCPU*2) {
		return false, "System load too high"
	}
	return true, ""
}
