/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-23 14:51:26
 * @FilePath: \go-ipopt\prober\curl.go
 * @Description: 基于 curl 的单次传输探测
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package prober

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

const (
	// curl 退出码 28 表示 --max-time 触发
	curlExitTimeout = 28

	// TCP 建连超时（秒）
	connectTimeoutSec = 5

	// 子进程兜底超时 = 传输超时 + 2s，防止 curl 自身卡死
	processSlack = 2 * time.Second

	// -w 模板：竖线分隔的 key=value，便于稳定解析
	writeOutFormat = "time_total=%{time_total}|time_starttransfer=%{time_starttransfer}|size_download=%{size_download}|speed_download=%{speed_download}"
)

// Result 单次探测结果
type Result struct {
	Speed         float64           // 速率（Mbit/s，十进制换算）
	Status        types.ProbeStatus // 探测状态
	TimeTotal     float64           // 总耗时（秒）
	StartTransfer float64           // 首字节耗时（秒）
	SizeDownload  float64           // 下载字节数
	Err           error             // 失败原因（成功时为 nil）
}

// Prober 传输探测接口
type Prober interface {
	// Probe 经由本地代理对负载地址做一次计时传输
	Probe(ctx context.Context, proxyAddr, payloadURL string, timeout time.Duration) Result
}

// CurlProber 调用系统 curl 的探测器
type CurlProber struct {
	binary string
	logger logger.ILogger
}

// NewCurlProber 创建 curl 探测器
func NewCurlProber(log logger.ILogger) *CurlProber {
	return &CurlProber{
		binary: "curl",
		logger: log,
	}
}

// Probe 执行一次探测（实现 Prober）
func (p *CurlProber) Probe(ctx context.Context, proxyAddr, payloadURL string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout+processSlack)
	defer cancel()

	// --socks5-hostname 让域名在代理侧解析，与线上行为一致
	cmd := exec.CommandContext(ctx, p.binary,
		"-s",
		"--socks5-hostname", proxyAddr,
		"-o", "/dev/null",
		"-w", writeOutFormat,
		"--connect-timeout", strconv.Itoa(connectTimeoutSec),
		"--max-time", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64),
		payloadURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return p.classifyFailure(ctx, err)
	}

	return p.parse(string(output))
}

// classifyFailure 将执行错误归类为探测状态
func (p *CurlProber) classifyFailure(ctx context.Context, err error) Result {
	if ctx.Err() == context.DeadlineExceeded {
		return Result{Status: types.StatusTimeout, Err: err}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == curlExitTimeout {
			return Result{Status: types.StatusTimeout, Err: err}
		}
		p.logger.Debugf("🔌 curl 退出码 %d: %v", exitErr.ExitCode(), err)
		return Result{Status: types.StatusTransferFailed, Err: err}
	}

	return Result{Status: types.StatusUnexpectedError, Err: err}
}

// parse 解析 -w 输出并换算速率
func (p *CurlProber) parse(output string) Result {
	fields := make(map[string]float64, 4)
	for _, pair := range strings.Split(strings.TrimSpace(output), "|") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Result{
				Status: types.StatusParseFailed,
				Err:    fmt.Errorf("解析字段 %s 失败: %w", key, err),
			}
		}
		fields[strings.TrimSpace(key)] = num
	}

	timeTotal, okTime := fields["time_total"]
	sizeDownload, okSize := fields["size_download"]
	if !okTime || !okSize {
		return Result{
			Status: types.StatusParseFailed,
			Err:    fmt.Errorf("输出缺少必需字段: %q", output),
		}
	}

	if timeTotal <= 0 || sizeDownload <= 0 {
		return Result{
			Status:        types.StatusTransferFailed,
			TimeTotal:     timeTotal,
			SizeDownload:  sizeDownload,
			StartTransfer: fields["time_starttransfer"],
			Err:           fmt.Errorf("传输无有效数据: time=%.3fs size=%.0fB", timeTotal, sizeDownload),
		}
	}

	return Result{
		// 十进制 Mbit/s：字节×8 / 秒 / 1e6
		Speed:         sizeDownload * 8 / timeTotal / 1e6,
		Status:        types.StatusOK,
		TimeTotal:     timeTotal,
		StartTransfer: fields["time_starttransfer"],
		SizeDownload:  sizeDownload,
	}
}
