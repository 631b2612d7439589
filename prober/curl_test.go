/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 20:15:48
 * @FilePath: \go-ipopt\prober\curl_test.go
 * @Description: curl 探测器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package prober

import (
	"testing"

	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := NewCurlProber(logger.NewLogger(nil))

	t.Run("正常输出换算十进制速率", func(t *testing.T) {
		// 1,000,000 字节 / 2 秒 = 4 Mbit/s
		r := p.parse("time_total=2.000000|time_starttransfer=0.150000|size_download=1000000|speed_download=500000")

		assert.Equal(t, types.StatusOK, r.Status)
		assert.InDelta(t, 4.0, r.Speed, 1e-9)
		assert.InDelta(t, 2.0, r.TimeTotal, 1e-9)
		assert.InDelta(t, 0.15, r.StartTransfer, 1e-9)
	})

	t.Run("零下载按传输失败处理", func(t *testing.T) {
		r := p.parse("time_total=1.500000|time_starttransfer=0.000000|size_download=0|speed_download=0")
		assert.Equal(t, types.StatusTransferFailed, r.Status)
		assert.Equal(t, 0.0, r.Speed)
		assert.Error(t, r.Err)
	})

	t.Run("缺少必需字段报解析失败", func(t *testing.T) {
		r := p.parse("time_starttransfer=0.1")
		assert.Equal(t, types.StatusParseFailed, r.Status)
	})

	t.Run("非数字字段报解析失败", func(t *testing.T) {
		r := p.parse("time_total=abc|size_download=100")
		assert.Equal(t, types.StatusParseFailed, r.Status)
	})

	t.Run("容忍首尾空白", func(t *testing.T) {
		r := p.parse("  time_total=1.0|time_starttransfer=0.1|size_download=125000|speed_download=125000\n")
		assert.Equal(t, types.StatusOK, r.Status)
		assert.InDelta(t, 1.0, r.Speed, 1e-9)
	})
}
