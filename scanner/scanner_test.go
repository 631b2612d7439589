/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 17:40:15
 * @FilePath: \go-ipopt\scanner\scanner_test.go
 * @Description: 扫描器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

const sampleCSV = `IP 地址,已发送,已接收,丢包率,平均延迟,下载速度 (MB/s)
104.16.1.1,4,4,0.00,42.15,12.34
104.16.2.2,4,3,0.25,55.60,8.00
104.16.3.3,4,4,0.00,38.02,
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseResultCSV(t *testing.T) {
	dir := t.TempDir()

	t.Run("解析表头与数据行", func(t *testing.T) {
		path := writeFile(t, dir, "result.csv", sampleCSV)
		candidates, err := ParseResultCSV(path)

		assert.NoError(t, err)
		assert.Len(t, candidates, 3)
		assert.Equal(t, "104.16.1.1", candidates[0].IP)
		assert.InDelta(t, 42.15, candidates[0].Latency, 1e-9)
		assert.InDelta(t, 0.25, candidates[1].LossRate, 1e-9)
	})

	t.Run("只有表头返回空", func(t *testing.T) {
		path := writeFile(t, dir, "empty.csv", "IP 地址,已发送,已接收,丢包率,平均延迟,下载速度 (MB/s)\n")
		candidates, err := ParseResultCSV(path)
		assert.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("文件不存在报错", func(t *testing.T) {
		_, err := ParseResultCSV(filepath.Join(dir, "missing.csv"))
		assert.Error(t, err)
	})
}

func TestDedupeIPs(t *testing.T) {
	ips := DedupeIPs([]string{"1.1.1.1", " 2.2.2.2 ", "1.1.1.1", "", "3.3.3.3", "2.2.2.2"})
	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}, ips)
}

func TestWritePreIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preip.txt")
	assert.NoError(t, WritePreIP(path, []string{"1.1.1.1", "2.2.2.2"}))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "1.1.1.1\n2.2.2.2\n", string(data))
}

func TestTopIPs(t *testing.T) {
	candidates := []types.Candidate{{IP: "a"}, {IP: "b"}, {IP: "c"}}

	assert.Equal(t, []string{"a", "b"}, TopIPs(candidates, 2))
	// 请求数量超过候选数时全量返回
	assert.Equal(t, []string{"a", "b", "c"}, TopIPs(candidates, 10))
	assert.Empty(t, TopIPs(nil, 3))
}

func newTestScanner(t *testing.T, dir string) (*Scanner, *config.ScanConfig) {
	t.Helper()
	cfg := &config.ScanConfig{
		Binary:     "./cfst",
		ResultFile: filepath.Join(dir, "result.csv"),
		PreIPFile:  filepath.Join(dir, "preip.txt"),
		ScreenMin:  2,
		RefineMax:  2,
	}
	return NewScanner(cfg, logger.NewLogger(nil)), cfg
}

func TestSelect(t *testing.T) {
	t.Run("跳过扫描直接读取已有结果", func(t *testing.T) {
		dir := t.TempDir()
		s, cfg := newTestScanner(t, dir)
		writeFile(t, dir, "result.csv", sampleCSV)

		calls := 0
		s.run = func(ctx context.Context, args ...string) error {
			calls++
			return nil
		}

		candidates, err := s.Select(context.Background(), true, []string{"9.9.9.9", "104.16.1.1"})
		assert.NoError(t, err)
		assert.Equal(t, 0, calls)

		// 历史 IP 并入且去重（104.16.1.1 已在结果中）
		assert.Len(t, candidates, 4)
		assert.Equal(t, "9.9.9.9", candidates[3].IP)
		_ = cfg
	})

	t.Run("完整海选加精选流程", func(t *testing.T) {
		dir := t.TempDir()
		s, cfg := newTestScanner(t, dir)

		var gotArgs [][]string
		s.run = func(ctx context.Context, args ...string) error {
			gotArgs = append(gotArgs, args)
			return os.WriteFile(cfg.ResultFile, []byte(sampleCSV), 0644)
		}

		candidates, err := s.Select(context.Background(), false, []string{"9.9.9.9"})
		assert.NoError(t, err)
		assert.Len(t, candidates, 3)
		assert.Len(t, gotArgs, 2)

		// 精选扫描带名单文件
		assert.Contains(t, gotArgs[1], "-f")

		// 名单 = 海选前 RefineMax 个 + 历史 IP
		data, err := os.ReadFile(cfg.PreIPFile)
		assert.NoError(t, err)
		assert.Equal(t, "104.16.1.1\n104.16.2.2\n9.9.9.9\n", string(data))
	})
}

func TestScreenRetry(t *testing.T) {
	dir := t.TempDir()
	s, cfg := newTestScanner(t, dir)
	cfg.ScreenMin = 3

	// 第一次只产出 1 个，第二次产出达标
	short := "IP 地址,已发送,已接收,丢包率,平均延迟,下载速度 (MB/s)\n104.16.1.1,4,4,0.00,42.15,12.34\n"
	calls := 0
	s.run = func(ctx context.Context, args ...string) error {
		calls++
		content := short
		if calls >= 2 {
			content = sampleCSV
		}
		return os.WriteFile(cfg.ResultFile, []byte(content), 0644)
	}

	candidates, err := s.Screen(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, candidates, 3)
}
