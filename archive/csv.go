/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-24 19:05:47
 * @FilePath: \go-ipopt\archive\csv.go
 * @Description: CSV 归档 - 追加写入本地文件，表头只写一次
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

// CSVArchive CSV 文件归档（实现 Interface）
type CSVArchive struct {
	path   string
	mu     sync.Mutex
	logger logger.ILogger
}

// NewCSVArchive 创建 CSV 归档
func NewCSVArchive(path string, log logger.ILogger) (*CSVArchive, error) {
	a := &CSVArchive{
		path:   path,
		logger: log,
	}
	// 提前校验可写性，避免一轮测速结束后才发现写不进去
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开归档文件失败: %w", err)
	}
	f.Close()
	return a, nil
}

// Append 追加记录（文件为空时先写表头）
func (a *CSVArchive) Append(records []types.RunRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开归档文件失败: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("读取归档文件信息失败: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}

	for _, r := range records {
		row := []string{
			r.RunID,
			r.Rank,
			r.IP,
			strconv.FormatFloat(r.Speed, 'f', 2, 64),
			string(r.Status),
			r.Time.Format(timeLayout),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("写入记录失败: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("刷新归档失败: %w", err)
	}

	a.logger.Debugf("📝 CSV 归档追加 %d 条记录: %s", len(records), a.path)
	return nil
}

// RecentIPs 返回最近记录过的端点地址
func (a *CSVArchive) RecentIPs(limit int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("打开归档文件失败: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取归档失败: %w", err)
	}

	// 倒序扫描取最近的去重 IP
	seen := make(map[string]struct{})
	ips := make([]string, 0, limit)
	for i := len(rows) - 1; i >= 1 && len(ips) < limit; i-- {
		row := rows[i]
		if len(row) < 3 || row[2] == "" {
			continue
		}
		if _, ok := seen[row[2]]; ok {
			continue
		}
		seen[row[2]] = struct{}{}
		ips = append(ips, row[2])
	}
	return ips, nil
}

// Close 关闭归档（CSV 无持有资源）
func (a *CSVArchive) Close() error {
	return nil
}
