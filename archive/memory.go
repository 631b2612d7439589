/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-25 11:58:02
 * @FilePath: \go-ipopt\archive\memory.go
 * @Description: 内存归档 - 进程内保存，测试与 dry-run 使用
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// MemoryArchive 内存归档（实现 Interface）
type MemoryArchive struct {
	lock    *syncx.RWLock
	records []types.RunRecord
}

// NewMemoryArchive 创建内存归档
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		lock: syncx.NewRWLock(),
	}
}

// Append 追加记录
func (a *MemoryArchive) Append(records []types.RunRecord) error {
	syncx.WithLock(a.lock, func() {
		a.records = append(a.records, records...)
	})
	return nil
}

// RecentIPs 返回最近记录过的端点地址
func (a *MemoryArchive) RecentIPs(limit int) ([]string, error) {
	var ips []string
	syncx.WithRLock(a.lock, func() {
		seen := make(map[string]struct{})
		for i := len(a.records) - 1; i >= 0 && len(ips) < limit; i-- {
			ip := a.records[i].IP
			if ip == "" {
				continue
			}
			if _, ok := seen[ip]; ok {
				continue
			}
			seen[ip] = struct{}{}
			ips = append(ips, ip)
		}
	})
	return ips, nil
}

// Records 返回全部记录副本（测试用）
func (a *MemoryArchive) Records() []types.RunRecord {
	var out []types.RunRecord
	syncx.WithRLock(a.lock, func() {
		out = make([]types.RunRecord, len(a.records))
		copy(out, a.records)
	})
	return out
}

// Close 关闭归档（内存模式无资源）
func (a *MemoryArchive) Close() error {
	return nil
}
