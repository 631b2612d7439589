/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-25 11:40:18
 * @FilePath: \go-ipopt\archive\badger.go
 * @Description: BadgerDB 归档 - LSM-Tree 键值存储适配
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

// BadgerArchive BadgerDB 归档（实现 Interface）
//
// 键格式 record:<纳秒时间戳>:<run_id>:<rank>，按键序即按时间序。
type BadgerArchive struct {
	db     *badger.DB
	logger logger.ILogger
}

// NewBadgerArchive 创建 BadgerDB 归档
func NewBadgerArchive(dbPath string, log logger.ILogger) (*BadgerArchive, error) {
	opts := badger.DefaultOptions(dbPath).
		WithLoggingLevel(badger.WARNING).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(64 << 20).
		WithSyncWrites(false).
		WithDetectConflicts(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开 BadgerDB 失败: %w", err)
	}

	log.Infof("🗄️  BadgerDB 归档已启用: %s", dbPath)
	return &BadgerArchive{db: db, logger: log}, nil
}

// Append 追加一轮运行的记录（单事务）
func (a *BadgerArchive) Append(records []types.RunRecord) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			key := fmt.Sprintf("record:%019d:%s:%s", r.Time.UnixNano(), r.RunID, r.Rank)
			value, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("序列化记录失败: %w", err)
			}
			if err := txn.Set([]byte(key), value); err != nil {
				return fmt.Errorf("写入记录失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.logger.Debugf("📝 BadgerDB 归档追加 %d 条记录", len(records))
	return nil
}

// RecentIPs 返回最近记录过的端点地址（逆序迭代）
func (a *BadgerArchive) RecentIPs(limit int) ([]string, error) {
	seen := make(map[string]struct{})
	ips := make([]string, 0, limit)

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// 逆序迭代需从前缀上界起步
		for it.Seek([]byte("record:\xff")); it.ValidForPrefix([]byte("record:")); it.Next() {
			if len(ips) >= limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var r types.RunRecord
				if err := json.Unmarshal(value, &r); err != nil {
					return nil // 跳过坏记录
				}
				if _, ok := seen[r.IP]; !ok && r.IP != "" {
					seen[r.IP] = struct{}{}
					ips = append(ips, r.IP)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ips, err
}

// Close 关闭数据库
func (a *BadgerArchive) Close() error {
	return a.db.Close()
}
