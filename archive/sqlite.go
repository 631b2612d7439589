/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-25 10:12:30
 * @FilePath: \go-ipopt\archive\sqlite.go
 * @Description: SQLite 归档 - 持久化运行记录，支持历史查询
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
	_ "github.com/mattn/go-sqlite3"
)

const tableRunRecords = "run_records"

// SQLiteArchive SQLite 归档（实现 Interface）
type SQLiteArchive struct {
	db     *sql.DB
	logger logger.ILogger
}

// NewSQLiteArchive 创建 SQLite 归档
func NewSQLiteArchive(dbPath string, log logger.ILogger) (*SQLiteArchive, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 仅支持单写多读
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warnf("⚠️  执行 %s 失败: %v", pragma, err)
		}
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		rank TEXT NOT NULL,
		ip TEXT NOT NULL,
		speed_mbps REAL NOT NULL,
		status TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON %s(run_id);
	CREATE INDEX IF NOT EXISTS idx_recorded_at ON %s(recorded_at);
	`, tableRunRecords, tableRunRecords, tableRunRecords)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	log.Infof("💾 SQLite 归档已启用: %s", dbPath)
	return &SQLiteArchive{db: db, logger: log}, nil
}

// Append 追加一轮运行的记录（单事务）
func (a *SQLiteArchive) Append(records []types.RunRecord) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (run_id, rank, ip, speed_mbps, status, recorded_at) VALUES (?, ?, ?, ?, ?, ?)",
		tableRunRecords))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("预编译插入语句失败: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.RunID, r.Rank, r.IP, r.Speed, string(r.Status), r.Time.Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("插入记录失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	a.logger.Debugf("📝 SQLite 归档追加 %d 条记录", len(records))
	return nil
}

// RecentIPs 返回最近记录过的端点地址
func (a *SQLiteArchive) RecentIPs(limit int) ([]string, error) {
	rows, err := a.db.Query(fmt.Sprintf(
		"SELECT ip FROM %s GROUP BY ip ORDER BY MAX(recorded_at) DESC, MAX(id) DESC LIMIT ?",
		tableRunRecords), limit)
	if err != nil {
		return nil, fmt.Errorf("查询历史记录失败: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("读取历史记录失败: %w", err)
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// Close 关闭数据库
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
