/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-25 13:21:44
 * @FilePath: \go-ipopt\archive\factory.go
 * @Description: 归档工厂 - 统一创建不同类型的归档适配器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"fmt"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
)

// Factory 归档工厂
type Factory struct {
	logger logger.ILogger
}

// NewFactory 创建归档工厂
func NewFactory(log logger.ILogger) *Factory {
	return &Factory{
		logger: log,
	}
}

// Create 创建归档实例
func (f *Factory) Create(cfg *config.ArchiveConfig) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("归档配置不能为空")
	}

	f.logger.Infof("📦 创建归档实例: mode=%s, path=%s", cfg.Mode, cfg.Path)

	switch cfg.Mode {
	case types.StorageModeCSV:
		if cfg.Path == "" {
			return nil, fmt.Errorf("CSV 归档需要指定 path 参数")
		}
		return NewCSVArchive(cfg.Path, f.logger)

	case types.StorageModeSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("SQLite 归档需要指定 path 参数")
		}
		return NewSQLiteArchive(cfg.Path, f.logger)

	case types.StorageModeBadger:
		if cfg.Path == "" {
			return nil, fmt.Errorf("BadgerDB 归档需要指定 path 参数")
		}
		return NewBadgerArchive(cfg.Path, f.logger)

	case types.StorageModeMemory:
		return NewMemoryArchive(), nil

	default:
		return nil, fmt.Errorf("不支持的归档模式: %s (支持: csv, sqlite, badger, memory)", cfg.Mode)
	}
}

// SupportedModes 返回支持的归档模式列表
func (f *Factory) SupportedModes() []types.StorageMode {
	return []types.StorageMode{
		types.StorageModeCSV,
		types.StorageModeSQLite,
		types.StorageModeBadger,
		types.StorageModeMemory,
	}
}
