/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 21:30:54
 * @FilePath: \go-ipopt\archive\factory_test.go
 * @Description: 归档工厂测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"path/filepath"
	"testing"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

func TestFactory(t *testing.T) {
	log := logger.NewLogger(nil)
	factory := NewFactory(log)

	t.Run("SupportedModes", func(t *testing.T) {
		modes := factory.SupportedModes()
		assert.Equal(t, 4, len(modes))
		assert.Contains(t, modes, types.StorageModeCSV)
		assert.Contains(t, modes, types.StorageModeSQLite)
		assert.Contains(t, modes, types.StorageModeBadger)
		assert.Contains(t, modes, types.StorageModeMemory)
	})

	t.Run("nil配置报错", func(t *testing.T) {
		_, err := factory.Create(nil)
		assert.Error(t, err)
	})

	t.Run("缺少路径报错", func(t *testing.T) {
		for _, mode := range []types.StorageMode{types.StorageModeCSV, types.StorageModeSQLite, types.StorageModeBadger} {
			_, err := factory.Create(&config.ArchiveConfig{Mode: mode})
			assert.Error(t, err, string(mode))
		}
	})

	t.Run("未知模式报错", func(t *testing.T) {
		_, err := factory.Create(&config.ArchiveConfig{Mode: "redis", Path: "x"})
		assert.Error(t, err)
	})

	t.Run("CreateMemory", func(t *testing.T) {
		store, err := factory.Create(&config.ArchiveConfig{Mode: types.StorageModeMemory})
		assert.NoError(t, err)
		assert.NotNil(t, store)
		defer store.Close()

		assert.NoError(t, store.Append([]types.RunRecord{record("run-1", "1", "1.1.1.1", 10)}))
		ips, err := store.RecentIPs(5)
		assert.NoError(t, err)
		assert.Equal(t, []string{"1.1.1.1"}, ips)
	})

	t.Run("CreateCSV", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.csv")
		store, err := factory.Create(&config.ArchiveConfig{Mode: types.StorageModeCSV, Path: path})
		assert.NoError(t, err)
		assert.NotNil(t, store)
		store.Close()
	})

	t.Run("CreateSQLite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")
		store, err := factory.Create(&config.ArchiveConfig{Mode: types.StorageModeSQLite, Path: path})
		assert.NoError(t, err)
		defer store.Close()

		assert.NoError(t, store.Append([]types.RunRecord{
			record("run-1", "1", "1.1.1.1", 10),
			record("run-2", "1", "2.2.2.2", 12),
		}))

		ips, err := store.RecentIPs(10)
		assert.NoError(t, err)
		assert.Len(t, ips, 2)
	})
}
