/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 22:10:36
 * @FilePath: \go-ipopt\xray\session_test.go
 * @Description: 会话启动器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package xray

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

func TestAllocatePort(t *testing.T) {
	log := logger.NewLogger(nil)

	t.Run("跳过被占用的端口对", func(t *testing.T) {
		cfg := &config.XrayConfig{PortMin: 21700, PortMax: 21710}
		launcher := NewLauncher(cfg, log)

		// 占住第一对端口的前一个
		ln, err := net.Listen("tcp", "127.0.0.1:21700")
		assert.NoError(t, err)
		defer ln.Close()

		port, err := launcher.allocatePort()
		assert.NoError(t, err)
		assert.Equal(t, 21702, port)
	})

	t.Run("区间内无空闲端口对报错", func(t *testing.T) {
		cfg := &config.XrayConfig{PortMin: 21720, PortMax: 21722}
		launcher := NewLauncher(cfg, log)

		ln, err := net.Listen("tcp", "127.0.0.1:21721")
		assert.NoError(t, err)
		defer ln.Close()

		_, err = launcher.allocatePort()
		assert.Error(t, err)
	})
}

// fakeXrayConfig 用常驻脚本顶替 xray 二进制，子进程不真正监听
func fakeXrayConfig(t *testing.T, dir string, portMin, portMax, settleMillis int) *config.XrayConfig {
	t.Helper()

	binary := filepath.Join(dir, "fake_xray.sh")
	assert.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\nexec sleep 30\n"), 0755))

	mainConfig := filepath.Join(dir, "config.json")
	assert.NoError(t, os.WriteFile(mainConfig, []byte(sampleConfig), 0644))

	return &config.XrayConfig{
		Binary:       binary,
		MainConfig:   mainConfig,
		TempDir:      dir,
		LogFile:      filepath.Join(dir, "probe.log"),
		PortMin:      portMin,
		PortMax:      portMax,
		SettleMillis: settleMillis,
		GraceMillis:  1000,
	}
}

func tempConfigs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "ipopt-*.json"))
	assert.NoError(t, err)
	return matches
}

func TestSessionLifecycle(t *testing.T) {
	log := logger.NewLogger(nil)

	t.Run("就绪后关闭回收进程并清理临时配置", func(t *testing.T) {
		dir := t.TempDir()
		launcher := NewLauncher(fakeXrayConfig(t, dir, 21740, 21746, 3000), log)

		type launched struct {
			session *Session
			err     error
		}
		done := make(chan launched, 1)
		go func() {
			s, err := launcher.Launch(context.Background(), "5.6.7.8")
			done <- launched{s, err}
		}()

		// 临时配置落盘即端口已定，由测试代为监听以满足就绪探测
		var cfgPath string
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if matches := tempConfigs(t, dir); len(matches) == 1 {
				cfgPath = matches[0]
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		assert.NotEmpty(t, cfgPath)

		doc, err := LoadDocument(cfgPath)
		assert.NoError(t, err)
		port, err := doc.InboundPort(types.ProtocolSocks)
		assert.NoError(t, err)

		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		assert.NoError(t, err)
		defer ln.Close()

		res := <-done
		assert.NoError(t, res.err)
		assert.Equal(t, "5.6.7.8", res.session.IP())

		assert.NoError(t, res.session.Close())

		// 临时配置已清理
		_, statErr := os.Stat(cfgPath)
		assert.True(t, os.IsNotExist(statErr))

		// 子进程已退出
		select {
		case <-res.session.done:
		case <-time.After(3 * time.Second):
			t.Fatal("关闭后子进程仍未退出")
		}
	})

	t.Run("就绪超时路径不留残余", func(t *testing.T) {
		dir := t.TempDir()
		launcher := NewLauncher(fakeXrayConfig(t, dir, 21750, 21756, 300), log)

		_, err := launcher.Launch(context.Background(), "5.6.7.8")
		assert.ErrorIs(t, err, ErrStartFailed)
		assert.Empty(t, tempConfigs(t, dir))
	})
}

func TestPortFree(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.False(t, portFree(port))

	ln.Close()
	assert.True(t, portFree(port))
}
