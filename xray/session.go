/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-11 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-23 09:28:54
 * @FilePath: \go-ipopt\xray\session.go
 * @Description: 临时 xray 会话（启动、就绪探测、强制回收）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package xray

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
)

// 就绪轮询间隔
const readyPollInterval = 100 * time.Millisecond

// 启动失败分类哨兵
var (
	ErrConfigBuild = errors.New("临时配置构建失败")
	ErrStartFailed = errors.New("xray 启动失败")
)

// Session 一次临时代理会话，生命周期绑定单个候选 IP 的探测
type Session struct {
	ip       string
	port     int
	cfgPath  string
	cmd      *exec.Cmd
	logFile  *os.File
	grace    time.Duration
	logger   logger.ILogger
	done     chan struct{} // 进程退出后关闭
	waitErr  error
	closeOne sync.Once
}

// IP 会话绑定的候选地址
func (s *Session) IP() string {
	return s.ip
}

// ProxyAddr 本地 SOCKS5 入站地址
func (s *Session) ProxyAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

// Close 回收会话：先礼后兵（SIGTERM → 宽限 → SIGKILL），并清理临时配置
func (s *Session) Close() error {
	var err error
	s.closeOne.Do(func() {
		err = s.terminate()
		if s.cfgPath != "" {
			if rmErr := os.Remove(s.cfgPath); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Warnf("⚠️  清理临时配置失败: %v", rmErr)
			}
		}
		if s.logFile != nil {
			s.logFile.Close()
		}
	})
	return err
}

// terminate 终止子进程
func (s *Session) terminate() error {
	select {
	case <-s.done:
		return nil // 已自行退出
	default:
	}

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warnf("⚠️  发送 SIGTERM 失败: %v", err)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(s.grace):
	}

	s.logger.Warnf("💀 宽限期内未退出，强制终止 xray (pid=%d)", s.cmd.Process.Pid)
	if err := s.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("强制终止失败: %w", err)
	}
	<-s.done
	return nil
}

// Launcher 临时会话启动器
type Launcher struct {
	cfg    *config.XrayConfig
	logger logger.ILogger
}

// NewLauncher 创建会话启动器
func NewLauncher(cfg *config.XrayConfig, log logger.ILogger) *Launcher {
	return &Launcher{
		cfg:    cfg,
		logger: log,
	}
}

// Launch 为候选 IP 启动临时代理会话
//
// 流程：主配置改写目标地址 → 入站改为本地空闲端口 → 落盘临时配置 →
// 启动子进程 → 轮询端口直到监听或超时。任一步失败都不留下残余进程或文件。
func (l *Launcher) Launch(ctx context.Context, ip string) (*Session, error) {
	doc, err := LoadDocument(l.cfg.MainConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: 加载主配置失败: %v", ErrConfigBuild, err)
	}
	if err := doc.SetAddress(ip); err != nil {
		return nil, fmt.Errorf("%w: 改写出站地址失败: %v", ErrConfigBuild, err)
	}

	port, err := l.allocatePort()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigBuild, err)
	}
	if err := doc.Localize(port); err != nil {
		return nil, fmt.Errorf("%w: 本地化入站失败: %v", ErrConfigBuild, err)
	}

	cfgPath := filepath.Join(l.cfg.TempDir, fmt.Sprintf("ipopt-%s.json", uuid.New().String()[:8]))
	if err := doc.SaveTo(cfgPath); err != nil {
		return nil, fmt.Errorf("%w: 写入临时配置失败: %v", ErrConfigBuild, err)
	}

	session, err := l.start(ctx, ip, port, cfgPath)
	if err != nil {
		os.Remove(cfgPath)
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	return session, nil
}

// start 启动子进程并等待入站端口监听
func (l *Launcher) start(ctx context.Context, ip string, port int, cfgPath string) (*Session, error) {
	logFile, err := os.OpenFile(l.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开进程日志失败: %w", err)
	}

	cmd := exec.Command(l.cfg.Binary, "-c", cfgPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("启动 xray 失败: %w", err)
	}

	session := &Session{
		ip:      ip,
		port:    port,
		cfgPath: cfgPath,
		cmd:     cmd,
		logFile: logFile,
		grace:   l.cfg.GraceDuration(),
		logger:  l.logger,
		done:    make(chan struct{}),
	}

	go func() {
		session.waitErr = cmd.Wait()
		close(session.done)
	}()

	l.logger.Debugf("🚀 临时 xray 已启动: ip=%s, port=%d, pid=%d", ip, port, cmd.Process.Pid)

	if err := l.awaitReady(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// awaitReady 轮询入站端口，监听成功才算启动完成
func (l *Launcher) awaitReady(ctx context.Context, session *Session) error {
	deadline := time.After(l.cfg.SettleDuration())
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-session.done:
			return fmt.Errorf("xray 进程提前退出: %v", session.waitErr)
		case <-deadline:
			return fmt.Errorf("xray 端口 %d 在 %v 内未监听", session.port, l.cfg.SettleDuration())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", session.ProxyAddr(), readyPollInterval)
			if err == nil {
				conn.Close()
				l.logger.Debugf("✅ xray 入站就绪: %s", session.ProxyAddr())
				return nil
			}
		}
	}
}

// allocatePort 在配置区间内找一对空闲端口（socks 用 p，http 用 p+1）
func (l *Launcher) allocatePort() (int, error) {
	for port := l.cfg.PortMin; port < l.cfg.PortMax; port += 2 {
		if portFree(port) && portFree(port+1) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("端口区间 [%d, %d] 内无可用端口对", l.cfg.PortMin, l.cfg.PortMax)
}

// portFree 检查本地端口是否空闲
func portFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
