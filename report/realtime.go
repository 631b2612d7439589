/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-27 09:31:12
 * @FilePath: \go-ipopt\report\realtime.go
 * @Description: 实时状态服务器 - HTTP 快照 + WebSocket 推送
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package report

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// Status 运行状态快照
type Status struct {
	RunID      string             `json:"run_id"`
	Round      int                `json:"round"`      // 循环模式下的轮次序号
	Phase      string             `json:"phase"`      // 当前阶段描述
	StartedAt  time.Time          `json:"started_at"` // 本轮开始时间
	UpdatedAt  time.Time          `json:"updated_at"`
	Challenger *types.Measurement `json:"challenger,omitempty"`
	Baseline   *types.Measurement `json:"baseline,omitempty"`
	Decision   *types.Decision    `json:"decision,omitempty"`
}

// wsClient 单个订阅连接；写锁保证初始快照与广播不会交错写同一连接
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(status Status) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	return c.conn.WriteJSON(status)
}

// RealtimeServer 实时状态服务器
type RealtimeServer struct {
	addr     string
	status   Status
	mu       *syncx.RWLock
	clients  map[*websocket.Conn]*wsClient
	server   *http.Server
	upgrader websocket.Upgrader
	logger   logger.ILogger
	stopped  bool
}

// NewRealtimeServer 创建实时状态服务器
func NewRealtimeServer(addr string, log logger.ILogger) *RealtimeServer {
	return &RealtimeServer{
		addr:    addr,
		mu:      syncx.NewRWLock(),
		clients: make(map[*websocket.Conn]*wsClient),
		upgrader: websocket.Upgrader{
			// 状态只读，允许任意来源订阅
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Start 启动服务器（非阻塞）
func (s *RealtimeServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		s.logger.Infof("🌐 实时状态服务器启动: http://localhost%s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("实时状态服务器错误: %v", err)
		}
	}()
	return nil
}

// Stop 停止服务器并断开全部订阅
func (s *RealtimeServer) Stop() error {
	var already bool
	syncx.WithLock(s.mu, func() {
		already = s.stopped
		s.stopped = true
		for conn := range s.clients {
			conn.Close()
		}
		s.clients = make(map[*websocket.Conn]*wsClient)
	})
	if already || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return s.server.Close()
	}
	return nil
}

// UpdatePhase 更新当前阶段并广播
func (s *RealtimeServer) UpdatePhase(runID, phase string, round int) {
	syncx.WithLock(s.mu, func() {
		if s.status.RunID != runID {
			s.status = Status{RunID: runID, StartedAt: time.Now()}
		}
		s.status.Round = round
		s.status.Phase = phase
		s.status.UpdatedAt = time.Now()
	})
	s.broadcast()
}

// UpdateDecision 更新本轮决策并广播
func (s *RealtimeServer) UpdateDecision(d *types.Decision) {
	syncx.WithLock(s.mu, func() {
		baseline, challenger := d.Baseline, d.Challenger
		s.status.Baseline = &baseline
		s.status.Challenger = &challenger
		s.status.Decision = d
		s.status.UpdatedAt = time.Now()
	})
	s.broadcast()
}

// snapshot 取状态副本
func (s *RealtimeServer) snapshot() Status {
	var status Status
	syncx.WithRLock(s.mu, func() {
		status = s.status
	})
	return status
}

// handleStatus 返回状态快照
func (s *RealtimeServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(s.snapshot())
}

// handleWS 订阅状态推送
func (s *RealtimeServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("⚠️  WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	var total int
	syncx.WithLock(s.mu, func() {
		s.clients[conn] = client
		total = len(s.clients)
	})
	s.logger.Debugf("🔌 新订阅: %s (共 %d)", conn.RemoteAddr(), total)

	// 先推一帧当前状态
	s.send(client, s.snapshot())

	// 读循环只为感知断连
	go func() {
		defer func() {
			syncx.WithLock(s.mu, func() {
				delete(s.clients, conn)
			})
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast 向全部订阅者推送当前状态
func (s *RealtimeServer) broadcast() {
	status := s.snapshot()

	var subscribers []*wsClient
	syncx.WithRLock(s.mu, func() {
		subscribers = make([]*wsClient, 0, len(s.clients))
		for _, client := range s.clients {
			subscribers = append(subscribers, client)
		}
	})

	for _, client := range subscribers {
		s.send(client, status)
	}
}

// send 推送单帧，失败即摘除订阅
func (s *RealtimeServer) send(client *wsClient, status Status) {
	if err := client.write(status); err != nil {
		syncx.WithLock(s.mu, func() {
			delete(s.clients, client.conn)
		})
		client.conn.Close()
	}
}
