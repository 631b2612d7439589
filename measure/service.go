/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-24 11:07:33
 * @FilePath: \go-ipopt\measure\service.go
 * @Description: 端点测速服务（会话 + 多次探测取均值，多轮取最大值）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package measure

import (
	"context"
	"errors"
	"time"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/logger"
	"github.com/kamalyes/go-ipopt/prober"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-ipopt/xray"
)

// Session 测速期间持有的代理会话
type Session interface {
	ProxyAddr() string
	Close() error
}

// SessionProvider 为候选 IP 提供代理会话
type SessionProvider interface {
	Launch(ctx context.Context, ip string) (Session, error)
}

// LaunchFunc 函数式 SessionProvider 适配器
type LaunchFunc func(ctx context.Context, ip string) (Session, error)

// Launch 实现 SessionProvider
func (f LaunchFunc) Launch(ctx context.Context, ip string) (Session, error) {
	return f(ctx, ip)
}

// Service 测速服务
//
// 单轮语义：为候选启动一个临时会话，连续探测 N 次，失败计 0，
// 取算术均值作为该轮成绩；会话在该轮结束时无条件回收。
// 多轮语义：各轮独立建会话，最终成绩取各轮均值的最大值。
type Service struct {
	provider SessionProvider
	prober   prober.Prober
	pacing   config.PacingConfig
	logger   logger.ILogger
	sleep    func(ctx context.Context, d time.Duration) // 可注入，测试免等待
}

// NewService 创建测速服务
func NewService(provider SessionProvider, p prober.Prober, pacing config.PacingConfig, log logger.ILogger) *Service {
	return &Service{
		provider: provider,
		prober:   p,
		pacing:   pacing,
		logger:   log,
		sleep:    sleepCtx,
	}
}

// MeasurePass 对单个候选执行一轮测速
func (s *Service) MeasurePass(ctx context.Context, ip string, stage *config.StageParams) types.Measurement {
	session, err := s.provider.Launch(ctx, ip)
	if err != nil {
		status := types.StatusProcessStartFailed
		if errors.Is(err, xray.ErrConfigBuild) {
			status = types.StatusConfigFailed
		}
		s.logger.Warnf("⚠️  候选 %s 会话启动失败: %v", ip, err)
		return types.Measurement{IP: ip, Speed: 0, Status: status, Samples: stage.Probes}
	}
	defer session.Close()

	speeds := make([]float64, 0, stage.Probes)
	status := types.ProbeStatus("")
	anyOK := false

	for i := 0; i < stage.Probes; i++ {
		if i > 0 {
			s.sleep(ctx, s.pacing.ProbeDelayDuration())
		}
		result := s.prober.Probe(ctx, session.ProxyAddr(), stage.PayloadURL, stage.TimeoutDuration())
		if result.Status.IsOK() {
			anyOK = true
			speeds = append(speeds, result.Speed)
			s.logger.Debugf("📡 %s 探测 %d/%d: %.2f Mbit/s", ip, i+1, stage.Probes, result.Speed)
			continue
		}

		// 失败计 0，拉低均值而不是剔除样本；全失败时保留最后一次失败状态
		speeds = append(speeds, 0)
		status = result.Status
		s.logger.Debugf("📡 %s 探测 %d/%d 失败: %s (%v)", ip, i+1, stage.Probes, result.Status, result.Err)
	}

	if anyOK {
		status = types.StatusOK
	}

	return types.Measurement{
		IP:      ip,
		Speed:   mean(speeds),
		Status:  status,
		Samples: stage.Probes,
	}
}

// mean 算术均值，空样本返回 0
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Measure 对单个候选执行完整测速（多轮取最大）
func (s *Service) Measure(ctx context.Context, ip string, stage *config.StageParams) types.Measurement {
	final := types.Measurement{IP: ip, Status: types.StatusNotTested}

	for pass := 0; pass < stage.Passes; pass++ {
		if pass > 0 {
			s.sleep(ctx, s.pacing.PassDelayDuration())
		}
		m := s.MeasurePass(ctx, ip, stage)

		if pass == 0 || m.Speed > final.Speed {
			final.Speed = m.Speed
		}
		// 任一轮成功即视为成功；全失败保留最后一轮失败状态
		if m.Status.IsOK() {
			final.Status = types.StatusOK
		} else if !final.Status.IsOK() {
			final.Status = m.Status
		}
	}

	final.Samples = stage.Probes * stage.Passes
	return final
}

// MeasureAll 串行测速一组候选（保持单会话占用，避免本机带宽互抢）
func (s *Service) MeasureAll(ctx context.Context, ips []string, stage *config.StageParams) []types.Measurement {
	results := make([]types.Measurement, 0, len(ips))
	for i, ip := range ips {
		if ctx.Err() != nil {
			break
		}
		s.logger.Infof("🔍 测速 %d/%d: %s", i+1, len(ips), ip)
		results = append(results, s.Measure(ctx, ip, stage))
	}
	return results
}

// sleepCtx 可被上下文打断的休眠
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
