/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-26 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 15:11:09
 * @FilePath: \go-ipopt\funnel\funnel_test.go
 * @Description: 分级漏斗测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package funnel

import (
	"context"
	"testing"

	"github.com/kamalyes/go-ipopt/config"
	"github.com/kamalyes/go-ipopt/types"
	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

// stubSource 固定候选来源
type stubSource struct {
	candidates []types.Candidate
	err        error
	gotExtra   []string
}

func (s *stubSource) Select(ctx context.Context, skip bool, extra []string) ([]types.Candidate, error) {
	s.gotExtra = extra
	return s.candidates, s.err
}

// stubMeasurer 按预设速率表返回测速结果
type stubMeasurer struct {
	speeds map[string]float64 // 缺失的 IP 视为测速失败
	stages [][]string         // 记录每个阶段收到的 IP
}

func (s *stubMeasurer) MeasureAll(ctx context.Context, ips []string, stage *config.StageParams) []types.Measurement {
	s.stages = append(s.stages, ips)
	results := make([]types.Measurement, 0, len(ips))
	for _, ip := range ips {
		if speed, ok := s.speeds[ip]; ok {
			results = append(results, types.Measurement{IP: ip, Speed: speed, Status: types.StatusOK})
		} else {
			results = append(results, types.Measurement{IP: ip, Status: types.StatusTimeout})
		}
	}
	return results
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Coarse.Candidates = 4
	cfg.Elite.Candidates = 2
	return cfg
}

func candidates(ips ...string) []types.Candidate {
	out := make([]types.Candidate, 0, len(ips))
	for _, ip := range ips {
		out = append(out, types.Candidate{IP: ip})
	}
	return out
}

func TestFunnelRun(t *testing.T) {
	log := logger.NewLogger(nil)

	t.Run("逐级收敛并选出挑战者", func(t *testing.T) {
		source := &stubSource{candidates: candidates("a", "b", "c", "d", "e")}
		measurer := &stubMeasurer{speeds: map[string]float64{
			"a": 10, "b": 40, "c": 20, "d": 30, "e": 99,
		}}

		f := New(source, measurer, testConfig(), log)
		outcome, err := f.Run(context.Background(), nil)

		assert.NoError(t, err)
		assert.Equal(t, 5, outcome.Candidates)

		// 粗测只取前 4 个候选，e 未入围
		assert.Equal(t, []string{"a", "b", "c", "d"}, measurer.stages[0])

		// 精测取粗测前 2 名
		assert.Equal(t, []string{"b", "d"}, measurer.stages[1])
		assert.Equal(t, 2, outcome.Coarse.Promoted)

		// 挑战者为精测第一名
		assert.Equal(t, "b", outcome.Challenger.IP)
		assert.Equal(t, 40.0, outcome.Challenger.Speed)
	})

	t.Run("粗测失败者不占精测名额", func(t *testing.T) {
		source := &stubSource{candidates: candidates("a", "b", "c", "d")}
		// b/c 测速失败，精测名额由 a/d 顶上
		measurer := &stubMeasurer{speeds: map[string]float64{"a": 5, "d": 3}}

		f := New(source, measurer, testConfig(), log)
		outcome, err := f.Run(context.Background(), nil)

		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "d"}, measurer.stages[1])
		assert.Equal(t, "a", outcome.Challenger.IP)
	})

	t.Run("历史IP透传给候选来源", func(t *testing.T) {
		source := &stubSource{candidates: candidates("a", "b")}
		measurer := &stubMeasurer{speeds: map[string]float64{"a": 1, "b": 2}}

		f := New(source, measurer, testConfig(), log)
		_, err := f.Run(context.Background(), []string{"9.9.9.9"})

		assert.NoError(t, err)
		assert.Equal(t, []string{"9.9.9.9"}, source.gotExtra)
	})

	t.Run("无候选返回哨兵错误", func(t *testing.T) {
		f := New(&stubSource{}, &stubMeasurer{}, testConfig(), log)
		_, err := f.Run(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("全部失败返回哨兵错误", func(t *testing.T) {
		source := &stubSource{candidates: candidates("a", "b")}
		f := New(source, &stubMeasurer{}, testConfig(), log)
		_, err := f.Run(context.Background(), nil)
		assert.ErrorIs(t, err, ErrAllFailed)
	})
}

func TestRank(t *testing.T) {
	results := []types.Measurement{
		{IP: "a", Speed: 1},
		{IP: "b", Speed: 3},
		{IP: "c", Speed: 3},
		{IP: "d", Speed: 2},
	}
	Rank(results)

	assert.Equal(t, "b", results[0].IP)
	// 同速保持先到顺序
	assert.Equal(t, "c", results[1].IP)
	assert.Equal(t, "d", results[2].IP)
	assert.Equal(t, "a", results[3].IP)
}
