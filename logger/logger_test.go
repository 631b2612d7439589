/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-28 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-28 18:09:33
 * @FilePath: \go-ipopt\logger\logger_test.go
 * @Description: 日志接口测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package logger

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelFlag(t *testing.T) {
	// 命令行 flag.Value 接口
	var _ flag.Value = &LogLevelFlag{}

	f := LogLevelFlag{Level: INFO}
	assert.NoError(t, f.Set("debug"))
	assert.Equal(t, DEBUG, f.Level)

	assert.NoError(t, f.Set("error"))
	assert.Equal(t, ERROR, f.Level)

	// 非法级别拒绝并保留原值
	assert.Error(t, f.Set("loud"))
	assert.Equal(t, ERROR, f.Level)
}

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, Default)
	assert.NotNil(t, DefaultConfig())
}
