/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-24 18:20:11
 * @FilePath: \go-ipopt\archive\interface.go
 * @Description: 运行记录归档接口
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package archive

import (
	"github.com/kamalyes/go-ipopt/types"
)

// Interface 归档存储接口
//
// 归档是只追加的：每轮运行把终选名次与基准复测各写一行，
// 历史行永不改写。RecentIPs 供下一轮把历史优胜并入候选。
type Interface interface {
	// Append 追加一轮运行的记录
	Append(records []types.RunRecord) error

	// RecentIPs 返回最近记录过的端点地址（按时间倒序，去重，上限 limit）
	RecentIPs(limit int) ([]string, error)

	// Close 关闭存储，释放资源
	Close() error
}

// CSV 列头（与归档文件布局一一对应）
var csvHeader = []string{"run_id", "rank", "ip", "speed_mbps", "status", "time"}

// 时间列格式
const timeLayout = "2006-01-02 15:04:05"
