/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-10 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-18 11:42:17
 * @FilePath: \go-ipopt\types\enums.go
 * @Description: 枚举类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

// ProbeStatus 探测状态
type ProbeStatus string

const (
	StatusOK                 ProbeStatus = "OK"                   // 探测成功
	StatusConfigFailed       ProbeStatus = "Config Failed"        // 临时配置生成失败
	StatusProcessStartFailed ProbeStatus = "Xray Start Failed"    // 代理进程启动失败（端口未监听）
	StatusTimeout            ProbeStatus = "Curl Timeout"         // 传输超时（curl 退出码 28 或子进程超时）
	StatusTransferFailed     ProbeStatus = "Curl Failed"          // 传输失败（非超时的 curl 错误）
	StatusParseFailed        ProbeStatus = "Parse Failed"         // 输出解析失败
	StatusUnexpectedError    ProbeStatus = "Unexpected Error"     // 未预期的内部错误
	StatusNotTested          ProbeStatus = "Not Tested"           // 未参与测速（仅入围记录）
)

// IsOK 是否为成功状态
func (s ProbeStatus) IsOK() bool {
	return s == StatusOK
}

// ToString
func (s ProbeStatus) ToString() string {
	return string(s)
}

// ProxyProtocol 本地入站代理协议
type ProxyProtocol string

const (
	ProtocolSocks ProxyProtocol = "socks" // SOCKS5 入站
	ProtocolHTTP  ProxyProtocol = "http"  // HTTP 入站
)

// RunMode 运行模式
type RunMode string

const (
	RunModeOnce RunMode = "once" // 单轮执行
	RunModeLoop RunMode = "loop" // 循环执行（每轮间隔固定休眠）
)

// RunMode 实现 flag.Value 接口
func (m *RunMode) String() string {
	if m == nil {
		return string(RunModeOnce)
	}
	return string(*m)
}

func (m *RunMode) Set(value string) error {
	*m = RunMode(value)
	return nil
}

// StorageMode 归档存储模式
type StorageMode string

const (
	// StorageModeCSV CSV 模式 - 追加写入本地 CSV 文件，人类可读
	StorageModeCSV StorageMode = "csv"

	// StorageModeSQLite 文件模式 - 数据持久化到SQLite，支持历史查询
	StorageModeSQLite StorageMode = "sqlite"

	// StorageModeBadger BadgerDB 模式 - LSM-Tree 键值存储，写入性能高
	StorageModeBadger StorageMode = "badger"

	// StorageModeMemory 内存模式 - 数据存储在内存中，程序退出后丢失（测试用）
	StorageModeMemory StorageMode = "memory"
)

// StorageMode 实现 flag.Value 接口
func (s *StorageMode) String() string {
	if s == nil {
		return string(StorageModeCSV)
	}
	return string(*s)
}

func (s *StorageMode) Set(value string) error {
	*s = StorageMode(value)
	return nil
}
