/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-02-11 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-02-22 10:41:36
 * @FilePath: \go-ipopt\xray\document.go
 * @Description: xray 配置文档读写（出站地址改写、入站端口定位、原子落盘）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package xray

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamalyes/go-ipopt/types"
	"github.com/oliveagle/jsonpath"
)

const (
	// 出站目标地址在配置中的位置
	addressPath = "$.outbounds[0].settings.vnext[0].address"
)

// Document xray 配置文档（保留未知字段，仅改写关心的节点）
type Document struct {
	root map[string]interface{}
}

// LoadDocument 从文件加载配置文档
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument 从字节数据解析配置文档
func ParseDocument(data []byte) (*Document, error) {
	var root map[string]interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &Document{root: root}, nil
}

// Address 读取当前出站目标地址
func (d *Document) Address() (string, error) {
	value, err := jsonpath.JsonPathLookup(d.root, addressPath)
	if err != nil {
		return "", fmt.Errorf("定位出站地址失败: %w", err)
	}
	addr, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("出站地址不是字符串: %v", value)
	}
	return addr, nil
}

// SetAddress 改写出站目标地址
func (d *Document) SetAddress(ip string) error {
	outbounds, ok := d.root["outbounds"].([]interface{})
	if !ok || len(outbounds) == 0 {
		return fmt.Errorf("配置缺少 outbounds 节点")
	}
	first, ok := outbounds[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("outbounds[0] 结构异常")
	}
	settings, ok := first["settings"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("outbounds[0].settings 结构异常")
	}
	vnext, ok := settings["vnext"].([]interface{})
	if !ok || len(vnext) == 0 {
		return fmt.Errorf("outbounds[0].settings.vnext 结构异常")
	}
	server, ok := vnext[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("vnext[0] 结构异常")
	}
	server["address"] = ip
	return nil
}

// InboundPort 按协议查找入站端口
func (d *Document) InboundPort(protocol types.ProxyProtocol) (int, error) {
	inbounds, ok := d.root["inbounds"].([]interface{})
	if !ok {
		return 0, fmt.Errorf("配置缺少 inbounds 节点")
	}
	for _, item := range inbounds {
		inbound, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if proto, _ := inbound["protocol"].(string); proto == string(protocol) {
			port, ok := inbound["port"].(float64)
			if !ok {
				return 0, fmt.Errorf("%s 入站端口字段异常", protocol)
			}
			return int(port), nil
		}
	}
	return 0, fmt.Errorf("未找到 %s 协议入站", protocol)
}

// Localize 将入站改为本地临时监听：socks 入站使用 basePort，http 入站使用 basePort+1
func (d *Document) Localize(basePort int) error {
	inbounds, ok := d.root["inbounds"].([]interface{})
	if !ok || len(inbounds) == 0 {
		return fmt.Errorf("配置缺少 inbounds 节点")
	}
	found := false
	for _, item := range inbounds {
		inbound, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		switch proto, _ := inbound["protocol"].(string); proto {
		case string(types.ProtocolSocks):
			inbound["listen"] = "127.0.0.1"
			inbound["port"] = basePort
			found = true
		case string(types.ProtocolHTTP):
			inbound["listen"] = "127.0.0.1"
			inbound["port"] = basePort + 1
		}
	}
	if !found {
		return fmt.Errorf("未找到 socks 协议入站，无法构建临时配置")
	}
	return nil
}

// Bytes 序列化为缩进 JSON
func (d *Document) Bytes() ([]byte, error) {
	return json.MarshalIndent(d.root, "", "  ")
}

// SaveTo 原子写入目标路径（同目录临时文件 + rename）
func (d *Document) SaveTo(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ipopt-*.json")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换目标文件失败: %w", err)
	}
	return nil
}

// PromoteAddress 将胜出地址写入主配置（读改写均为原子操作）
func PromoteAddress(mainConfig, ip string) error {
	doc, err := LoadDocument(mainConfig)
	if err != nil {
		return err
	}
	if err := doc.SetAddress(ip); err != nil {
		return err
	}
	return doc.SaveTo(mainConfig)
}
