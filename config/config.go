// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 提供 DefaultXConfig 与 Validate。支持从 JSON 加载：
//
//	cfg, err := config.Load("peerctl.json")
//
//	// 或在代码中构造
//	cfg := config.Default()
//	cfg.Controller.Endpoint = "127.0.0.1:7400"
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config 是 peerctl 的完整配置结构
//
//   - Controller: 角色、端点与能力描述
//   - Auth: 预共享密钥认证
//   - Request: 请求响应关联
//   - Reconnect: 客户端自动重连
//   - Transport: 传输层
//   - Metrics: 运行指标
type Config struct {
	Controller ControllerConfig `json:"controller"`
	Auth       AuthConfig       `json:"auth"`
	Request    RequestConfig    `json:"request"`
	Reconnect  ReconnectConfig  `json:"reconnect"`
	Transport  TransportConfig  `json:"transport"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Controller: DefaultControllerConfig(),
		Auth:       DefaultAuthConfig(),
		Request:    DefaultRequestConfig(),
		Reconnect:  DefaultReconnectConfig(),
		Transport:  DefaultTransportConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// Validate 验证配置，补全缺省值
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Request.Validate(); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if err := c.Reconnect.Validate(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// FromJSON 从 JSON 解析配置，未出现的字段保留默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 序列化为缩进 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
