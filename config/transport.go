package config

import (
	"fmt"
	"strings"
	"time"
)

// 传输类型
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// Kind 传输类型: tcp 或 ws
	// 默认值: tcp
	Kind string `json:"kind"`

	// DialTimeout 拨号超时
	// 默认值: 10s
	DialTimeout Duration `json:"dial_timeout"`

	// IdleTimeout 读空闲超时，0 表示不限制
	IdleTimeout Duration `json:"idle_timeout"`

	// MaxFrameSize 单帧最大字节数
	// 默认值: 4 MiB
	MaxFrameSize int `json:"max_frame_size"`

	// WSPath WebSocket 升级路径
	// 默认值: /peerctl
	WSPath string `json:"ws_path"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:         TransportTCP,
		DialTimeout:  Duration(10 * time.Second),
		MaxFrameSize: 4 << 20,
		WSPath:       "/peerctl",
	}
}

// Validate 验证传输配置
func (c *TransportConfig) Validate() error {
	def := DefaultTransportConfig()
	switch strings.ToLower(c.Kind) {
	case "":
		c.Kind = def.Kind
	case TransportTCP, TransportWebSocket:
		c.Kind = strings.ToLower(c.Kind)
	default:
		return fmt.Errorf("invalid kind %q", c.Kind)
	}
	c.DialTimeout = c.DialTimeout.orDefault(def.DialTimeout.Duration())
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.WSPath == "" {
		c.WSPath = def.WSPath
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		c.WSPath = "/" + c.WSPath
	}
	return nil
}
