package config

import "fmt"

// 控制器角色
const (
	RoleClient = "client"
	RoleServer = "server"
)

// ControllerConfig 控制器配置
type ControllerConfig struct {
	// Role 控制器角色: client 或 server
	// 默认值: client
	Role string `json:"role"`

	// Endpoint 客户端为目标地址，服务端为监听地址
	// 默认值: 127.0.0.1:7400
	Endpoint string `json:"endpoint"`

	// Capabilities 本端能力描述，连接建立后提供给对端
	Capabilities map[string]any `json:"capabilities,omitempty"`
}

// DefaultControllerConfig 返回默认控制器配置
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Role:     RoleClient,
		Endpoint: "127.0.0.1:7400",
	}
}

// Validate 验证控制器配置
func (c *ControllerConfig) Validate() error {
	switch c.Role {
	case "":
		c.Role = RoleClient
	case RoleClient, RoleServer:
	default:
		return fmt.Errorf("invalid role %q", c.Role)
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultControllerConfig().Endpoint
	}
	return nil
}
