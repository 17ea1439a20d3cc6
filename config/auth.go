package config

import (
	"errors"
	"time"
)

// AuthConfig 预共享密钥认证配置
type AuthConfig struct {
	// Required 是否要求认证
	// 默认值: false
	Required bool `json:"required"`

	// Key 客户端预共享密钥
	Key string `json:"key,omitempty"`

	// KeyStorePath 服务端密钥库文件，为空时使用内存密钥库
	KeyStorePath string `json:"key_store_path,omitempty"`

	// Timeout 挑战发出后等待应答的时间
	// 默认值: 5s
	Timeout Duration `json:"timeout"`

	// PollInterval 超时检查间隔
	// 默认值: 100ms
	PollInterval Duration `json:"poll_interval"`
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Timeout:      Duration(5 * time.Second),
		PollInterval: Duration(100 * time.Millisecond),
	}
}

// Validate 验证认证配置
func (c *AuthConfig) Validate() error {
	def := DefaultAuthConfig()
	c.Timeout = c.Timeout.orDefault(def.Timeout.Duration())
	c.PollInterval = c.PollInterval.orDefault(def.PollInterval.Duration())
	if c.PollInterval > c.Timeout {
		return errors.New("poll_interval must not exceed timeout")
	}
	return nil
}
