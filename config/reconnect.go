package config

import (
	"errors"
	"time"
)

// ReconnectConfig 客户端自动重连配置
type ReconnectConfig struct {
	// Enabled 是否启用自动重连
	// 默认值: true
	Enabled bool `json:"enabled"`

	// MaxAttempts 进入长冷却前的连续尝试次数
	// 默认值: 5
	MaxAttempts int `json:"max_attempts"`

	// InitialDelay 初始轮询间隔
	// 默认值: 1.5s
	InitialDelay Duration `json:"initial_delay"`

	// RetryInterval 两次尝试之间的最小间隔
	// 默认值: 2.5s
	RetryInterval Duration `json:"retry_interval"`

	// CooldownPeriod 达到最大尝试次数后的冷却时长
	// 默认值: 60s
	CooldownPeriod Duration `json:"cooldown_period"`

	// DelayStep 每次冷却结束后轮询间隔的增量
	// 默认值: 1s
	DelayStep Duration `json:"delay_step"`

	// MaxDelay 轮询间隔达到该值时放弃重连
	// 默认值: 60s
	MaxDelay Duration `json:"max_delay"`
}

// DefaultReconnectConfig 返回默认重连配置
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:        true,
		MaxAttempts:    5,
		InitialDelay:   Duration(1500 * time.Millisecond),
		RetryInterval:  Duration(2500 * time.Millisecond),
		CooldownPeriod: Duration(60 * time.Second),
		DelayStep:      Duration(time.Second),
		MaxDelay:       Duration(60 * time.Second),
	}
}

// Validate 验证重连配置
func (c *ReconnectConfig) Validate() error {
	def := DefaultReconnectConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	c.InitialDelay = c.InitialDelay.orDefault(def.InitialDelay.Duration())
	c.RetryInterval = c.RetryInterval.orDefault(def.RetryInterval.Duration())
	c.CooldownPeriod = c.CooldownPeriod.orDefault(def.CooldownPeriod.Duration())
	c.DelayStep = c.DelayStep.orDefault(def.DelayStep.Duration())
	c.MaxDelay = c.MaxDelay.orDefault(def.MaxDelay.Duration())
	if c.MaxDelay <= c.InitialDelay {
		return errors.New("max_delay must exceed initial_delay")
	}
	return nil
}
