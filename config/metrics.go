package config

// MetricsConfig 运行指标配置
type MetricsConfig struct {
	// Enabled 是否收集指标
	// 默认值: true
	Enabled bool `json:"enabled"`

	// Namespace 指标命名空间
	// 默认值: peerctl
	Namespace string `json:"namespace"`

	// Listen /metrics HTTP 监听地址，为空时不暴露
	Listen string `json:"listen,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "peerctl",
	}
}

// Validate 验证指标配置
func (c *MetricsConfig) Validate() error {
	if c.Namespace == "" {
		c.Namespace = DefaultMetricsConfig().Namespace
	}
	return nil
}
