package config

// RequestConfig 请求响应配置
type RequestConfig struct {
	// RecentCacheSize 记录最近已应答的关联 ID 数，用于区分重复与迟到的响应
	// 默认值: 1024
	RecentCacheSize int `json:"recent_cache_size"`
}

// DefaultRequestConfig 返回默认请求响应配置
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{RecentCacheSize: 1024}
}

// Validate 验证请求响应配置
func (c *RequestConfig) Validate() error {
	if c.RecentCacheSize <= 0 {
		c.RecentCacheSize = DefaultRequestConfig().RecentCacheSize
	}
	return nil
}
