package interfaces

import "time"

// KeyRecord 密钥库中的一条预共享密钥记录
type KeyRecord struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyStore 认证密钥库
type KeyStore interface {
	// IsValid 密钥是否存在于密钥库
	IsValid(key string) bool

	// Get 查找密钥记录
	Get(key string) (*KeyRecord, bool)

	// New 生成并保存一条新密钥
	New() (*KeyRecord, error)

	// Reload 从底层存储重新加载
	Reload() error
}
