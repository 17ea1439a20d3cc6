package types

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator 生成不透明且唯一的标识符
//
// 由控制器实例持有，测试中可注入确定性的实现。
type IDGenerator func() string

// NewUUID 默认 ID 生成器
func NewUUID() string {
	return uuid.NewString()
}

// SequenceIDs 返回按前缀递增的确定性生成器，用于测试
func SequenceIDs(prefix string) IDGenerator {
	var n atomic.Uint64
	return func() string {
		return prefix + strconv.FormatUint(n.Add(1), 10)
	}
}
