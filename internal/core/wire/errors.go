package wire

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-peerctl/pkg/types"
)

var (
	// ErrUnregisteredType 对象类型未注册
	ErrUnregisteredType = errors.New("wire: unregistered type")

	// ErrDuplicateType 类型标识已被其他类型占用
	ErrDuplicateType = errors.New("wire: duplicate type name")

	// ErrTooManyObjects 对象数量超过上限
	ErrTooManyObjects = errors.New("wire: too many objects")

	// ErrTrailingData 编码体存在多余字节
	ErrTrailingData = errors.New("wire: trailing data")

	// ErrTruncated 数据不完整
	ErrTruncated = errors.New("wire: truncated data")

	// ErrTooDeep 嵌套对象层数超过上限
	ErrTooDeep = errors.New("wire: nesting too deep")

	// ErrUnknownKind 未知编码方式
	ErrUnknownKind = errors.New("wire: unknown encoding kind")
)

// TypeResolutionError 类型标识无法解析为具体类型
type TypeResolutionError struct {
	Name string
}

// Error 实现 error 接口
func (e *TypeResolutionError) Error() string {
	return fmt.Sprintf("wire: unresolvable type %q", e.Name)
}

// DecodeError 数据包解码失败，整个数据包无效
type DecodeError struct {
	// Index 失败条目的序号，-1 表示包头
	Index int
	Err   error
}

// Error 实现 error 接口
func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("wire: decode header: %v", e.Err)
	}
	return fmt.Sprintf("wire: decode entry %d: %v", e.Index, e.Err)
}

// Unwrap 同时暴露错误分类与底层原因
func (e *DecodeError) Unwrap() []error {
	return []error{types.ErrDecode, e.Err}
}
