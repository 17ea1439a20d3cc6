package feature

import "errors"

var (
	// ErrInvalidState 非法的生命周期迁移
	ErrInvalidState = errors.New("feature: invalid state transition")

	// ErrKeyMismatch 工厂构造的特性标识与注册标识不一致
	ErrKeyMismatch = errors.New("feature: key mismatch")

	// ErrTypeMismatch 已挂载特性的类型与请求的类型不一致
	ErrTypeMismatch = errors.New("feature: type mismatch")

	// ErrNilFeature 工厂返回 nil
	ErrNilFeature = errors.New("feature: factory returned nil")
)
