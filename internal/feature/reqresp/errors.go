package reqresp

import "errors"

var (
	// ErrHandlerConflict 同一载荷类型同时注册了替换式与追加式处理器
	ErrHandlerConflict = errors.New("reqresp: replace and add handlers registered for the same payload type")

	// ErrAlreadyResponded 同一请求已经响应过
	ErrAlreadyResponded = errors.New("reqresp: request already responded")

	// ErrNotAccepted 请求尚未被任何端点接受
	ErrNotAccepted = errors.New("reqresp: request not accepted")

	// ErrNotInstalled 特性未安装或未启用
	ErrNotInstalled = errors.New("reqresp: feature not installed")

	// ErrNilRequest 请求为空
	ErrNilRequest = errors.New("reqresp: nil request")

	// ErrRemoteFailure 对端返回了失败响应
	ErrRemoteFailure = errors.New("reqresp: remote responded with failure")
)
