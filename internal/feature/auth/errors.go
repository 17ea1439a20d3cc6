package auth

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-peerctl/pkg/types"
)

var (
	// ErrNoRequestFeature 宿主未挂载 reqresp 特性
	ErrNoRequestFeature = errors.New("auth: reqresp feature not attached")

	// ErrNoKeyStore 服务端要求认证但未配置密钥库
	ErrNoKeyStore = errors.New("auth: key store required on the initiating side")

	// ErrAlreadyStarted 本次连接的握手已开始
	ErrAlreadyStarted = errors.New("auth: handshake already started")

	// ErrKeyNotFound 密钥不存在
	ErrKeyNotFound = errors.New("auth: key not found")
)

// Failure 认证失败及其原因
type Failure struct {
	Reason types.AuthFailureReason
}

func (f *Failure) Error() string {
	return fmt.Sprintf("auth: failed: %s", f.Reason)
}

// Unwrap 使 errors.Is(err, types.ErrAuthentication) 成立
func (f *Failure) Unwrap() error {
	return types.ErrAuthentication
}
