package tcp

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-peerctl/pkg/types"
)

var (
	// ErrClosed 传输已关闭
	ErrClosed = fmt.Errorf("%w: tcp: transport closed", types.ErrTransport)

	// ErrConnClosed 连接已关闭
	ErrConnClosed = fmt.Errorf("%w: tcp: connection closed", types.ErrTransport)

	// ErrNotConnected 客户端尚未连接
	ErrNotConnected = fmt.Errorf("%w: tcp: not connected", types.ErrTransport)

	// ErrAlreadyConnected 客户端已连接
	ErrAlreadyConnected = fmt.Errorf("%w: tcp: already connected", types.ErrTransport)

	// ErrAlreadyListening 服务端已在监听
	ErrAlreadyListening = fmt.Errorf("%w: tcp: already listening", types.ErrTransport)

	// ErrUnknownConn 连接不存在
	ErrUnknownConn = fmt.Errorf("%w: tcp: unknown connection", types.ErrTransport)

	// ErrFrameTooLarge 帧超过上限
	ErrFrameTooLarge = errors.New("tcp: frame too large")

	// ErrMalformedFrame 帧格式错误
	ErrMalformedFrame = errors.New("tcp: malformed frame")
)
