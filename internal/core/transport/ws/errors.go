package ws

import (
	"fmt"

	"github.com/dep2p/go-peerctl/pkg/types"
)

var (
	// ErrClosed 传输已关闭
	ErrClosed = fmt.Errorf("%w: ws: transport closed", types.ErrTransport)

	// ErrConnClosed 连接已关闭
	ErrConnClosed = fmt.Errorf("%w: ws: connection closed", types.ErrTransport)

	// ErrNotConnected 客户端尚未连接
	ErrNotConnected = fmt.Errorf("%w: ws: not connected", types.ErrTransport)

	// ErrAlreadyConnected 客户端已连接
	ErrAlreadyConnected = fmt.Errorf("%w: ws: already connected", types.ErrTransport)

	// ErrAlreadyListening 服务端已在监听
	ErrAlreadyListening = fmt.Errorf("%w: ws: already listening", types.ErrTransport)

	// ErrUnknownConn 连接不存在
	ErrUnknownConn = fmt.Errorf("%w: ws: unknown connection", types.ErrTransport)

	// ErrMessageTooLarge 消息超过上限
	ErrMessageTooLarge = fmt.Errorf("%w: ws: message too large", types.ErrTransport)
)
