// Package interfaces 定义 peerctl 公共接口
//
// 本文件定义 Transport 接口，抽象底层字节流传输。
package interfaces

import (
	"context"

	"github.com/dep2p/go-peerctl/pkg/types"
)

// ClientHandler 客户端传输事件回调
//
// OnConnected 与 OnDisconnected 对每条连接恰好各调用一次；
// OnBytesReceived 在连接的读协程上按到达顺序调用。
type ClientHandler interface {
	OnConnected()
	OnDisconnected(reason types.DisconnectReason)
	OnBytesReceived(data []byte)
}

// ServerHandler 服务端传输事件回调
type ServerHandler interface {
	OnConnected(connID uint64, remoteAddr string)
	OnDisconnected(connID uint64, reason types.DisconnectReason)
	OnBytesReceived(connID uint64, data []byte)
}

// ClientTransport 客户端传输：单一出站连接
type ClientTransport interface {
	// SetHandler 设置事件回调，必须在 Connect 之前调用
	SetHandler(h ClientHandler)

	// Connect 连接到指定端点
	Connect(ctx context.Context, endpoint string) error

	// Disconnect 以指定原因断开，原因会传递给对端
	Disconnect(reason types.DisconnectReason) error

	// Send 发送一帧数据，同一连接上的写入串行化
	Send(data []byte) error
}

// ServerTransport 服务端传输：监听并管理多条入站连接
type ServerTransport interface {
	// SetHandler 设置事件回调，必须在 Listen 之前调用
	SetHandler(h ServerHandler)

	// Listen 在指定端点监听
	Listen(ctx context.Context, endpoint string) error

	// Addr 实际监听地址
	Addr() string

	// Send 向指定连接发送一帧数据
	Send(connID uint64, data []byte) error

	// Disconnect 以指定原因断开指定连接
	Disconnect(connID uint64, reason types.DisconnectReason) error

	// Close 关闭监听器与全部连接
	Close() error
}
