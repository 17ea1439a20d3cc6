// Package types 定义 peerctl 的基础类型
//
// 本文件定义公共错误分类。
package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              错误分类
// ============================================================================

var (
	// ErrTransport 连接层错误，通过事件上报并在适用时触发重连
	ErrTransport = errors.New("transport error")

	// ErrDecode 线上数据格式错误，整个数据包被丢弃
	ErrDecode = errors.New("decode error")

	// ErrAuthentication 认证失败，总是终止连接
	ErrAuthentication = errors.New("authentication failure")

	// ErrInvalidOperation 非法调用，总是同步返回给调用方
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnhandledMessage 入站对象无人认领，仅记录日志
	ErrUnhandledMessage = errors.New("unhandled message")
)

// ============================================================================
//                              非法调用
// ============================================================================

var (
	// ErrNotConnected 客户端尚未连接
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrInvalidOperation)

	// ErrNotStarted 服务端尚未启动
	ErrNotStarted = fmt.Errorf("%w: not started", ErrInvalidOperation)

	// ErrAlreadyConnected 客户端已连接
	ErrAlreadyConnected = fmt.Errorf("%w: already connected", ErrInvalidOperation)

	// ErrAlreadyStarted 服务端已启动
	ErrAlreadyStarted = fmt.Errorf("%w: already started", ErrInvalidOperation)

	// ErrClientOnly 仅客户端可用的操作
	ErrClientOnly = fmt.Errorf("%w: client-only operation", ErrInvalidOperation)

	// ErrServerOnly 仅服务端可用的操作
	ErrServerOnly = fmt.Errorf("%w: server-only operation", ErrInvalidOperation)

	// ErrPeerClosed Peer 已断开
	ErrPeerClosed = fmt.Errorf("%w: peer closed", ErrInvalidOperation)

	// ErrUnknownPeer Peer 不存在
	ErrUnknownPeer = fmt.Errorf("%w: unknown peer", ErrInvalidOperation)

	// ErrMissingKey 要求认证但未配置预共享密钥
	ErrMissingKey = fmt.Errorf("%w: authentication required but no key configured", ErrInvalidOperation)
)
