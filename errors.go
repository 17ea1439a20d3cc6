package peerctl

import (
	"errors"

	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("peerctl: node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("peerctl: node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("peerctl: node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 控制器错误（与内部哨兵相同，可直接 errors.Is）
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidOperation 当前状态或角色不允许该操作
	ErrInvalidOperation = types.ErrInvalidOperation

	// ErrNotConnected 客户端未连接
	ErrNotConnected = types.ErrNotConnected

	// ErrUnknownPeer 找不到 Peer
	ErrUnknownPeer = types.ErrUnknownPeer

	// ErrPeerClosed Peer 已断开
	ErrPeerClosed = types.ErrPeerClosed

	// ErrTransport 传输层失败
	ErrTransport = types.ErrTransport

	// ErrAuthentication 认证失败，具体原因见 AuthFailure
	ErrAuthentication = types.ErrAuthentication

	// ErrRemoteFailure 对端以失败应答请求
	ErrRemoteFailure = reqresp.ErrRemoteFailure
)

// AuthFailure 认证失败及其原因
type AuthFailure = auth.Failure
