package types

import "time"

// ============================================================================
//                              DisconnectReason - 断开原因
// ============================================================================

// DisconnectReason 结构化断开原因
//
// 传输层会把本端的断开原因传递给对端，对端据此决定是否重连。
type DisconnectReason uint8

const (
	// DisconnectNormal 正常断开
	DisconnectNormal DisconnectReason = iota
	// DisconnectTimeout 读写超时
	DisconnectTimeout
	// DisconnectRemoved 被移除或连接异常
	DisconnectRemoved
	// DisconnectShutdown 服务关闭
	DisconnectShutdown
	// DisconnectAuthFailure 认证失败
	DisconnectAuthFailure
)

// String 返回断开原因的字符串表示
func (r DisconnectReason) String() string {
	switch r {
	case DisconnectNormal:
		return "normal"
	case DisconnectTimeout:
		return "timeout"
	case DisconnectRemoved:
		return "removed"
	case DisconnectShutdown:
		return "shutdown"
	case DisconnectAuthFailure:
		return "auth-failure"
	default:
		return "unknown"
	}
}

// Valid 是否为已定义的断开原因
func (r DisconnectReason) Valid() bool {
	return r <= DisconnectAuthFailure
}

// ============================================================================
//                              连接事件
// ============================================================================

// EvtClientConnected 客户端连接建立
type EvtClientConnected struct {
	Endpoint string
	At       time.Time
}

// EvtClientDisconnected 客户端连接断开
type EvtClientDisconnected struct {
	Endpoint string
	Reason   DisconnectReason
	At       time.Time
}

// EvtPeerConnected 服务端新 Peer 接入
type EvtPeerConnected struct {
	PeerID     string
	RemoteAddr string
	At         time.Time
}

// EvtPeerDisconnected 服务端 Peer 断开，事件发出时其特性已全部卸载
type EvtPeerDisconnected struct {
	PeerID string
	Reason DisconnectReason
	At     time.Time
}

// ============================================================================
//                              特性事件
// ============================================================================

// EvtAuthCompleted 认证结束（成功或失败）
type EvtAuthCompleted struct {
	OwnerID string
	Role    Role
	Status  AuthStatus
	Reason  AuthFailureReason
	At      time.Time
}

// EvtReconnectStateChanged 重连状态迁移
type EvtReconnectStateChanged struct {
	From     ReconnectState
	To       ReconnectState
	Attempts int
	Delay    time.Duration
}

// EvtReconnectGaveUp 重连退避超过上限，放弃重连
type EvtReconnectGaveUp struct {
	Delay time.Duration
	At    time.Time
}

// EvtUnhandledMessage 入站对象没有被任何特性认领
type EvtUnhandledMessage struct {
	OwnerID  string
	TypeName string
}
