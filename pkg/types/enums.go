package types

// ============================================================================
//                              Role - 控制器角色
// ============================================================================

// Role 控制器角色，构造后不可变
type Role int

const (
	// RoleClient 客户端：单一出站连接
	RoleClient Role = iota
	// RoleServer 服务端：监听并管理多个 Peer
	RoleServer
)

// String 返回角色的字符串表示
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              AuthStatus - 认证状态
// ============================================================================

// AuthStatus 认证状态
//
// 状态只能向前迁移：NotStarted → RequestSent → {Authenticated | Failed}，
// 只有新连接才会重置为 NotStarted。
type AuthStatus int

const (
	// AuthNotStarted 尚未开始
	AuthNotStarted AuthStatus = iota
	// AuthRequestSent 挑战已发送，等待应答
	AuthRequestSent
	// AuthAuthenticated 认证成功
	AuthAuthenticated
	// AuthFailed 认证失败
	AuthFailed
)

// String 返回认证状态的字符串表示
func (s AuthStatus) String() string {
	switch s {
	case AuthNotStarted:
		return "not-started"
	case AuthRequestSent:
		return "request-sent"
	case AuthAuthenticated:
		return "authenticated"
	case AuthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态
func (s AuthStatus) Terminal() bool {
	return s == AuthAuthenticated || s == AuthFailed
}

// AuthFailureReason 认证失败原因
type AuthFailureReason int

const (
	// AuthFailureNone 无失败
	AuthFailureNone AuthFailureReason = iota
	// AuthFailureInvalidKey 对端拒绝提供密钥（失败应答）
	AuthFailureInvalidKey
	// AuthFailureUnknownKey 对端提供的密钥不在密钥库中
	AuthFailureUnknownKey
	// AuthFailureTimedOut 超时未完成握手
	AuthFailureTimedOut
)

// String 返回失败原因的字符串表示
func (r AuthFailureReason) String() string {
	switch r {
	case AuthFailureNone:
		return "none"
	case AuthFailureInvalidKey:
		return "invalid-key"
	case AuthFailureUnknownKey:
		return "unknown-key"
	case AuthFailureTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ReconnectState - 重连状态
// ============================================================================

// ReconnectState 重连状态机状态
type ReconnectState int

const (
	// ReconnectStopped 已停止（已连接或已放弃）
	ReconnectStopped ReconnectState = iota
	// ReconnectReconnecting 允许立即尝试重连
	ReconnectReconnecting
	// ReconnectCooldown 两次尝试之间的间隔等待
	ReconnectCooldown
	// ReconnectCooldownFailure 达到最大尝试次数后的长冷却
	ReconnectCooldownFailure
)

// String 返回重连状态的字符串表示
func (s ReconnectState) String() string {
	switch s {
	case ReconnectStopped:
		return "stopped"
	case ReconnectReconnecting:
		return "reconnecting"
	case ReconnectCooldown:
		return "cooldown"
	case ReconnectCooldownFailure:
		return "cooldown-failure"
	default:
		return "unknown"
	}
}
