// Package interfaces 定义 peerctl 公共接口
//
// 本文件定义特性模型相关接口。
package interfaces

import (
	"context"

	"github.com/dep2p/go-peerctl/pkg/types"
)

// FeatureState 特性生命周期状态
type FeatureState int

const (
	// FeatureUninstalled 未安装（或已卸载）
	FeatureUninstalled FeatureState = iota
	// FeatureDisabled 已安装但未启用
	FeatureDisabled
	// FeatureEnabled 已启用
	FeatureEnabled
)

// String 返回特性状态的字符串表示
func (s FeatureState) String() string {
	switch s {
	case FeatureUninstalled:
		return "uninstalled"
	case FeatureDisabled:
		return "disabled"
	case FeatureEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// Feature 可挂载的独立行为单元
//
// 一个特性在挂载期间只属于一个宿主。
// 生命周期：Install → Enable ⇄ Disable → Uninstall。
type Feature interface {
	// Key 特性标识，同一宿主上唯一
	Key() string

	// Install 绑定宿主与事件接收器
	Install(owner Owner, sink EventSink) error

	// Enable 启用特性
	Enable() error

	// Disable 停用特性
	Disable() error

	// Uninstall 解除绑定，释放资源
	Uninstall() error

	// State 返回当前状态
	State() FeatureState
}

// DataTarget 可以认领入站对象的特性
type DataTarget interface {
	// Accepts 是否可以处理该对象
	Accepts(obj any) bool

	// Process 处理对象，返回 true 表示已认领
	Process(obj any) bool
}

// ConnectionObserver 关注宿主连接事件的特性
type ConnectionObserver interface {
	// OnConnected 新连接建立
	OnConnected()

	// OnDisconnected 连接断开
	OnDisconnected(reason types.DisconnectReason)
}

// Authorizer 决定宿主入站流量是否已通过认证
type Authorizer interface {
	Authorized() bool
}

// FeatureLookup 按标识查找已挂载的特性
type FeatureLookup interface {
	Lookup(key string) (Feature, bool)
}

// Owner 特性的宿主：Controller 或服务端 Peer
type Owner interface {
	// ID 宿主标识（Peer ID 或客户端标识）
	ID() string

	// Role 宿主所属控制器的角色
	Role() types.Role

	// RequiresAuth 是否要求认证
	RequiresAuth() bool

	// Send 打包并发送对象
	Send(objs ...any) error

	// Disconnect 以结构化原因断开连接
	Disconnect(reason types.DisconnectReason) error

	// Features 宿主的特性集合
	Features() FeatureLookup
}

// KeyHolder 持有预共享密钥的宿主（客户端）
type KeyHolder interface {
	PresharedKey() string
}

// Connector 可以主动建立连接的宿主（客户端）
type Connector interface {
	Connect(ctx context.Context) error
}
