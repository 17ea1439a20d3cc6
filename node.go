package peerctl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/controller"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/internal/core/metrics"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("peerctl")

// stopTimeout Close 使用的停止超时
const stopTimeout = 15 * time.Second

// Node 消息节点
//
// Node 是用户交互的主入口，一个门面（Facade）聚合了 Fx 装配的内部组件：
// 控制器、事件总线、指标与密钥库。角色在构造时确定。
//
// 使用示例：
//
//	srv, err := peerctl.NewServer(
//	    peerctl.WithEndpoint(":7400"),
//	    peerctl.WithKeyStoreFile("keys.json"),
//	    peerctl.WithHandler(peerctl.EchoHandler),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	cli, _ := peerctl.NewClient(
//	    peerctl.WithEndpoint("127.0.0.1:7400"),
//	    peerctl.WithPresharedKey(key),
//	)
//	_ = cli.Start(ctx)
//	_ = cli.WaitAuthenticated(ctx)
//	out, err := cli.Request(ctx, &peerctl.Echo{Text: "hi"})
type Node struct {
	app  *fx.App
	role types.Role
	cfg  *config.Config

	// ────────────────────────────────────────────────────────────────────────
	// 核心组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	ctrl    *controller.Controller
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	keys    interfaces.KeyStore

	// ────────────────────────────────────────────────────────────────────────
	// 生命周期状态
	// ────────────────────────────────────────────────────────────────────────

	mu      sync.Mutex
	started bool
	closed  bool
}

// PeerInfo 服务端视角的 Peer 快照
type PeerInfo struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time
	Authorized  bool
	Specs       *structpb.Struct
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// NewClient 创建客户端节点，需调用 Start 建立连接
func NewClient(opts ...Option) (*Node, error) {
	return newNode(config.RoleClient, opts)
}

// NewServer 创建服务端节点，需调用 Start 开始监听
func NewServer(opts ...Option) (*Node, error) {
	return newNode(config.RoleServer, opts)
}

func newNode(role string, opts []Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	o.config.Controller.Role = role

	n := &Node{cfg: o.config}
	app, err := buildApp(o, n)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	n.app = app
	n.role = n.ctrl.Role()
	return n, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期管理
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点：服务端开始监听，客户端发起连接
//
// 客户端首次连接失败且启用了重连时，Start 成功返回并在后台重连。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	if err := n.app.Start(ctx); err != nil {
		logger.Error("节点启动失败", "role", n.role, "error", err)
		return fmt.Errorf("start: %w", err)
	}
	n.started = true
	logger.Info("节点已启动", "role", n.role, "id", log.TruncateID(n.ctrl.ID(), 8), "endpoint", n.Addr())
	return nil
}

// Stop 停止节点并释放资源，之后不可再次启动
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if !n.started {
		return ErrNotStarted
	}
	n.closed = true
	n.started = false

	if err := n.app.Stop(ctx); err != nil {
		logger.Error("停止节点失败", "error", err)
		return fmt.Errorf("stop fx app: %w", err)
	}
	logger.Info("节点已停止", "role", n.role)
	return nil
}

// Close 以默认超时停止节点，未启动或已关闭时为空操作
func (n *Node) Close() error {
	n.mu.Lock()
	running := n.started && !n.closed
	n.mu.Unlock()
	if !running {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return n.Stop(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// ID 控制器标识
func (n *Node) ID() string {
	return n.ctrl.ID()
}

// Role 节点角色
func (n *Node) Role() types.Role {
	return n.role
}

// Addr 服务端实际监听地址，客户端为目标地址
func (n *Node) Addr() string {
	return n.ctrl.Addr()
}

// Config 生效的配置（已补全缺省值）
func (n *Node) Config() *config.Config {
	return n.cfg
}

// Controller 底层控制器
func (n *Node) Controller() *controller.Controller {
	return n.ctrl
}

// Events 事件总线，用 eventbus.Subscribe 订阅
func (n *Node) Events() *eventbus.Bus {
	return n.bus
}

// Metrics Prometheus 指标，未启用时为 nil
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// KeyStore 服务端密钥库
func (n *Node) KeyStore() interfaces.KeyStore {
	return n.keys
}

// ════════════════════════════════════════════════════════════════════════════
//                              客户端
// ════════════════════════════════════════════════════════════════════════════

// Connected 客户端是否已连接
func (n *Node) Connected() bool {
	return n.role == types.RoleClient && n.ctrl.Connected()
}

// WaitAuthenticated 阻塞直到本次连接的认证有结论，未要求认证时立即返回
//
// 失败时返回 *AuthFailure。
func (n *Node) WaitAuthenticated(ctx context.Context) error {
	if n.role != types.RoleClient {
		return types.ErrClientOnly
	}
	if !n.ctrl.RequiresAuth() {
		return nil
	}
	af, ok := auth.From(n.ctrl.Features())
	if !ok {
		return fmt.Errorf("%w: auth feature not attached", types.ErrInvalidOperation)
	}
	return af.Wait(ctx)
}

// Send 客户端发送一个数据包
func (n *Node) Send(objs ...any) error {
	return n.ctrl.Send(objs...)
}

// Request 客户端发送请求并等待应答，成功时返回应答负载
//
// 对端失败应答时返回包装 ErrRemoteFailure 的错误。
func (n *Node) Request(ctx context.Context, payload any) (any, error) {
	if n.role != types.RoleClient {
		return nil, types.ErrClientOnly
	}
	return call(ctx, n.ctrl.Features(), payload)
}

// Disconnect 客户端主动断开，不触发重连
func (n *Node) Disconnect() error {
	return n.ctrl.Disconnect(types.DisconnectNormal)
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务端
// ════════════════════════════════════════════════════════════════════════════

// Peers 当前连接的 Peer 快照
func (n *Node) Peers() []PeerInfo {
	if n.role != types.RoleServer {
		return nil
	}
	peers := n.ctrl.Peers()
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, peerInfo(p))
	}
	return out
}

// Peer 按标识查找 Peer
func (n *Node) Peer(id string) (PeerInfo, bool) {
	p, ok := n.ctrl.Peer(id)
	if !ok {
		return PeerInfo{}, false
	}
	return peerInfo(p), true
}

// SendTo 向指定 Peer 发送一个数据包
func (n *Node) SendTo(peerID string, objs ...any) error {
	return n.ctrl.SendTo(peerID, objs...)
}

// Broadcast 向所有 Peer 发送同一数据包
func (n *Node) Broadcast(objs ...any) error {
	return n.ctrl.Broadcast(objs...)
}

// RequestPeer 服务端向指定 Peer 发送请求并等待应答
func (n *Node) RequestPeer(ctx context.Context, peerID string, payload any) (any, error) {
	if n.role != types.RoleServer {
		return nil, types.ErrServerOnly
	}
	p, ok := n.ctrl.Peer(peerID)
	if !ok {
		return nil, types.ErrUnknownPeer
	}
	return call(ctx, p.Features(), payload)
}

// Kick 断开指定 Peer
func (n *Node) Kick(peerID string) error {
	return n.ctrl.DisconnectPeer(peerID, types.DisconnectRemoved)
}

func peerInfo(p *controller.Peer) PeerInfo {
	return PeerInfo{
		ID:          p.ID(),
		RemoteAddr:  p.RemoteAddr(),
		ConnectedAt: p.ConnectedAt(),
		Authorized:  p.Authorized(),
		Specs:       p.Specs(),
	}
}

func call(ctx context.Context, l interfaces.FeatureLookup, payload any) (any, error) {
	rr, ok := reqresp.From(l)
	if !ok {
		return nil, fmt.Errorf("%w: reqresp feature not attached", types.ErrInvalidOperation)
	}
	resp, err := rr.Call(ctx, payload)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}
