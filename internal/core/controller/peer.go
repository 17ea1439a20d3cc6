package controller

import (
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// Peer 服务端视角的一个远端连接
//
// 每次传输层连接事件创建一个 Peer，标识在控制器生命周期内不复用。
// 断开后其特性全部卸载，Send 返回 types.ErrPeerClosed。
type Peer struct {
	id          string
	connID      uint64
	remoteAddr  string
	connectedAt time.Time

	ctrl     *Controller
	features *feature.Set

	closed   atomic.Bool
	teardown sync.Once

	mu    sync.RWMutex
	specs *structpb.Struct
}

var _ interfaces.Owner = (*Peer)(nil)

func newPeer(c *Controller, connID uint64, remoteAddr string) *Peer {
	p := &Peer{
		id:          c.ids(),
		connID:      connID,
		remoteAddr:  remoteAddr,
		connectedAt: c.now(),
		ctrl:        c,
	}
	p.features = feature.NewSet(p, c.sink)
	return p
}

// ID 实现 interfaces.Owner
func (p *Peer) ID() string {
	return p.id
}

// Role 实现 interfaces.Owner，Peer 总是属于服务端
func (p *Peer) Role() types.Role {
	return types.RoleServer
}

// RequiresAuth 实现 interfaces.Owner
func (p *Peer) RequiresAuth() bool {
	return p.ctrl.cfg.RequiresAuth
}

// Features 实现 interfaces.Owner
func (p *Peer) Features() interfaces.FeatureLookup {
	return p.features
}

// FeatureSet Peer 的特性集合
func (p *Peer) FeatureSet() *feature.Set {
	return p.features
}

// RemoteAddr 远端地址
func (p *Peer) RemoteAddr() string {
	return p.remoteAddr
}

// ConnectedAt 连接建立时间
func (p *Peer) ConnectedAt() time.Time {
	return p.connectedAt
}

// Closed 是否已断开
func (p *Peer) Closed() bool {
	return p.closed.Load()
}

// Specs 协商得到的远端能力描述，尚未收到时为 nil
func (p *Peer) Specs() *structpb.Struct {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.specs
}

// Send 实现 interfaces.Owner，委托给 Controller.SendTo
func (p *Peer) Send(objs ...any) error {
	if p.closed.Load() {
		return types.ErrPeerClosed
	}
	return p.ctrl.SendTo(p.id, objs...)
}

// Disconnect 实现 interfaces.Owner，委托给控制器按标识断开
func (p *Peer) Disconnect(reason types.DisconnectReason) error {
	if p.closed.Load() {
		return types.ErrPeerClosed
	}
	return p.ctrl.DisconnectPeer(p.id, reason)
}

// Authorized 未要求认证，或某个 Authorizer 特性已放行
func (p *Peer) Authorized() bool {
	if !p.RequiresAuth() {
		return true
	}
	az, ok := feature.Find[interfaces.Authorizer](p.features)
	return ok && az.Authorized()
}

// ============================================================================
//                              生命周期
// ============================================================================

// open 挂载特性、执行初始化钩子、通知连接观察者并发起能力协商
func (p *Peer) open(factories []feature.Factory, inits []func(*Peer) error) error {
	if err := p.features.AttachAll(factories); err != nil {
		return err
	}
	for _, fn := range inits {
		if err := fn(p); err != nil {
			return err
		}
	}
	p.features.NotifyConnected()

	rr, ok := reqresp.From(p.features)
	if !ok {
		return nil
	}
	if _, err := rr.Request(&SpecsQuery{}, p.onSpecs); err != nil {
		logger.Warn("能力协商请求发送失败", "peer", log.TruncateID(p.id, 8), "error", err)
	}
	return nil
}

func (p *Peer) onSpecs(resp *reqresp.Response) {
	specs, ok := resp.Payload.(*structpb.Struct)
	if !resp.Success || !ok {
		logger.Debug("能力协商失败", "peer", log.TruncateID(p.id, 8), "error", resp.Err())
		return
	}
	p.mu.Lock()
	if p.specs == nil {
		p.specs = specs
	}
	p.mu.Unlock()
	logger.Debug("能力协商完成", "peer", log.TruncateID(p.id, 8), "fields", len(specs.GetFields()))
}

// close 通知观察者并卸载全部特性，只执行一次
func (p *Peer) close(reason types.DisconnectReason) {
	p.teardown.Do(func() {
		p.closed.Store(true)
		p.ctrl.forget(p)

		p.features.NotifyDisconnected(reason)
		if err := p.features.Teardown(); err != nil {
			logger.Warn("卸载 Peer 特性失败", "peer", log.TruncateID(p.id, 8), "error", err)
		}

		logger.Info("Peer 已断开", "peer", log.TruncateID(p.id, 8), "remote", p.remoteAddr, "reason", reason)
		p.ctrl.sink.Emit(types.EvtPeerDisconnected{PeerID: p.id, Reason: reason, At: p.ctrl.now()})
	})
}
