package controller

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              构造
// ============================================================================

// NewServer 创建服务端控制器
//
// WithFeatures 挂载到控制器自身，WithPeerFeatures 挂载到每个新 Peer。
func NewServer(cfg Config, t interfaces.ServerTransport, opts ...Option) (*Controller, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	c, err := newController(types.RoleServer, cfg, opts)
	if err != nil {
		return nil, err
	}
	c.server = t
	t.SetHandler(serverHandler{c})

	if err := c.attach(); err != nil {
		return nil, err
	}
	return c, nil
}

// ============================================================================
//                              启停
// ============================================================================

// Start 启用控制器特性并在配置的端点监听（仅服务端）
//
// Stop 之后可再次调用。
func (c *Controller) Start(ctx context.Context) error {
	if c.role != types.RoleServer {
		return types.ErrServerOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return types.ErrAlreadyStarted
	}

	if err := c.features.EnableAll(); err != nil {
		return fmt.Errorf("controller: enable features: %w", err)
	}
	if err := c.server.Listen(ctx, c.cfg.Endpoint); err != nil {
		return multierr.Append(err, c.features.DisableAll())
	}
	c.started = true
	logger.Info("服务端已启动", "addr", c.server.Addr(), "auth", c.cfg.RequiresAuth)
	return nil
}

// Stop 以 Shutdown 断开全部 Peer，同步卸载其特性，关闭监听器，最后停用控制器特性（仅服务端）
//
// 控制器特性保持安装，再次 Start 时重新启用。ctx 结束时不再等待传输层退出。
func (c *Controller) Stop(ctx context.Context) error {
	if c.role != types.RoleServer {
		return types.ErrServerOnly
	}
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return types.ErrNotStarted
	}
	c.started = false
	peers := make([]*Peer, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.Unlock()

	var err error
	for _, p := range peers {
		if derr := c.server.Disconnect(p.connID, types.DisconnectShutdown); derr != nil {
			logger.Debug("断开 Peer 失败", "peer", log.TruncateID(p.id, 8), "error", derr)
		}
		p.close(types.DisconnectShutdown)
	}

	done := make(chan error, 1)
	go func() { done <- c.server.Close() }()
	select {
	case cerr := <-done:
		err = multierr.Append(err, cerr)
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	err = multierr.Append(err, c.features.DisableAll())

	logger.Info("服务端已停止", "peers", len(peers))
	return err
}

// Started 服务端是否在运行
func (c *Controller) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Addr 实际地址：服务端为监听地址，客户端为配置的端点
func (c *Controller) Addr() string {
	if c.role == types.RoleServer && c.Started() {
		return c.server.Addr()
	}
	return c.cfg.Endpoint
}

// ============================================================================
//                              Peer 管理
// ============================================================================

// Peer 按标识查找在线 Peer
func (c *Controller) Peer(id string) (*Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// Peers 在线 Peer 快照
func (c *Controller) Peers() []*Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Peer, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	return out
}

// PeerCount 在线 Peer 数量
func (c *Controller) PeerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *Controller) forget(p *Peer) {
	c.mu.Lock()
	if c.peers[p.connID] == p {
		delete(c.peers, p.connID)
	}
	if c.byID[p.id] == p {
		delete(c.byID, p.id)
	}
	c.mu.Unlock()
}

func (c *Controller) lookupPeer(id string) (*Peer, error) {
	if c.role != types.RoleServer {
		return nil, types.ErrServerOnly
	}
	c.mu.RLock()
	started := c.started
	p, ok := c.byID[id]
	c.mu.RUnlock()
	if !started {
		return nil, types.ErrNotStarted
	}
	if !ok {
		return nil, types.ErrUnknownPeer
	}
	return p, nil
}

// SendTo 向指定 Peer 发送对象（仅服务端）
func (c *Controller) SendTo(peerID string, objs ...any) error {
	p, err := c.lookupPeer(peerID)
	if err != nil {
		return err
	}
	data, err := c.encode(objs)
	if err != nil {
		return err
	}
	if err := c.server.Send(p.connID, data); err != nil {
		if p.closed.Load() {
			return types.ErrPeerClosed
		}
		return err
	}
	c.metrics.PackSent(len(data))
	return nil
}

// Broadcast 向全部在线 Peer 发送同一批对象（仅服务端），数据包只编码一次
func (c *Controller) Broadcast(objs ...any) error {
	if c.role != types.RoleServer {
		return types.ErrServerOnly
	}
	if !c.Started() {
		return types.ErrNotStarted
	}
	data, err := c.encode(objs)
	if err != nil {
		return err
	}
	for _, p := range c.Peers() {
		if serr := c.server.Send(p.connID, data); serr != nil {
			err = multierr.Append(err, serr)
			continue
		}
		c.metrics.PackSent(len(data))
	}
	return err
}

// DisconnectPeer 以指定原因断开 Peer（仅服务端）
//
// 特性在传输层确认断开后卸载。
func (c *Controller) DisconnectPeer(peerID string, reason types.DisconnectReason) error {
	p, err := c.lookupPeer(peerID)
	if err != nil {
		return err
	}
	logger.Debug("断开 Peer", "peer", log.TruncateID(peerID, 8), "reason", reason)
	if err := c.server.Disconnect(p.connID, reason); err != nil {
		if p.closed.Load() || errors.Is(err, types.ErrTransport) {
			return types.ErrPeerClosed
		}
		return err
	}
	return nil
}

// ============================================================================
//                              传输回调
// ============================================================================

type serverHandler struct {
	c *Controller
}

func (h serverHandler) OnConnected(connID uint64, remoteAddr string) {
	c := h.c
	p := newPeer(c, connID, remoteAddr)

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		logger.Debug("服务端未运行，拒绝连接", "remote", remoteAddr)
		_ = c.server.Disconnect(connID, types.DisconnectShutdown)
		return
	}
	c.peers[connID] = p
	c.byID[p.id] = p
	c.mu.Unlock()

	logger.Info("Peer 已连接", "peer", log.TruncateID(p.id, 8), "remote", remoteAddr)
	c.sink.Emit(types.EvtPeerConnected{PeerID: p.id, RemoteAddr: remoteAddr, At: p.connectedAt})

	if err := p.open(c.peerFactories, c.peerInits); err != nil {
		logger.Warn("Peer 特性挂载失败，断开连接", "peer", log.TruncateID(p.id, 8), "error", err)
		_ = c.server.Disconnect(connID, types.DisconnectRemoved)
	}
}

func (h serverHandler) OnDisconnected(connID uint64, reason types.DisconnectReason) {
	c := h.c
	c.mu.RLock()
	p, ok := c.peers[connID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	p.close(reason)
}

func (h serverHandler) OnBytesReceived(connID uint64, data []byte) {
	c := h.c
	c.mu.RLock()
	p, ok := c.peers[connID]
	c.mu.RUnlock()
	if !ok {
		logger.Debug("未知连接的数据，已丢弃", "conn", connID, "bytes", len(data))
		return
	}

	pack, ok := c.decode(p.id, data)
	if !ok {
		return
	}
	for _, obj := range pack.Objects() {
		if !c.admit(p, obj) {
			continue
		}
		c.dispatch(p.id, obj, c.features, p.features)
	}
}

// admit 要求认证时，未认证 Peer 只放行响应
func (c *Controller) admit(p *Peer, obj any) bool {
	if !c.cfg.RequiresAuth {
		return true
	}
	if _, ok := obj.(*reqresp.Response); ok {
		return true
	}
	if p.Authorized() {
		return true
	}
	c.metrics.GatedDrop()
	c.gateLog.Do(func() {
		logger.Warn("未认证 Peer 的对象已丢弃", "peer", log.TruncateID(p.id, 8), "type", typeName(obj))
	})
	return false
}
