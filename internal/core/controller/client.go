package controller

import (
	"context"
	"io"

	"go.uber.org/multierr"

	"github.com/dep2p/go-peerctl/internal/feature/reconnect"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              构造
// ============================================================================

// NewClient 创建客户端控制器
//
// 构造选项中的特性按顺序挂载到控制器；若挂载了 reqresp，
// 控制器在其上应答 *SpecsQuery。
func NewClient(cfg Config, t interfaces.ClientTransport, opts ...Option) (*Controller, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	c, err := newController(types.RoleClient, cfg, opts)
	if err != nil {
		return nil, err
	}
	c.client = t
	t.SetHandler(clientHandler{c})

	if err := c.attach(); err != nil {
		return nil, err
	}
	if err := c.ServeSpecs(); err != nil {
		return nil, err
	}
	return c, nil
}

// ServeSpecs 在控制器的 reqresp 上注册能力查询应答，未挂载 reqresp 时为空操作
//
// 在构造之后通过 feature.Add 挂载 reqresp 时需要再次调用。
func (c *Controller) ServeSpecs() error {
	rr, ok := reqresp.From(c.features)
	if !ok {
		return nil
	}
	return reqresp.Handle(rr, func(*reqresp.Exchange, *SpecsQuery) (any, error) {
		return c.specs, nil
	})
}

// PresharedKey 实现 interfaces.KeyHolder
func (c *Controller) PresharedKey() string {
	return c.cfg.PresharedKey
}

// ============================================================================
//                              连接管理
// ============================================================================

// Connect 连接到配置的端点（仅客户端）
//
// 要求认证但未配置密钥时立即返回 types.ErrMissingKey。
func (c *Controller) Connect(ctx context.Context) error {
	if c.role != types.RoleClient {
		return types.ErrClientOnly
	}
	if c.cfg.RequiresAuth && c.cfg.PresharedKey == "" {
		return types.ErrMissingKey
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.connected:
		c.mu.Unlock()
		return types.ErrAlreadyConnected
	}
	c.manual = false
	c.mu.Unlock()

	logger.Debug("正在连接", "endpoint", c.cfg.Endpoint)
	return c.client.Connect(ctx, c.cfg.Endpoint)
}

// Connected 客户端是否已连接
func (c *Controller) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Disconnect 以指定原因断开（仅客户端）
//
// 本端主动断开不会触发重连。
func (c *Controller) Disconnect(reason types.DisconnectReason) error {
	if c.role != types.RoleClient {
		return types.ErrClientOnly
	}
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return types.ErrNotConnected
	}
	c.manual = true
	c.mu.Unlock()

	logger.Debug("主动断开", "endpoint", c.cfg.Endpoint, "reason", reason)
	return c.client.Disconnect(reason)
}

// Close 停用全部特性、断开连接并卸载特性（仅客户端）
//
// 关闭后不能再次连接。
func (c *Controller) Close() error {
	if c.role != types.RoleClient {
		return types.ErrClientOnly
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.manual = true
	connected := c.connected
	c.mu.Unlock()

	err := c.features.DisableAll()
	if closer, ok := c.client.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	} else if connected {
		err = multierr.Append(err, c.client.Disconnect(types.DisconnectShutdown))
	}
	err = multierr.Append(err, c.features.Teardown())
	logger.Info("客户端已关闭", "id", c.id)
	return err
}

// Send 打包编码并发送对象（仅客户端）
func (c *Controller) Send(objs ...any) error {
	if c.role != types.RoleClient {
		return types.ErrClientOnly
	}
	if !c.Connected() {
		return types.ErrNotConnected
	}
	data, err := c.encode(objs)
	if err != nil {
		return err
	}
	if err := c.client.Send(data); err != nil {
		return err
	}
	c.metrics.PackSent(len(data))
	return nil
}

// ============================================================================
//                              传输回调
// ============================================================================

type clientHandler struct {
	c *Controller
}

func (h clientHandler) OnConnected() {
	c := h.c
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	logger.Info("已连接", "endpoint", c.cfg.Endpoint)
	c.features.NotifyConnected()
	c.sink.Emit(types.EvtClientConnected{Endpoint: c.cfg.Endpoint, At: c.now()})
}

func (h clientHandler) OnDisconnected(reason types.DisconnectReason) {
	c := h.c
	c.mu.Lock()
	c.connected = false
	manual := c.manual
	c.mu.Unlock()

	logger.Info("连接已断开", "endpoint", c.cfg.Endpoint, "reason", reason, "local", manual)
	if manual {
		c.features.NotifyDisconnected(reason, reconnect.Key)
	} else {
		c.features.NotifyDisconnected(reason)
	}
	c.sink.Emit(types.EvtClientDisconnected{Endpoint: c.cfg.Endpoint, Reason: reason, At: c.now()})
}

func (h clientHandler) OnBytesReceived(data []byte) {
	c := h.c
	pack, ok := c.decode(c.id, data)
	if !ok {
		return
	}
	for _, obj := range pack.Objects() {
		c.dispatch(c.id, obj, c.features)
	}
}
