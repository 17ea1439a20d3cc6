package controller

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/internal/core/metrics"
	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("core/controller")

// Config 控制器配置
type Config struct {
	// Endpoint 客户端为目标地址，服务端为监听地址
	Endpoint string

	// RequiresAuth 是否要求认证
	RequiresAuth bool

	// PresharedKey 客户端预共享密钥
	PresharedKey string

	// Capabilities 本端能力描述
	Capabilities map[string]any
}

// ConfigFrom 从统一配置构造
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.Default()
	}
	return Config{
		Endpoint:     cfg.Controller.Endpoint,
		RequiresAuth: cfg.Auth.Required,
		PresharedKey: cfg.Auth.Key,
		Capabilities: cfg.Controller.Capabilities,
	}
}

// ============================================================================
//                              Controller
// ============================================================================

// Controller 消息控制器
//
// 角色在构造时确定且不可变。客户端与服务端共享编解码、分发与特性集合，
// 只属于另一角色的操作返回 types.ErrClientOnly 或 types.ErrServerOnly。
type Controller struct {
	role  types.Role
	id    string
	cfg   Config
	specs *structpb.Struct

	codec   *wire.Codec
	sink    interfaces.EventSink
	metrics metrics.Reporter
	ids     types.IDGenerator
	clock   clock.Clock

	factories     []feature.Factory
	peerFactories []feature.Factory
	peerInits     []func(*Peer) error
	features      *feature.Set

	client interfaces.ClientTransport
	server interfaces.ServerTransport

	mu sync.RWMutex
	// 客户端状态
	connected bool
	manual    bool
	// 服务端状态
	started bool
	peers   map[uint64]*Peer
	byID    map[string]*Peer

	closed bool

	gateLog rate.Sometimes
}

var (
	_ interfaces.Owner     = (*Controller)(nil)
	_ interfaces.KeyHolder = (*Controller)(nil)
	_ interfaces.Connector = (*Controller)(nil)
)

func newController(role types.Role, cfg Config, opts []Option) (*Controller, error) {
	c := &Controller{
		role:    role,
		cfg:     cfg,
		sink:    interfaces.NopSink{},
		metrics: metrics.Nop{},
		ids:     types.NewUUID,
		clock:   clock.New(),
		peers:   make(map[uint64]*Peer),
		byID:    make(map[string]*Peer),
		gateLog: rate.Sometimes{Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.codec == nil {
		reg, err := NewRegistry()
		if err != nil {
			return nil, err
		}
		c.codec = wire.NewCodec(reg)
	}

	specs, err := NewSpecs(cfg.Capabilities)
	if err != nil {
		return nil, err
	}
	c.specs = specs
	c.id = c.ids()
	c.features = feature.NewSet(c, c.sink)
	return c, nil
}

// attach 挂载构造选项中的特性
func (c *Controller) attach() error {
	if err := c.features.AttachAll(c.factories); err != nil {
		return fmt.Errorf("controller: attach features: %w", err)
	}
	return nil
}

// ============================================================================
//                              interfaces.Owner
// ============================================================================

// ID 控制器标识
func (c *Controller) ID() string {
	return c.id
}

// Role 控制器角色
func (c *Controller) Role() types.Role {
	return c.role
}

// RequiresAuth 是否要求认证
func (c *Controller) RequiresAuth() bool {
	return c.cfg.RequiresAuth
}

// Features 控制器特性查找
func (c *Controller) Features() interfaces.FeatureLookup {
	return c.features
}

// FeatureSet 控制器特性集合，用于 feature.Add 动态挂载
func (c *Controller) FeatureSet() *feature.Set {
	return c.features
}

// Endpoint 配置的端点
func (c *Controller) Endpoint() string {
	return c.cfg.Endpoint
}

// Specs 本端能力描述
func (c *Controller) Specs() *structpb.Struct {
	return c.specs
}

// Codec 线上编解码器
func (c *Controller) Codec() *wire.Codec {
	return c.codec
}

// ============================================================================
//                              编解码与分发
// ============================================================================

func (c *Controller) encode(objs []any) ([]byte, error) {
	data, err := c.codec.Encode(wire.NewPack(objs...))
	if err != nil {
		return nil, fmt.Errorf("controller: encode: %w", err)
	}
	return data, nil
}

func (c *Controller) decode(owner string, data []byte) (*wire.Pack, bool) {
	c.metrics.PackReceived(len(data))
	pack, err := c.codec.Decode(data)
	if err != nil {
		c.metrics.DecodeFailed()
		logger.Warn("数据包解码失败，已丢弃",
			"owner", log.TruncateID(owner, 8),
			"bytes", len(data),
			"error", err)
		return nil, false
	}
	return pack, true
}

// dispatch 依次交给各集合，第一个认领者结束该对象的分发
func (c *Controller) dispatch(owner string, obj any, sets ...*feature.Set) {
	for _, s := range sets {
		if s != nil && s.Dispatch(obj) {
			return
		}
	}
	c.unhandled(owner, obj)
}

func (c *Controller) unhandled(owner string, obj any) {
	name := typeName(obj)
	c.metrics.Unhandled()
	logger.Debug("对象无人认领", "owner", log.TruncateID(owner, 8), "type", name)
	c.sink.Emit(types.EvtUnhandledMessage{OwnerID: owner, TypeName: name})
}

func typeName(obj any) string {
	if obj == nil {
		return "<nil>"
	}
	return reflect.TypeOf(obj).String()
}

func (c *Controller) now() time.Time {
	return c.clock.Now()
}
