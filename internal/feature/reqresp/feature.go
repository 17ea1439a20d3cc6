package reqresp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("feature/reqresp")

// Key 特性标识
const Key = "reqresp"

// Callback 响应回调，每个请求至多调用一次
type Callback func(resp *Response)

// Config 特性配置
type Config struct {
	// RecentCacheSize 最近已应答关联 ID 的缓存容量
	RecentCacheSize int

	// Clock 时间源
	Clock clock.Clock

	// IDs 关联 ID 生成器
	IDs types.IDGenerator
}

// ConfigFrom 从统一配置构造
func ConfigFrom(cfg config.RequestConfig) Config {
	return Config{RecentCacheSize: cfg.RecentCacheSize}
}

func (c Config) withDefaults() Config {
	if c.RecentCacheSize <= 0 {
		c.RecentCacheSize = config.DefaultRequestConfig().RecentCacheSize
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.IDs == nil {
		c.IDs = types.NewUUID
	}
	return c
}

// ============================================================================
//                              Feature
// ============================================================================

// Feature 请求/响应特性
type Feature struct {
	feature.Base

	cfg      Config
	handlers handlerTable

	mu      sync.Mutex
	pending map[string]Callback
	recent  *lru.Cache[string, struct{}]

	sent atomic.Uint64
}

var (
	_ interfaces.Feature    = (*Feature)(nil)
	_ interfaces.DataTarget = (*Feature)(nil)
)

// New 创建特性
func New(cfg Config) *Feature {
	cfg = cfg.withDefaults()
	recent, err := lru.New[string, struct{}](cfg.RecentCacheSize)
	if err != nil {
		// 容量已在 withDefaults 中保证为正
		panic(err)
	}
	return &Feature{
		cfg:     cfg,
		pending: make(map[string]Callback),
		recent:  recent,
	}
}

// NewFactory 返回用于 Peer 特性集合的工厂
func NewFactory(cfg Config) feature.Factory {
	return feature.Factory{
		Key: Key,
		New: func() interfaces.Feature { return New(cfg) },
	}
}

// From 从宿主的特性集合中取出请求/响应特性
func From(l interfaces.FeatureLookup) (*Feature, bool) {
	return feature.Get[*Feature](l, Key)
}

// Key 实现 interfaces.Feature
func (f *Feature) Key() string {
	return Key
}

// Uninstall 卸载并丢弃所有待决回调
func (f *Feature) Uninstall() error {
	if err := f.Base.Uninstall(); err != nil {
		return err
	}
	f.mu.Lock()
	dropped := len(f.pending)
	clear(f.pending)
	f.recent.Purge()
	f.mu.Unlock()
	if dropped > 0 {
		logger.Debug("卸载时丢弃待决请求", "count", dropped)
	}
	return nil
}

// ============================================================================
//                              发送
// ============================================================================

// Send 发送请求并登记回调
//
// 未分配关联 ID 时自动分配。发送失败时撤销登记并返回错误，
// 未连接时错误为 types.ErrInvalidOperation。
func (f *Feature) Send(req *Request, cb Callback) error {
	if req == nil {
		return ErrNilRequest
	}
	owner := f.Owner()
	if owner == nil || !f.Enabled() {
		return ErrNotInstalled
	}

	if req.ID == "" {
		req.ID = f.cfg.IDs()
	}
	req.SentAt = f.cfg.Clock.Now()

	f.mu.Lock()
	if _, dup := f.pending[req.ID]; dup {
		f.mu.Unlock()
		return fmt.Errorf("%w: duplicate correlation id %s", types.ErrInvalidOperation, req.ID)
	}
	f.pending[req.ID] = cb
	f.mu.Unlock()

	if err := owner.Send(req); err != nil {
		f.forget(req.ID)
		return err
	}
	f.sent.Add(1)
	return nil
}

// Request 以载荷构造请求并发送
func (f *Feature) Request(payload any, cb Callback) (*Request, error) {
	req := NewRequest(payload)
	if err := f.Send(req, cb); err != nil {
		return nil, err
	}
	return req, nil
}

// Call 发送请求并阻塞等待响应
//
// ctx 结束时撤销待决登记并返回 ctx.Err()。
func (f *Feature) Call(ctx context.Context, payload any) (*Response, error) {
	ch := make(chan *Response, 1)
	req := NewRequest(payload)
	if err := f.Send(req, func(r *Response) { ch <- r }); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		f.forget(req.ID)
		return nil, ctx.Err()
	}
}

func (f *Feature) forget(id string) {
	f.mu.Lock()
	delete(f.pending, id)
	f.mu.Unlock()
}

// Sent 已发送的请求数
func (f *Feature) Sent() uint64 {
	return f.sent.Load()
}

// Pending 待决请求数
func (f *Feature) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// ============================================================================
//                              入站
// ============================================================================

// Accepts 实现 interfaces.DataTarget
func (f *Feature) Accepts(obj any) bool {
	switch obj.(type) {
	case *Request, *Response:
		return f.Enabled()
	default:
		return false
	}
}

// Process 实现 interfaces.DataTarget
func (f *Feature) Process(obj any) bool {
	switch v := obj.(type) {
	case *Response:
		return f.processResponse(v)
	case *Request:
		return f.processRequest(v)
	default:
		return false
	}
}

func (f *Feature) processResponse(resp *Response) bool {
	f.mu.Lock()
	cb, ok := f.pending[resp.RequestID]
	if ok {
		delete(f.pending, resp.RequestID)
		f.recent.Add(resp.RequestID, struct{}{})
	}
	_, dup := f.recent.Peek(resp.RequestID)
	f.mu.Unlock()

	if !ok {
		if dup {
			logger.Debug("丢弃重复响应", "request", resp.RequestID)
		} else {
			logger.Debug("丢弃未知或迟到的响应", "request", resp.RequestID)
		}
		return false
	}

	resp.ReceivedAt = f.cfg.Clock.Now()
	if cb != nil {
		cb(resp)
	}
	return true
}

func (f *Feature) processRequest(req *Request) bool {
	owner := f.Owner()
	if owner == nil {
		return false
	}
	accepted := req.Accept(owner.ID())

	handlers := f.handlers.lookup(req.Payload)
	if len(handlers) == 0 {
		if accepted {
			_ = req.Decline()
		}
		logger.Debug("无处理器的请求", "request", req.ID, "payload", fmt.Sprintf("%T", req.Payload))
		return false
	}

	ex := &Exchange{f: f, owner: owner, req: req}
	for _, h := range handlers {
		h(ex, req.Payload)
	}
	return true
}
