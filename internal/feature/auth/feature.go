package auth

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("feature/auth")

// Key 特性标识
const Key = "auth"

// Config 认证特性配置
type Config struct {
	// Timeout 挑战发出后等待结论的时间
	Timeout time.Duration

	// PollInterval 超时检查间隔
	PollInterval time.Duration

	// Clock 时间源
	Clock clock.Clock

	// KeyStore 发起方（服务端）用于校验密钥
	KeyStore interfaces.KeyStore
}

// ConfigFrom 从统一配置构造
func ConfigFrom(cfg config.AuthConfig, ks interfaces.KeyStore) Config {
	return Config{
		Timeout:      cfg.Timeout.Duration(),
		PollInterval: cfg.PollInterval.Duration(),
		KeyStore:     ks,
	}
}

func (c Config) withDefaults() Config {
	def := config.DefaultAuthConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout.Duration()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval.Duration()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// Handshake 认证握手状态快照
type Handshake struct {
	Status          types.AuthStatus
	Reason          types.AuthFailureReason
	ChallengeSentAt time.Time
	ResponseAt      time.Time
}

// ============================================================================
//                              Feature
// ============================================================================

// Feature 预共享密钥认证特性
type Feature struct {
	feature.Base

	cfg Config

	mu     sync.Mutex
	state  Handshake
	key    string
	done   chan struct{}
	poller *poller
}

var (
	_ interfaces.Feature            = (*Feature)(nil)
	_ interfaces.DataTarget         = (*Feature)(nil)
	_ interfaces.ConnectionObserver = (*Feature)(nil)
	_ interfaces.Authorizer         = (*Feature)(nil)
)

// New 创建认证特性
func New(cfg Config) *Feature {
	return &Feature{
		cfg:  cfg.withDefaults(),
		done: make(chan struct{}),
	}
}

// NewFactory 返回用于 Peer 特性集合的工厂
func NewFactory(cfg Config) feature.Factory {
	return feature.Factory{
		Key: Key,
		New: func() interfaces.Feature { return New(cfg) },
	}
}

// From 从宿主的特性集合中取出认证特性
func From(l interfaces.FeatureLookup) (*Feature, bool) {
	return feature.Get[*Feature](l, Key)
}

// Key 实现 interfaces.Feature
func (f *Feature) Key() string {
	return Key
}

// Install 记录客户端密钥；发起方在要求认证时必须有密钥库
func (f *Feature) Install(owner interfaces.Owner, sink interfaces.EventSink) error {
	if owner.Role() == types.RoleServer && owner.RequiresAuth() && f.cfg.KeyStore == nil {
		return ErrNoKeyStore
	}
	if err := f.Base.Install(owner, sink); err != nil {
		return err
	}
	if kh, ok := owner.(interfaces.KeyHolder); ok {
		f.mu.Lock()
		f.key = kh.PresharedKey()
		f.mu.Unlock()
	}
	return nil
}

// Enable 应答方在 reqresp 上注册挑战处理器
func (f *Feature) Enable() error {
	owner := f.Owner()
	if owner != nil && !f.initiator() {
		rr, ok := reqresp.From(owner.Features())
		if !ok {
			return ErrNoRequestFeature
		}
		if err := reqresp.HandleVoid(rr, f.answerChallenge); err != nil {
			return err
		}
	}
	return f.Base.Enable()
}

// Disable 停止超时轮询并等待其退出
func (f *Feature) Disable() error {
	if err := f.Base.Disable(); err != nil {
		return err
	}
	f.stopPoller(true)
	return nil
}

// Uninstall 移除挑战处理器
func (f *Feature) Uninstall() error {
	owner := f.Owner()
	if err := f.Base.Uninstall(); err != nil {
		return err
	}
	if owner != nil {
		if rr, ok := reqresp.From(owner.Features()); ok {
			reqresp.RemoveHandlers[Challenge](rr)
		}
	}
	return nil
}

func (f *Feature) initiator() bool {
	owner := f.Owner()
	return owner != nil && owner.Role() == types.RoleServer
}

// ============================================================================
//                              状态
// ============================================================================

// Snapshot 返回认证状态快照
func (f *Feature) Snapshot() Handshake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Status 当前认证状态
func (f *Feature) Status() types.AuthStatus {
	return f.Snapshot().Status
}

// Authorized 实现 interfaces.Authorizer：不要求认证或已认证
func (f *Feature) Authorized() bool {
	owner := f.Owner()
	if owner == nil {
		return false
	}
	return !owner.RequiresAuth() || f.Status() == types.AuthAuthenticated
}

// Wait 阻塞直到本次连接的握手有结论
func (f *Feature) Wait(ctx context.Context) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s := f.Snapshot()
	if s.Status == types.AuthAuthenticated {
		return nil
	}
	return &Failure{Reason: s.Reason}
}

// ============================================================================
//                              连接事件
// ============================================================================

// OnConnected 新连接重置握手；发起方随即开始
func (f *Feature) OnConnected() {
	f.stopPoller(false)

	f.mu.Lock()
	f.state = Handshake{}
	select {
	case <-f.done:
		f.done = make(chan struct{})
	default:
	}
	f.mu.Unlock()

	if f.initiator() {
		if err := f.Start(); err != nil {
			logger.Warn("启动认证失败", "owner", ownerID(f.Owner()), "error", err)
		}
	}
}

// OnDisconnected 停止超时轮询
func (f *Feature) OnDisconnected(types.DisconnectReason) {
	f.stopPoller(false)
}

// Start 发送挑战并开始超时轮询，不要求认证时为空操作
func (f *Feature) Start() error {
	owner := f.Owner()
	if owner == nil || !f.Enabled() {
		return nil
	}
	if !owner.RequiresAuth() {
		return nil
	}
	rr, ok := reqresp.From(owner.Features())
	if !ok {
		return ErrNoRequestFeature
	}

	f.mu.Lock()
	if f.state.Status != types.AuthNotStarted {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.state.Status = types.AuthRequestSent
	f.state.ChallengeSentAt = f.cfg.Clock.Now()
	f.poller = startPoller(f)
	f.mu.Unlock()

	logger.Debug("发送认证挑战", "owner", ownerID(owner))
	return rr.Send(reqresp.NewRequest(&Challenge{}), f.onResponse)
}

// ============================================================================
//                              发起方
// ============================================================================

// onResponse 校验应答方返回的密钥
func (f *Feature) onResponse(resp *reqresp.Response) {
	if !resp.Success {
		f.conclude(types.AuthFailed, types.AuthFailureInvalidKey)
		return
	}
	proof, ok := resp.Payload.(*KeyProof)
	if !ok || f.cfg.KeyStore == nil || !f.cfg.KeyStore.IsValid(proof.Key) {
		f.conclude(types.AuthFailed, types.AuthFailureUnknownKey)
		return
	}
	f.conclude(types.AuthAuthenticated, types.AuthFailureNone)
}

// timeout 由轮询调用；finished 表示握手已离开 RequestSent
func (f *Feature) timeout(now time.Time) (expired, finished bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Status != types.AuthRequestSent {
		return false, true
	}
	return now.Sub(f.state.ChallengeSentAt) >= f.cfg.Timeout, false
}

// conclude 记录结论；发起方通知对端，失败时断开连接
func (f *Feature) conclude(status types.AuthStatus, reason types.AuthFailureReason) {
	if !f.resolve(status, reason) {
		return
	}
	f.stopPoller(false)

	owner := f.Owner()
	if owner == nil {
		return
	}
	result := &Result{Success: status == types.AuthAuthenticated, Reason: reason}
	if err := owner.Send(result); err != nil {
		logger.Debug("发送认证结论失败", "owner", ownerID(owner), "error", err)
	}
	if status == types.AuthFailed {
		logger.Warn("认证失败，断开连接", "owner", ownerID(owner), "reason", reason)
		if err := owner.Disconnect(types.DisconnectAuthFailure); err != nil {
			logger.Debug("断开连接失败", "owner", ownerID(owner), "error", err)
		}
		return
	}
	logger.Info("认证成功", "owner", ownerID(owner))
}

// resolve 状态只能向前迁移到终态，返回本次是否生效
func (f *Feature) resolve(status types.AuthStatus, reason types.AuthFailureReason) bool {
	f.mu.Lock()
	if f.state.Status.Terminal() {
		f.mu.Unlock()
		return false
	}
	now := f.cfg.Clock.Now()
	f.state.Status, f.state.Reason, f.state.ResponseAt = status, reason, now
	close(f.done)
	f.mu.Unlock()

	var role types.Role
	if owner := f.Owner(); owner != nil {
		role = owner.Role()
	}
	f.Emit(types.EvtAuthCompleted{
		OwnerID: ownerID(f.Owner()),
		Role:    role,
		Status:  status,
		Reason:  reason,
		At:      now,
	})
	return true
}

// ============================================================================
//                              应答方
// ============================================================================

// answerChallenge 有密钥时以 KeyProof 成功应答，否则失败应答
func (f *Feature) answerChallenge(ex *reqresp.Exchange, _ *Challenge) {
	f.mu.Lock()
	key := f.key
	if f.state.Status == types.AuthNotStarted {
		f.state.Status = types.AuthRequestSent
		f.state.ChallengeSentAt = f.cfg.Clock.Now()
	}
	f.mu.Unlock()

	var err error
	if key == "" {
		logger.Warn("收到认证挑战但未配置密钥")
		err = ex.RespondFail(&reqresp.Failure{Message: "no key configured"})
	} else {
		err = ex.RespondSuccess(&KeyProof{Key: key})
	}
	if err != nil {
		logger.Debug("应答认证挑战失败", "error", err)
	}
}

// Accepts 实现 interfaces.DataTarget：应答方接收结论
func (f *Feature) Accepts(obj any) bool {
	_, ok := obj.(*Result)
	return ok && f.Enabled() && !f.initiator()
}

// Process 实现 interfaces.DataTarget
func (f *Feature) Process(obj any) bool {
	res, ok := obj.(*Result)
	if !ok {
		return false
	}
	if res.Success {
		f.resolve(types.AuthAuthenticated, types.AuthFailureNone)
	} else {
		f.resolve(types.AuthFailed, res.Reason)
	}
	return true
}

func ownerID(o interfaces.Owner) string {
	if o == nil {
		return ""
	}
	return log.TruncateID(o.ID(), 8)
}
