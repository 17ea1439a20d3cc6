package reconnect

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("feature/reconnect")

// Key 特性标识
const Key = "reconnect"

// Config 重连配置
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	RetryInterval  time.Duration
	CooldownPeriod time.Duration
	DelayStep      time.Duration
	MaxDelay       time.Duration

	// Clock 时间源
	Clock clock.Clock
}

// ConfigFrom 从统一配置构造
func ConfigFrom(cfg config.ReconnectConfig) Config {
	return Config{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.InitialDelay.Duration(),
		RetryInterval:  cfg.RetryInterval.Duration(),
		CooldownPeriod: cfg.CooldownPeriod.Duration(),
		DelayStep:      cfg.DelayStep.Duration(),
		MaxDelay:       cfg.MaxDelay.Duration(),
	}
}

func (c Config) withDefaults() Config {
	def := ConfigFrom(config.DefaultReconnectConfig())
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	if c.CooldownPeriod <= 0 {
		c.CooldownPeriod = def.CooldownPeriod
	}
	if c.DelayStep <= 0 {
		c.DelayStep = def.DelayStep
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// Snapshot 重连状态快照
type Snapshot struct {
	State    types.ReconnectState
	Attempts int
	Delay    time.Duration
	LastTry  time.Time
	NextTry  time.Time
	GaveUp   bool
}

// ShouldReconnect 除认证失败外的所有断开原因都会重连
func ShouldReconnect(reason types.DisconnectReason) bool {
	return reason != types.DisconnectAuthFailure
}

// ============================================================================
//                              Feature
// ============================================================================

// Feature 自动重连特性
type Feature struct {
	feature.Base

	cfg Config

	mu   sync.Mutex
	snap Snapshot
	done chan struct{}
	loop *loopHandle
}

type loopHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}
}

var (
	_ interfaces.Feature            = (*Feature)(nil)
	_ interfaces.ConnectionObserver = (*Feature)(nil)
)

// New 创建重连特性
func New(cfg Config) *Feature {
	cfg = cfg.withDefaults()
	return &Feature{
		cfg:  cfg,
		snap: Snapshot{State: types.ReconnectStopped, Delay: cfg.InitialDelay},
		done: make(chan struct{}),
	}
}

// NewFactory 返回挂载到客户端控制器的工厂
func NewFactory(cfg Config) feature.Factory {
	return feature.Factory{
		Key: Key,
		New: func() interfaces.Feature { return New(cfg) },
	}
}

// From 从宿主的特性集合中取出重连特性
func From(l interfaces.FeatureLookup) (*Feature, bool) {
	return feature.Get[*Feature](l, Key)
}

// Key 实现 interfaces.Feature
func (f *Feature) Key() string {
	return Key
}

// Install 宿主必须实现 interfaces.Connector
func (f *Feature) Install(owner interfaces.Owner, sink interfaces.EventSink) error {
	if _, ok := owner.(interfaces.Connector); !ok {
		return ErrNotConnector
	}
	return f.Base.Install(owner, sink)
}

// Disable 停止循环并等待其退出
func (f *Feature) Disable() error {
	if err := f.Base.Disable(); err != nil {
		return err
	}
	f.stopAndWait()
	return nil
}

// Snapshot 返回状态快照
func (f *Feature) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Done 放弃重连时关闭
func (f *Feature) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// GaveUp 是否已放弃重连
func (f *Feature) GaveUp() bool {
	return f.Snapshot().GaveUp
}

// Running 循环是否在运行
func (f *Feature) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loop != nil
}

// ============================================================================
//                              连接事件
// ============================================================================

// OnConnected 连接恢复：停止并重置
func (f *Feature) OnConnected() {
	f.Stop()
}

// OnDisconnected 按断开原因决定是否开始重连
func (f *Feature) OnDisconnected(reason types.DisconnectReason) {
	if !f.Enabled() {
		return
	}
	if !ShouldReconnect(reason) {
		logger.Info("认证失败断开，不重连")
		return
	}
	f.Start()
}

// ============================================================================
//                              启停
// ============================================================================

// Start 从 Reconnecting 开始重连循环，已在运行时为空操作
func (f *Feature) Start() {
	if h := f.begin(); h != nil {
		go f.run(h)
	}
}

// begin 重置状态并登记新的循环句柄
func (f *Feature) begin() *loopHandle {
	f.mu.Lock()
	if f.loop != nil {
		f.mu.Unlock()
		return nil
	}
	from := f.snap.State
	f.snap = Snapshot{
		State: types.ReconnectReconnecting,
		Delay: f.cfg.InitialDelay,
	}
	select {
	case <-f.done:
		f.done = make(chan struct{})
	default:
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{ctx: ctx, cancel: cancel, exited: make(chan struct{})}
	f.loop = h
	f.mu.Unlock()

	logger.Info("开始重连", "delay", f.cfg.InitialDelay)
	f.emitChange(from, types.ReconnectReconnecting, 0, f.cfg.InitialDelay)
	return h
}

// Stop 停止循环并重置状态（含放弃标记），不等待循环退出
func (f *Feature) Stop() {
	f.stop()
}

func (f *Feature) stop() *loopHandle {
	f.mu.Lock()
	h := f.loop
	f.loop = nil
	from := f.snap.State
	f.snap = Snapshot{State: types.ReconnectStopped, Delay: f.cfg.InitialDelay}
	f.mu.Unlock()

	if h != nil {
		h.cancel()
	}
	if from != types.ReconnectStopped {
		f.emitChange(from, types.ReconnectStopped, 0, f.cfg.InitialDelay)
	}
	return h
}

func (f *Feature) stopAndWait() {
	if h := f.stop(); h != nil {
		<-h.exited
	}
}

// ============================================================================
//                              循环
// ============================================================================

func (f *Feature) run(h *loopHandle) {
	defer close(h.exited)
	for {
		f.mu.Lock()
		delay := f.snap.Delay
		f.mu.Unlock()

		timer := f.cfg.Clock.Timer(delay)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !f.tick(h) {
			return
		}
	}
}

// tick 推进一次状态机，返回循环是否继续
func (f *Feature) tick(h *loopHandle) bool {
	f.mu.Lock()
	if f.loop != h {
		f.mu.Unlock()
		return false
	}
	now := f.cfg.Clock.Now()

	switch f.snap.State {
	case types.ReconnectReconnecting, types.ReconnectCooldown:
		if !f.snap.LastTry.IsZero() && now.Sub(f.snap.LastTry) < f.cfg.RetryInterval {
			f.mu.Unlock()
			return true
		}
		f.snap.Attempts++
		f.snap.LastTry = now
		attempt := f.snap.Attempts
		f.mu.Unlock()

		err := f.connect(h.ctx, attempt)

		f.mu.Lock()
		if f.loop != h {
			// OnConnected 已经停止并重置
			f.mu.Unlock()
			return false
		}
		if err == nil {
			f.mu.Unlock()
			f.Stop()
			return false
		}
		from := f.snap.State
		if f.snap.Attempts >= f.cfg.MaxAttempts {
			f.snap.State = types.ReconnectCooldownFailure
			f.snap.NextTry = now.Add(f.cfg.CooldownPeriod)
			f.snap.Attempts = 0
		} else {
			f.snap.State = types.ReconnectCooldown
		}
		to, attempts, delay := f.snap.State, f.snap.Attempts, f.snap.Delay
		f.mu.Unlock()

		if from != to {
			f.emitChange(from, to, attempts, delay)
		}
		return true

	case types.ReconnectCooldownFailure:
		if now.Before(f.snap.NextTry) {
			f.mu.Unlock()
			return true
		}
		f.snap.Delay += f.cfg.DelayStep
		delay := f.snap.Delay
		if delay >= f.cfg.MaxDelay {
			f.snap.State = types.ReconnectStopped
			f.snap.GaveUp = true
			f.loop = nil
			close(f.done)
			f.mu.Unlock()

			logger.Warn("重连退避达到上限，放弃重连", "delay", delay)
			f.emitChange(types.ReconnectCooldownFailure, types.ReconnectStopped, 0, delay)
			f.Emit(types.EvtReconnectGaveUp{Delay: delay, At: now})
			return false
		}
		f.snap.State = types.ReconnectReconnecting
		f.mu.Unlock()

		f.emitChange(types.ReconnectCooldownFailure, types.ReconnectReconnecting, 0, delay)
		return true

	default:
		f.mu.Unlock()
		return false
	}
}

func (f *Feature) connect(ctx context.Context, attempt int) error {
	conn, ok := f.Owner().(interfaces.Connector)
	if !ok {
		return ErrNotConnector
	}
	logger.Debug("尝试重连", "attempt", attempt)
	if err := conn.Connect(ctx); err != nil {
		logger.Debug("重连失败", "attempt", attempt, "error", err)
		return err
	}
	logger.Info("重连成功", "attempt", attempt)
	return nil
}

func (f *Feature) emitChange(from, to types.ReconnectState, attempts int, delay time.Duration) {
	f.Emit(types.EvtReconnectStateChanged{From: from, To: to, Attempts: attempts, Delay: delay})
}
