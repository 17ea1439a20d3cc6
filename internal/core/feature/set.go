package feature

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("core/feature")

// Factory 特性构造器，按标识注册
type Factory struct {
	Key string
	New func() interfaces.Feature
}

// Set 宿主的特性注册表
//
// 挂载与移除通过 opMu 串行化，保证同一标识的 Install 不会并发执行两次；
// 读取与分发只持有 mu 的读锁，特性回调在锁外执行。
type Set struct {
	owner interfaces.Owner
	sink  interfaces.EventSink

	opMu sync.Mutex

	mu      sync.RWMutex
	entries []interfaces.Feature
	index   map[string]interfaces.Feature
}

var _ interfaces.FeatureLookup = (*Set)(nil)

// NewSet 创建绑定到 owner 的特性集合
func NewSet(owner interfaces.Owner, sink interfaces.EventSink) *Set {
	if sink == nil {
		sink = interfaces.NopSink{}
	}
	return &Set{
		owner: owner,
		sink:  sink,
		index: make(map[string]interfaces.Feature),
	}
}

// ============================================================================
//                              挂载与移除
// ============================================================================

// Add 挂载特性并返回具体类型
//
// 标识已存在时返回已有实例，不会再次调用 Install。
func Add[T interfaces.Feature](s *Set, key string, newFn func() T) (T, error) {
	var zero T
	f, err := s.Attach(key, func() interfaces.Feature { return newFn() })
	if err != nil {
		return zero, err
	}
	t, ok := f.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T", ErrTypeMismatch, key, f)
	}
	return t, nil
}

// Attach 挂载特性：构造、Install、Enable
func (s *Set) Attach(key string, newFn func() interfaces.Feature) (interfaces.Feature, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if f, ok := s.Lookup(key); ok {
		return f, nil
	}

	f := newFn()
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrNilFeature, key)
	}
	if f.Key() != key {
		return nil, fmt.Errorf("%w: registered %q, built %q", ErrKeyMismatch, key, f.Key())
	}
	if err := f.Install(s.owner, s.sink); err != nil {
		return nil, fmt.Errorf("feature: install %q: %w", key, err)
	}
	if err := f.Enable(); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("feature: enable %q: %w", key, err),
			f.Uninstall(),
		)
	}

	s.mu.Lock()
	s.entries = append(s.entries, f)
	s.index[key] = f
	s.mu.Unlock()

	logger.Debug("特性已挂载", "owner", ownerID(s.owner), "feature", key)
	return f, nil
}

// AttachAll 依次挂载一组工厂
func (s *Set) AttachAll(factories []Factory) error {
	for _, fac := range factories {
		if _, err := s.Attach(fac.Key, fac.New); err != nil {
			return err
		}
	}
	return nil
}

// Remove 停用、卸载并移除特性，不存在时为空操作
func (s *Set) Remove(key string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	f, ok := s.index[key]
	if ok {
		delete(s.index, key)
		for i, e := range s.entries {
			if e == f {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return detach(f)
}

// Teardown 按挂载的逆序停用并卸载全部特性
func (s *Set) Teardown() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.index = make(map[string]interfaces.Feature)
	s.mu.Unlock()

	var err error
	for i := len(entries) - 1; i >= 0; i-- {
		err = multierr.Append(err, detach(entries[i]))
	}
	return err
}

func detach(f interfaces.Feature) error {
	if err := f.Disable(); err != nil {
		return fmt.Errorf("feature: disable %q: %w", f.Key(), err)
	}
	if err := f.Uninstall(); err != nil {
		return fmt.Errorf("feature: uninstall %q: %w", f.Key(), err)
	}
	return nil
}

// ============================================================================
//                              启用与停用
// ============================================================================

// EnableAll 启用全部特性
func (s *Set) EnableAll() error {
	var err error
	for _, f := range s.snapshot() {
		err = multierr.Append(err, f.Enable())
	}
	return err
}

// DisableAll 停用全部特性（逆序），不卸载
func (s *Set) DisableAll() error {
	entries := s.snapshot()
	var err error
	for i := len(entries) - 1; i >= 0; i-- {
		err = multierr.Append(err, entries[i].Disable())
	}
	return err
}

// ============================================================================
//                              查询
// ============================================================================

// Lookup 实现 FeatureLookup
func (s *Set) Lookup(key string) (interfaces.Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.index[key]
	return f, ok
}

// Get 按标识查找并断言具体类型
func Get[T any](l interfaces.FeatureLookup, key string) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	f, ok := l.Lookup(key)
	if !ok {
		return zero, false
	}
	t, ok := f.(T)
	return t, ok
}

// Find 返回第一个实现 T 的已挂载特性
func Find[T any](s *Set) (T, bool) {
	for _, f := range s.snapshot() {
		if t, ok := f.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// Keys 按挂载顺序返回特性标识
func (s *Set) Keys() []string {
	entries := s.snapshot()
	keys := make([]string, len(entries))
	for i, f := range entries {
		keys[i] = f.Key()
	}
	return keys
}

// Len 已挂载特性数量
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// DataTargets 按挂载顺序返回已启用的数据目标
func (s *Set) DataTargets() []interfaces.DataTarget {
	entries := s.snapshot()
	targets := make([]interfaces.DataTarget, 0, len(entries))
	for _, f := range entries {
		if f.State() != interfaces.FeatureEnabled {
			continue
		}
		if dt, ok := f.(interfaces.DataTarget); ok {
			targets = append(targets, dt)
		}
	}
	return targets
}

func (s *Set) snapshot() []interfaces.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]interfaces.Feature, len(s.entries))
	copy(out, s.entries)
	return out
}

// ============================================================================
//                              分发
// ============================================================================

// Dispatch 把对象交给第一个认领它的数据目标，返回是否被认领
func (s *Set) Dispatch(obj any) bool {
	for _, dt := range s.DataTargets() {
		if offer(dt, obj) {
			return true
		}
	}
	return false
}

// offer 单个目标的 panic 不影响后续分发
func offer(dt interfaces.DataTarget, obj any) (claimed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("数据目标处理 panic", "target", fmt.Sprintf("%T", dt), "object", fmt.Sprintf("%T", obj), "panic", r)
			claimed = false
		}
	}()
	return dt.Accepts(obj) && dt.Process(obj)
}

// NotifyConnected 通知关注连接事件的特性
func (s *Set) NotifyConnected() {
	for _, f := range s.snapshot() {
		if obs, ok := f.(interfaces.ConnectionObserver); ok && f.State() == interfaces.FeatureEnabled {
			obs.OnConnected()
		}
	}
}

// NotifyDisconnected 通知关注连接事件的特性，skip 中的特性不通知
func (s *Set) NotifyDisconnected(reason types.DisconnectReason, skip ...string) {
	for _, f := range s.snapshot() {
		if slices.Contains(skip, f.Key()) {
			continue
		}
		if obs, ok := f.(interfaces.ConnectionObserver); ok && f.State() == interfaces.FeatureEnabled {
			obs.OnDisconnected(reason)
		}
	}
}

func ownerID(o interfaces.Owner) string {
	if o == nil {
		return ""
	}
	return log.TruncateID(o.ID(), 8)
}
