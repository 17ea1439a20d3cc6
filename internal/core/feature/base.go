package feature

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// Base 特性生命周期状态机，供具体特性嵌入
//
// 具体特性覆盖 Install/Enable/Disable/Uninstall 时先调用 Base 的同名方法。
// Enable 与 Disable 可以重复调用；Uninstall 要求先 Disable。
type Base struct {
	mu    sync.RWMutex
	state interfaces.FeatureState
	owner interfaces.Owner
	sink  interfaces.EventSink
}

// Install 绑定宿主：Uninstalled → Disabled
func (b *Base) Install(owner interfaces.Owner, sink interfaces.EventSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != interfaces.FeatureUninstalled {
		return fmt.Errorf("%w: install from %s", ErrInvalidState, b.state)
	}
	if sink == nil {
		sink = interfaces.NopSink{}
	}
	b.owner, b.sink = owner, sink
	b.state = interfaces.FeatureDisabled
	return nil
}

// Enable Disabled → Enabled，已启用时为空操作
func (b *Base) Enable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case interfaces.FeatureEnabled:
		return nil
	case interfaces.FeatureDisabled:
		b.state = interfaces.FeatureEnabled
		return nil
	default:
		return fmt.Errorf("%w: enable from %s", ErrInvalidState, b.state)
	}
}

// Disable Enabled → Disabled，已停用时为空操作
func (b *Base) Disable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case interfaces.FeatureDisabled:
		return nil
	case interfaces.FeatureEnabled:
		b.state = interfaces.FeatureDisabled
		return nil
	default:
		return fmt.Errorf("%w: disable from %s", ErrInvalidState, b.state)
	}
}

// Uninstall Disabled → Uninstalled
func (b *Base) Uninstall() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != interfaces.FeatureDisabled {
		return fmt.Errorf("%w: uninstall from %s", ErrInvalidState, b.state)
	}
	b.state = interfaces.FeatureUninstalled
	return nil
}

// State 当前状态
func (b *Base) State() interfaces.FeatureState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Enabled 是否已启用
func (b *Base) Enabled() bool {
	return b.State() == interfaces.FeatureEnabled
}

// Owner 宿主，未安装时为 nil
func (b *Base) Owner() interfaces.Owner {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.owner
}

// Emit 向事件接收器发送事件，未安装时丢弃
func (b *Base) Emit(evt any) {
	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()
	if sink != nil {
		sink.Emit(evt)
	}
}
