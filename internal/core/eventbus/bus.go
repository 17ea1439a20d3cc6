package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
// Bus 实现
// ============================================================================

// sink 类型擦除的订阅者
type sink interface {
	deliver(evt any) bool
	closeOut()
}

// Bus 事件总线
type Bus struct {
	mu     sync.RWMutex
	nodes  map[reflect.Type]*node
	closed atomic.Bool
}

// node 事件类型节点
type node struct {
	lk        sync.Mutex
	typ       reflect.Type
	sinks     []sink
	last      any
	keepLast  bool
	dropCount atomic.Int64
}

var _ interfaces.EventSink = (*Bus)(nil)

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// KeepLast 让指定事件类型保留最后一个事件，新订阅者立即收到它
func KeepLast[T any](b *Bus) {
	b.withNode(reflect.TypeFor[T](), func(n *node) {
		n.keepLast = true
	})
}

// Emit 发射事件，实现 interfaces.EventSink
func (b *Bus) Emit(evt any) {
	if evt == nil || b.closed.Load() {
		return
	}
	typ := reflect.TypeOf(evt)

	b.mu.RLock()
	n, ok := b.nodes[typ]
	b.mu.RUnlock()
	if !ok {
		return
	}
	n.emit(evt)
}

// Close 关闭总线并关闭所有订阅通道
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	nodes := b.nodes
	b.nodes = make(map[reflect.Type]*node)
	b.mu.Unlock()

	for _, n := range nodes {
		n.lk.Lock()
		for _, s := range n.sinks {
			s.closeOut()
		}
		n.sinks = nil
		n.lk.Unlock()
	}
	return nil
}

// Types 返回当前存在订阅或状态的事件类型数
func (b *Bus) Types() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// ============================================================================
// 内部方法
// ============================================================================

// withNode 在节点上执行操作，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) {
	b.mu.Lock()
	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}
	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
}

// remove 移除订阅者，节点空闲时删除
func (b *Bus) remove(typ reflect.Type, s sink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}
	n.lk.Lock()
	for i, cur := range n.sinks {
		if cur == s {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	idle := len(n.sinks) == 0 && !n.keepLast
	n.lk.Unlock()

	if idle {
		delete(b.nodes, typ)
	}
}

// emit 发射事件到所有订阅者
func (n *node) emit(evt any) {
	n.lk.Lock()
	defer n.lk.Unlock()

	if n.keepLast {
		n.last = evt
	}
	for _, s := range n.sinks {
		if s.deliver(evt) {
			continue
		}
		// 每丢弃 100 个事件警告一次，避免日志泛滥
		if dropped := n.dropCount.Add(1); dropped%100 == 1 {
			logger.Warn("慢消费者检测",
				"dropped", dropped,
				"type", n.typ,
				"reason", "subscriber buffer full")
		}
	}
}
