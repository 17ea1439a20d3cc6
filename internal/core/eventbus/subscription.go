package eventbus

import (
	"reflect"
	"sync"
)

// DefaultBuffer 默认订阅缓冲区大小
const DefaultBuffer = 16

// Subscription 类型化的事件订阅
type Subscription[T any] struct {
	bus  *Bus
	typ  reflect.Type
	out  chan T
	once sync.Once
	mu   sync.Mutex
	done bool
}

// Subscribe 订阅类型为 T 的事件
//
// buffer <= 0 时使用 DefaultBuffer。总线已关闭时返回的订阅通道立即关闭。
func Subscribe[T any](b *Bus, buffer int) *Subscription[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription[T]{
		bus: b,
		typ: reflect.TypeFor[T](),
		out: make(chan T, buffer),
	}
	if b.closed.Load() {
		sub.closeOut()
		return sub
	}

	b.withNode(sub.typ, func(n *node) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			sub.deliver(n.last)
		}
	})
	return sub
}

// Out 事件通道
func (s *Subscription[T]) Out() <-chan T {
	return s.out
}

// Close 取消订阅并关闭通道
func (s *Subscription[T]) Close() error {
	s.bus.remove(s.typ, s)
	s.closeOut()
	return nil
}

func (s *Subscription[T]) deliver(evt any) bool {
	v, ok := evt.(T)
	if !ok {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return true
	}
	select {
	case s.out <- v:
		return true
	default:
		return false
	}
}

func (s *Subscription[T]) closeOut() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		close(s.out)
		s.mu.Unlock()
	})
}
