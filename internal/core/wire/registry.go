package wire

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Named 自带类型标识的对象
type Named interface {
	WireName() string
}

// Registry 类型标识与构造函数的映射
//
// 解码时按类型标识构造新实例，编码时按对象的动态类型反查标识。
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func() any
	names map[reflect.Type]string
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[string]func() any),
		names: make(map[reflect.Type]string),
	}
}

// Register 以 name 注册类型 T，解码时构造 *T
//
// 同一类型以同一标识重复注册是幂等的。
func Register[T any](r *Registry, name string) error {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		return fmt.Errorf("wire: register %s: use the element type", typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.names[typ]; ok {
		if existing == name {
			return nil
		}
		return fmt.Errorf("%w: %s already registered as %q", ErrDuplicateType, typ, existing)
	}
	if _, ok := r.ctors[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}
	r.ctors[name] = func() any { return new(T) }
	r.names[typ] = name
	return nil
}

// MustRegister 同 Register，失败时 panic，用于包初始化
func MustRegister[T any](r *Registry, name string) {
	if err := Register[T](r, name); err != nil {
		panic(err)
	}
}

// NameOf 返回对象的类型标识
func (r *Registry) NameOf(obj any) (string, error) {
	if n, ok := obj.(Named); ok {
		return n.WireName(), nil
	}
	typ := reflect.TypeOf(obj)
	if typ == nil {
		return "", fmt.Errorf("%w: nil", ErrUnregisteredType)
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	r.mu.RLock()
	name, ok := r.names[typ]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregisteredType, typ)
	}
	return name, nil
}

// New 按类型标识构造新实例
func (r *Registry) New(name string) (any, bool) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Names 已注册的类型标识（有序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
