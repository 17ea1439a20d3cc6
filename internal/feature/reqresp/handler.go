package reqresp

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// handlerFunc 类型擦除后的处理器，注册时已绑定载荷类型
type handlerFunc func(ex *Exchange, payload any)

type handlerEntry struct {
	replace handlerFunc
	adds    []handlerFunc
}

// handlerTable 按载荷元素类型索引处理器
type handlerTable struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*handlerEntry
}

func (t *handlerTable) setReplace(typ reflect.Type, h handlerFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(typ)
	if len(e.adds) > 0 {
		return fmt.Errorf("%w: %s", ErrHandlerConflict, typ)
	}
	e.replace = h
	return nil
}

func (t *handlerTable) add(typ reflect.Type, h handlerFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(typ)
	if e.replace != nil {
		return fmt.Errorf("%w: %s", ErrHandlerConflict, typ)
	}
	e.adds = append(e.adds, h)
	return nil
}

func (t *handlerTable) entry(typ reflect.Type) *handlerEntry {
	if t.byType == nil {
		t.byType = make(map[reflect.Type]*handlerEntry)
	}
	e, ok := t.byType[typ]
	if !ok {
		e = &handlerEntry{}
		t.byType[typ] = e
	}
	return e
}

// lookup 返回载荷类型对应的处理器快照
func (t *handlerTable) lookup(payload any) []handlerFunc {
	typ := payloadType(payload)
	if typ == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byType[typ]
	if !ok {
		return nil
	}
	if e.replace != nil {
		return []handlerFunc{e.replace}
	}
	out := make([]handlerFunc, len(e.adds))
	copy(out, e.adds)
	return out
}

func (t *handlerTable) remove(typ reflect.Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byType, typ)
}

// payloadType 指针载荷按元素类型索引
func payloadType(v any) reflect.Type {
	typ := reflect.TypeOf(v)
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}

func asPointer[P any](v any) (*P, bool) {
	switch p := v.(type) {
	case *P:
		return p, true
	case P:
		return &p, true
	default:
		return nil, false
	}
}

// ============================================================================
//                              注册
// ============================================================================

// Handle 注册替换式自动响应处理器
//
// 返回 nil 错误时以返回值作为成功响应，否则以 *Failure 作为失败响应。
func Handle[P any](f *Feature, fn func(ex *Exchange, p *P) (any, error)) error {
	return f.handlers.setReplace(reflect.TypeFor[P](), autoHandler(fn))
}

// HandleVoid 注册替换式 void 处理器
func HandleVoid[P any](f *Feature, fn func(ex *Exchange, p *P)) error {
	return f.handlers.setReplace(reflect.TypeFor[P](), voidHandler(fn))
}

// AddHandler 追加自动响应处理器
func AddHandler[P any](f *Feature, fn func(ex *Exchange, p *P) (any, error)) error {
	return f.handlers.add(reflect.TypeFor[P](), autoHandler(fn))
}

// AddVoidHandler 追加 void 处理器
func AddVoidHandler[P any](f *Feature, fn func(ex *Exchange, p *P)) error {
	return f.handlers.add(reflect.TypeFor[P](), voidHandler(fn))
}

// RemoveHandlers 移除载荷类型 P 的全部处理器
func RemoveHandlers[P any](f *Feature) {
	f.handlers.remove(reflect.TypeFor[P]())
}

func autoHandler[P any](fn func(ex *Exchange, p *P) (any, error)) handlerFunc {
	return func(ex *Exchange, payload any) {
		p, ok := asPointer[P](payload)
		if !ok {
			return
		}
		out, err := fn(ex, p)
		if err != nil {
			err = ex.RespondFail(&Failure{Message: err.Error()})
		} else {
			err = ex.RespondSuccess(out)
		}
		if errors.Is(err, ErrAlreadyResponded) {
			logger.Debug("重复的自动响应已忽略", "request", ex.Request().ID)
		} else if err != nil {
			logger.Warn("发送响应失败", "request", ex.Request().ID, "error", err)
		}
	}
}

func voidHandler[P any](fn func(ex *Exchange, p *P)) handlerFunc {
	return func(ex *Exchange, payload any) {
		if p, ok := asPointer[P](payload); ok {
			fn(ex, p)
		}
	}
}
