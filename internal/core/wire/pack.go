package wire

import "reflect"

// Pack 一次传输写入所携带的一组对象
//
// Pack 保持插入顺序。同一指针重复加入只保留一次，
// 但值相等的不同实例都会保留。非指针值没有身份，从不合并。
type Pack struct {
	objs []any
	seen map[any]struct{}
}

// NewPack 创建包含给定对象的 Pack，nil 对象被忽略
func NewPack(objs ...any) *Pack {
	p := &Pack{}
	for _, obj := range objs {
		p.Add(obj)
	}
	return p
}

// Add 加入对象，返回是否实际加入
func (p *Pack) Add(obj any) bool {
	if obj == nil {
		return false
	}
	if reflect.TypeOf(obj).Kind() == reflect.Pointer {
		if reflect.ValueOf(obj).IsNil() {
			return false
		}
		if _, dup := p.seen[obj]; dup {
			return false
		}
		if p.seen == nil {
			p.seen = make(map[any]struct{})
		}
		p.seen[obj] = struct{}{}
	}
	p.objs = append(p.objs, obj)
	return true
}

// Len 对象数量
func (p *Pack) Len() int {
	if p == nil {
		return 0
	}
	return len(p.objs)
}

// Objects 返回对象列表的副本
func (p *Pack) Objects() []any {
	if p == nil {
		return nil
	}
	out := make([]any, len(p.objs))
	copy(out, p.objs)
	return out
}

// Reset 清空以便复用
func (p *Pack) Reset() {
	clear(p.objs)
	p.objs = p.objs[:0]
	clear(p.seen)
}
