package wire

import (
	"fmt"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// 编码方式
const (
	kindNative byte = iota
	kindProto
	kindFallback
)

// DefaultMaxObjects 单个数据包允许的最大对象数
const DefaultMaxObjects = 4096

// DefaultMaxDepth 嵌套对象允许的最大层数
const DefaultMaxDepth = 32

// Codec DataPack 编解码器
type Codec struct {
	registry   *Registry
	fallback   interfaces.FallbackCodec
	maxObjects int
	maxDepth   int
}

// Option 编解码器选项
type Option func(*Codec)

// WithFallback 替换回退编解码器
func WithFallback(fc interfaces.FallbackCodec) Option {
	return func(c *Codec) {
		if fc != nil {
			c.fallback = fc
		}
	}
}

// WithMaxObjects 设置单包最大对象数
func WithMaxObjects(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxObjects = n
		}
	}
}

// WithMaxDepth 设置嵌套对象最大层数，顶层条目为第 0 层
func WithMaxDepth(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// NewCodec 创建编解码器
func NewCodec(reg *Registry, opts ...Option) *Codec {
	if reg == nil {
		reg = NewRegistry()
	}
	c := &Codec{
		registry:   reg,
		fallback:   JSONCodec{},
		maxObjects: DefaultMaxObjects,
		maxDepth:   DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry 返回类型注册表
func (c *Codec) Registry() *Registry {
	return c.registry
}

// ============================================================================
//                              编码
// ============================================================================

// Encode 编码数据包，nil 或空包编码为零个对象
func (c *Codec) Encode(p *Pack) ([]byte, error) {
	w := &Writer{codec: c}
	n := p.Len()
	if n > c.maxObjects {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyObjects, n, c.maxObjects)
	}
	w.WriteUvarint(uint64(n))
	for i := 0; i < n; i++ {
		if err := c.appendObject(w, p.objs[i]); err != nil {
			return nil, fmt.Errorf("wire: encode entry %d: %w", i, err)
		}
	}
	return w.buf, nil
}

func (c *Codec) appendObject(w *Writer, obj any) error {
	if w.depth > c.maxDepth {
		return fmt.Errorf("%w: %d > %d", ErrTooDeep, w.depth, c.maxDepth)
	}

	var (
		name string
		kind byte
		body []byte
		err  error
	)

	switch v := obj.(type) {
	case Serializable:
		if name, err = c.registry.NameOf(obj); err != nil {
			return err
		}
		w.WriteString(name)
		w.buf = append(w.buf, kindNative)
		return c.appendNative(w, name, v)
	case proto.Message:
		name = string(proto.MessageName(v))
		kind = kindProto
		if body, err = proto.Marshal(v); err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
	default:
		if name, err = c.registry.NameOf(obj); err != nil {
			return err
		}
		kind = kindFallback
		if body, err = c.fallback.Encode(obj); err != nil {
			return fmt.Errorf("fallback encode %s: %w", name, err)
		}
	}

	w.WriteString(name)
	w.buf = append(w.buf, kind)
	w.WriteBytes(body)
	return nil
}

// appendNative 把原生编码体直接写入 w，先占一字节长度前缀，写完后按实际长度回填
func (c *Codec) appendNative(w *Writer, name string, v Serializable) error {
	mark := len(w.buf)
	w.buf = append(w.buf, 0)

	w.depth++
	err := v.MarshalWire(w)
	w.depth--
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	n := len(w.buf) - mark - 1
	var prefix [varint.MaxLenUvarint63]byte
	size := varint.PutUvarint(prefix[:], uint64(n))
	if size > 1 {
		w.buf = append(w.buf, prefix[1:size]...)
		copy(w.buf[mark+size:], w.buf[mark+1:mark+1+n])
	}
	copy(w.buf[mark:], prefix[:size])
	return nil
}

// ============================================================================
//                              解码
// ============================================================================

// Decode 解码数据包
//
// 任何条目失败都返回 *DecodeError，不返回部分结果。
func (c *Codec) Decode(data []byte) (*Pack, error) {
	p := &Pack{}
	if len(data) == 0 {
		return p, nil
	}

	r := &Reader{data: data, codec: c}
	count, err := r.ReadUvarint()
	if err != nil {
		return nil, &DecodeError{Index: -1, Err: err}
	}
	// 每个条目至少占 3 字节（空标识、编码方式、空编码体）
	if count > uint64(c.maxObjects) || count*3 > uint64(r.Remaining()) {
		return nil, &DecodeError{Index: -1, Err: fmt.Errorf("%w: count %d", ErrTooManyObjects, count)}
	}

	p.objs = make([]any, 0, count)
	for i := 0; i < int(count); i++ {
		obj, err := c.readObject(r)
		if err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		if obj == nil {
			return nil, &DecodeError{Index: i, Err: &TypeResolutionError{}}
		}
		p.objs = append(p.objs, obj)
	}
	if r.Remaining() != 0 {
		return nil, &DecodeError{Index: int(count), Err: ErrTrailingData}
	}
	return p, nil
}

func (c *Codec) readObject(r *Reader) (any, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}
	if r.depth > c.maxDepth {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooDeep, r.depth, c.maxDepth)
	}
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	body, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}

	switch kind {
	case kindNative:
		obj, ok := c.registry.New(name)
		if !ok {
			return nil, &TypeResolutionError{Name: name}
		}
		s, ok := obj.(Serializable)
		if !ok {
			return nil, fmt.Errorf("wire: %s has no native decoder", name)
		}
		inner := &Reader{data: body, codec: c, depth: r.depth + 1}
		if err := s.UnmarshalWire(inner); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		if inner.Remaining() != 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrTrailingData)
		}
		return obj, nil

	case kindProto:
		msg, err := c.newProto(name)
		if err != nil {
			return nil, err
		}
		if err := proto.Unmarshal(body, msg); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		return msg, nil

	case kindFallback:
		obj, ok := c.registry.New(name)
		if !ok {
			return nil, &TypeResolutionError{Name: name}
		}
		if err := c.fallback.Decode(body, obj); err != nil {
			return nil, fmt.Errorf("fallback decode %s: %w", name, err)
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

// newProto 构造 protobuf 消息，注册表优先，其次为全局 protobuf 类型表
func (c *Codec) newProto(name string) (proto.Message, error) {
	if obj, ok := c.registry.New(name); ok {
		if msg, ok := obj.(proto.Message); ok {
			return msg, nil
		}
	}
	mt, err := protoregistry.GlobalTypes.FindMessageByName(protoreflect.FullName(name))
	if err != nil {
		return nil, &TypeResolutionError{Name: name}
	}
	return mt.New().Interface(), nil
}
