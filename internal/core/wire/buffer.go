package wire

import (
	"fmt"
	"time"

	"github.com/multiformats/go-varint"
)

// Serializable 具备原生二进制编码能力的对象
//
// UnmarshalWire 在解码时作用于注册表构造的新实例，必须消费完整个编码体。
type Serializable interface {
	MarshalWire(w *Writer) error
	UnmarshalWire(r *Reader) error
}

// ============================================================================
//                              Writer
// ============================================================================

// Writer 原生编码写入器
type Writer struct {
	buf   []byte
	codec *Codec
	depth int
}

// Bytes 已写入的数据
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteUvarint 写入无符号变长整数
func (w *Writer) WriteUvarint(v uint64) {
	var tmp [varint.MaxLenUvarint63]byte
	n := varint.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// WriteVarint 写入有符号变长整数（zigzag）
func (w *Writer) WriteVarint(v int64) {
	w.WriteUvarint(uint64(v<<1) ^ uint64(v>>63))
}

// WriteByte 写入单字节
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// WriteBool 写入布尔值
func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// WriteBytes 写入长度前缀的字节串
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString 写入长度前缀的字符串
func (w *Writer) WriteString(s string) {
	w.WriteUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteTime 写入时间（零值单独标记）
func (w *Writer) WriteTime(t time.Time) {
	if t.IsZero() {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	w.WriteVarint(t.UnixNano())
}

// WriteObject 写入带类型标识的嵌套对象，nil 写为空标识
func (w *Writer) WriteObject(obj any) error {
	if obj == nil {
		w.WriteString("")
		return nil
	}
	if w.codec == nil {
		return fmt.Errorf("wire: nested object without codec")
	}
	return w.codec.appendObject(w, obj)
}

// ============================================================================
//                              Reader
// ============================================================================

// Reader 原生编码读取器
type Reader struct {
	data  []byte
	off   int
	codec *Codec
	depth int
}

// Remaining 剩余未读字节数
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// ReadUvarint 读取无符号变长整数
func (r *Reader) ReadUvarint() (uint64, error) {
	v, n, err := varint.FromUvarint(r.data[r.off:])
	if err != nil {
		if err == varint.ErrUnderflow {
			return 0, ErrTruncated
		}
		return 0, fmt.Errorf("wire: varint: %w", err)
	}
	r.off += n
	return v, nil
}

// ReadVarint 读取有符号变长整数（zigzag）
func (r *Reader) ReadVarint() (int64, error) {
	u, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

// ReadByte 读取单字节
func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// ReadBool 读取布尔值
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("wire: invalid bool %d", b)
	}
}

// ReadBytes 读取长度前缀的字节串，返回的切片引用底层缓冲区
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, ErrTruncated
	}
	b := r.data[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

// ReadString 读取长度前缀的字符串
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadTime 读取时间
func (r *Reader) ReadTime() (time.Time, error) {
	set, err := r.ReadBool()
	if err != nil || !set {
		return time.Time{}, err
	}
	ns, err := r.ReadVarint()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, ns), nil
}

// ReadObject 读取带类型标识的嵌套对象
func (r *Reader) ReadObject() (any, error) {
	if r.codec == nil {
		return nil, fmt.Errorf("wire: nested object without codec")
	}
	return r.codec.readObject(r)
}
