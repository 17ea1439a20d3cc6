package interfaces

// FallbackCodec 回退编解码器
//
// 仅用于没有原生二进制编码的载荷类型。
type FallbackCodec interface {
	// Encode 编码对象
	Encode(v any) ([]byte, error)

	// Decode 解码到 v 指向的新实例
	Decode(data []byte, v any) error
}
