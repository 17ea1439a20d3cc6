package wire

import (
	"encoding/json"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// JSONCodec 默认的 JSON 回退编解码器
type JSONCodec struct{}

var _ interfaces.FallbackCodec = JSONCodec{}

// Encode 实现 FallbackCodec
func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode 实现 FallbackCodec
func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
