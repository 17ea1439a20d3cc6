package controller

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
)

// SpecsQueryName 能力查询的线上类型标识
const SpecsQueryName = "peerctl.SpecsQuery"

// SpecsQuery 查询对端能力描述，应答载荷为 *structpb.Struct
type SpecsQuery struct{}

func (*SpecsQuery) MarshalWire(*wire.Writer) error   { return nil }
func (*SpecsQuery) UnmarshalWire(*wire.Reader) error { return nil }

// RegisterTypes 登记控制器及内置特性使用的全部线上类型
func RegisterTypes(reg *wire.Registry) error {
	if err := reqresp.RegisterTypes(reg); err != nil {
		return err
	}
	if err := auth.RegisterTypes(reg); err != nil {
		return err
	}
	return wire.Register[SpecsQuery](reg, SpecsQueryName)
}

// NewRegistry 创建已登记内置类型的注册表
func NewRegistry() (*wire.Registry, error) {
	reg := wire.NewRegistry()
	if err := RegisterTypes(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewSpecs 把能力描述转换为 structpb.Struct
func NewSpecs(caps map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(caps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCapabilities, err)
	}
	return s, nil
}
