package controller

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-peerctl/pkg/types"
)

var (
	// ErrClosed 客户端控制器已关闭，不能再次连接
	ErrClosed = fmt.Errorf("%w: controller closed", types.ErrInvalidOperation)

	// ErrNoTransport 构造时未提供传输
	ErrNoTransport = errors.New("controller: transport is required")

	// ErrInvalidCapabilities 能力描述无法表示为 structpb.Struct
	ErrInvalidCapabilities = errors.New("controller: invalid capabilities")
)
