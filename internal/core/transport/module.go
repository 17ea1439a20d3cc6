package transport

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/transport/tcp"
	"github.com/dep2p/go-peerctl/internal/core/transport/ws"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// Factory 按配置创建传输实例
type Factory struct {
	cfg config.TransportConfig
}

// NewFactory 创建传输工厂，配置非法时返回错误
func NewFactory(cfg config.TransportConfig) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return &Factory{cfg: cfg}, nil
}

// Kind 返回传输类型
func (f *Factory) Kind() string {
	return f.cfg.Kind
}

// Client 创建客户端传输
func (f *Factory) Client() interfaces.ClientTransport {
	logger.Debug("创建客户端传输", "kind", f.cfg.Kind)
	if f.cfg.Kind == config.TransportWebSocket {
		return ws.NewClient(f.wsConfig())
	}
	return tcp.NewClient(f.tcpConfig())
}

// Server 创建服务端传输
func (f *Factory) Server() interfaces.ServerTransport {
	logger.Debug("创建服务端传输", "kind", f.cfg.Kind)
	if f.cfg.Kind == config.TransportWebSocket {
		return ws.NewServer(f.wsConfig())
	}
	return tcp.NewServer(f.tcpConfig())
}

func (f *Factory) tcpConfig() tcp.Config {
	return tcp.Config{
		DialTimeout:  f.cfg.DialTimeout.Duration(),
		IdleTimeout:  f.cfg.IdleTimeout.Duration(),
		MaxFrameSize: f.cfg.MaxFrameSize,
	}
}

func (f *Factory) wsConfig() ws.Config {
	return ws.Config{
		DialTimeout:  f.cfg.DialTimeout.Duration(),
		IdleTimeout:  f.cfg.IdleTimeout.Duration(),
		MaxFrameSize: f.cfg.MaxFrameSize,
		Path:         f.cfg.WSPath,
	}
}

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 传输模块依赖
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回传输 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideFactory),
	)
}

// ProvideFactory 从统一配置创建工厂
func ProvideFactory(p Params) (*Factory, error) {
	cfg := config.DefaultTransportConfig()
	if p.Config != nil {
		cfg = p.Config.Transport
	}
	return NewFactory(cfg)
}
