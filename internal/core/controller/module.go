package controller

import (
	"context"
	"errors"

	"go.uber.org/fx"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/internal/core/metrics"
	"github.com/dep2p/go-peerctl/internal/core/transport"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reconnect"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// OptionGroup 额外构造选项的 Fx 值组
const OptionGroup = "controller_options"

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 控制器模块依赖
type ModuleInput struct {
	fx.In

	Config    *config.Config `optional:"true"`
	Transport *transport.Factory

	Sink     interfaces.EventSink `optional:"true"`
	Reporter metrics.Reporter     `optional:"true"`
	KeyStore interfaces.KeyStore  `optional:"true"`

	// Options 由其他模块以 group:"controller_options" 追加
	Options []Option `group:"controller_options"`
}

// Module 返回控制器 Fx 模块
//
// 按 config.Controller.Role 构造客户端或服务端，并把连接或监听挂到生命周期上。
func Module() fx.Option {
	return fx.Module("controller",
		fx.Provide(ProvideController),
		fx.Invoke(registerLifecycle),
	)
}

// ClientFactories 按配置返回客户端默认特性：reqresp、auth，启用时追加 reconnect
func ClientFactories(cfg *config.Config) []feature.Factory {
	factories := []feature.Factory{
		reqresp.NewFactory(reqresp.ConfigFrom(cfg.Request)),
		auth.NewFactory(auth.ConfigFrom(cfg.Auth, nil)),
	}
	if cfg.Reconnect.Enabled {
		factories = append(factories, reconnect.NewFactory(reconnect.ConfigFrom(cfg.Reconnect)))
	}
	return factories
}

// PeerFactories 按配置返回每个 Peer 的默认特性：reqresp、auth
func PeerFactories(cfg *config.Config, ks interfaces.KeyStore) []feature.Factory {
	return []feature.Factory{
		reqresp.NewFactory(reqresp.ConfigFrom(cfg.Request)),
		auth.NewFactory(auth.ConfigFrom(cfg.Auth, ks)),
	}
}

// ProvideController 按角色构造控制器
func ProvideController(in ModuleInput) (*Controller, error) {
	cfg := in.Config
	if cfg == nil {
		cfg = config.Default()
	}

	opts := []Option{
		WithEventSink(in.Sink),
		WithReporter(in.Reporter),
	}
	if cfg.Controller.Role == config.RoleServer {
		opts = append(opts, WithPeerFeatures(PeerFactories(cfg, in.KeyStore)...))
		opts = append(opts, in.Options...)
		return NewServer(ConfigFrom(cfg), in.Transport.Server(), opts...)
	}
	opts = append(opts, WithFeatures(ClientFactories(cfg)...))
	opts = append(opts, in.Options...)
	return NewClient(ConfigFrom(cfg), in.Transport.Client(), opts...)
}

func registerLifecycle(lc fx.Lifecycle, c *Controller) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if c.Role() == types.RoleServer {
				return c.Start(ctx)
			}
			err := c.Connect(ctx)
			if err == nil {
				return nil
			}
			// 首次连接失败时交给重连特性，其余错误直接返回
			rc, ok := reconnect.From(c.Features())
			if !ok || !errors.Is(err, types.ErrTransport) {
				return err
			}
			logger.Warn("首次连接失败，开始重连", "endpoint", c.Endpoint(), "error", err)
			rc.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if c.Role() == types.RoleServer {
				return c.Stop(ctx)
			}
			return c.Close()
		},
	})
}
