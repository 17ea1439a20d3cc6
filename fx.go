package peerctl

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/controller"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/internal/core/metrics"
	"github.com/dep2p/go-peerctl/internal/core/transport"
	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
)

var fxLogger = log.Logger("peerctl/fx")

// buildApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置注入
//  2. EventBus → Metrics → Transport → 密钥库
//  3. Controller（按角色构造，生命周期上连接或监听）
//  4. 用户扩展与 Node 组件注入
func buildApp(o *options, n *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	codec, err := buildCodec(o)
	if err != nil {
		return nil, err
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础组件
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(o.config),
		eventbus.Module(),
		metrics.Module(),
		transport.Module(),
	}
	if o.keyStore != nil {
		ks := o.keyStore
		modules = append(modules, fx.Provide(func() interfaces.KeyStore { return ks }))
	} else {
		modules = append(modules, auth.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 控制器
	// ════════════════════════════════════════════════════════════════════════
	ctrlOpts := append([]controller.Option{controller.WithCodec(codec)}, o.controllerOptions...)
	if o.config.Controller.Role == config.RoleServer && len(o.handlers) > 0 {
		ctrlOpts = append(ctrlOpts, controller.WithPeerInit(func(p *controller.Peer) error {
			rr, ok := reqresp.From(p.Features())
			if !ok {
				return nil
			}
			return installHandlers(rr, o.handlers)
		}))
	}
	modules = append(modules,
		fx.Provide(fx.Annotate(
			func() []controller.Option { return ctrlOpts },
			fx.ResultTags(`group:"`+controller.OptionGroup+`,flatten"`),
		)),
		controller.Module(),
	)
	if o.config.Controller.Role == config.RoleClient && len(o.handlers) > 0 {
		modules = append(modules, fx.Invoke(func(c *controller.Controller) error {
			rr, ok := reqresp.From(c.Features())
			if !ok {
				return fmt.Errorf("peerctl: handlers need the reqresp feature")
			}
			return installHandlers(rr, o.handlers)
		}))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展与组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.fxOptions...)
	modules = append(modules, fx.Invoke(injectNodeComponents(n)))
	modules = append(modules, fx.WithLogger(fxEventLogger(o.fxDebug)))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// buildCodec 默认类型、Echo 与用户登记的类型
func buildCodec(o *options) (*wire.Codec, error) {
	reg, err := controller.NewRegistry()
	if err != nil {
		return nil, err
	}
	if err := wire.Register[Echo](reg, EchoName); err != nil {
		return nil, err
	}
	for _, fn := range o.registrations {
		if err := fn(reg); err != nil {
			return nil, fmt.Errorf("register type: %w", err)
		}
	}
	return wire.NewCodec(reg), nil
}

func installHandlers(rr *reqresp.Feature, handlers []func(*reqresp.Feature) error) error {
	for _, h := range handlers {
		if err := h(rr); err != nil {
			return err
		}
	}
	return nil
}

// fxEventLogger 默认静默，调试时输出开发格式
func fxEventLogger(debug bool) func() fxevent.Logger {
	return func() fxevent.Logger {
		if !debug {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		zl, err := zap.NewDevelopment()
		if err != nil {
			fxLogger.Warn("创建 Fx 调试日志失败", "error", err)
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: zl}
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Controller *controller.Controller
	Bus        *eventbus.Bus
	Metrics    *metrics.Metrics    `optional:"true"`
	KeyStore   interfaces.KeyStore `optional:"true"`
}

func injectNodeComponents(n *Node) func(nodeInjectParams) {
	return func(p nodeInjectParams) {
		n.ctrl = p.Controller
		n.bus = p.Bus
		n.metrics = p.Metrics
		n.keys = p.KeyStore
	}
}
