package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
	Bus    *eventbus.Bus  `optional:"true"`
}

// Result Metrics 输出
type Result struct {
	fx.Out

	Reporter Reporter
	Metrics  *Metrics
}

// Module 返回 metrics 的 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 按配置创建指标，未启用时提供 Nop
func Provide(p Params) Result {
	cfg := config.DefaultMetricsConfig()
	if p.Config != nil {
		cfg = p.Config.Metrics
	}
	if !cfg.Enabled {
		return Result{Reporter: Nop{}}
	}
	m := New(cfg.Namespace)
	return Result{Reporter: m, Metrics: m}
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Config  *config.Config `optional:"true"`
	Metrics *Metrics       `optional:"true"`
	Bus     *eventbus.Bus  `optional:"true"`
}

func registerLifecycle(in lifecycleInput) {
	if in.Metrics == nil {
		return
	}
	if in.Bus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		in.LC.Append(fx.Hook{
			OnStart: func(context.Context) error {
				in.Metrics.Observe(ctx, in.Bus)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}
	if in.Config != nil && in.Config.Metrics.Listen != "" {
		srv := NewServer(in.Config.Metrics.Listen, in.Metrics)
		in.LC.Append(fx.Hook{
			OnStart: srv.Start,
			OnStop:  srv.Stop,
		})
	}
}
