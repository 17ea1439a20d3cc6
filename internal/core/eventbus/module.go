package eventbus

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Bus  *Bus
	Sink interfaces.EventSink
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 Bus 实例
func ProvideEventBus() Result {
	bus := NewBus()
	return Result{Bus: bus, Sink: bus}
}

// registerLifecycle 停止时关闭总线，释放所有订阅者
func registerLifecycle(lc fx.Lifecycle, bus *Bus) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return bus.Close()
		},
	})
}
