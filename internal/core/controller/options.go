package controller

import (
	"errors"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/internal/core/metrics"
	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// Option 控制器构造选项
type Option func(*Controller) error

// WithCodec 设置线上编解码器，调用方负责登记所需类型
func WithCodec(codec *wire.Codec) Option {
	return func(c *Controller) error {
		if codec == nil {
			return errors.New("controller: nil codec")
		}
		c.codec = codec
		return nil
	}
}

// WithEventSink 设置事件接收器，特性共享同一接收器
func WithEventSink(sink interfaces.EventSink) Option {
	return func(c *Controller) error {
		if sink != nil {
			c.sink = sink
		}
		return nil
	}
}

// WithReporter 设置指标记录器
func WithReporter(r metrics.Reporter) Option {
	return func(c *Controller) error {
		if r != nil {
			c.metrics = r
		}
		return nil
	}
}

// WithIDGenerator 设置 Peer 与控制器标识生成器
func WithIDGenerator(ids types.IDGenerator) Option {
	return func(c *Controller) error {
		if ids == nil {
			return errors.New("controller: nil id generator")
		}
		c.ids = ids
		return nil
	}
}

// WithClock 设置事件时间戳使用的时间源
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) error {
		if clk != nil {
			c.clock = clk
		}
		return nil
	}
}

// WithFeatures 构造时挂载到控制器的特性，按顺序挂载
func WithFeatures(factories ...feature.Factory) Option {
	return func(c *Controller) error {
		c.factories = append(c.factories, factories...)
		return nil
	}
}

// WithPeerFeatures 服务端为每个新 Peer 挂载的特性，按顺序挂载
func WithPeerFeatures(factories ...feature.Factory) Option {
	return func(c *Controller) error {
		c.peerFactories = append(c.peerFactories, factories...)
		return nil
	}
}

// WithPeerInit 新 Peer 挂载特性之后、通知连接之前调用，用于注册请求处理器等
func WithPeerInit(fn func(p *Peer) error) Option {
	return func(c *Controller) error {
		if fn != nil {
			c.peerInits = append(c.peerInits, fn)
		}
		return nil
	}
}
