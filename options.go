package peerctl

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/controller"
	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// Option 节点配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// config 统一配置，选项直接修改它
	config *config.Config

	// registrations 额外的线上类型登记
	registrations []func(*wire.Registry) error

	// handlers 请求处理器，客户端挂到控制器，服务端挂到每个 Peer
	handlers []func(*reqresp.Feature) error

	// keyStore 调用方提供的密钥库，替代按配置打开的密钥库
	keyStore interfaces.KeyStore

	// 扩展
	controllerOptions []controller.Option
	fxOptions         []fx.Option
	fxDebug           bool
}

func newOptions() *options {
	return &options{config: config.Default()}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 以完整配置为基础，之后的选项在其上覆盖
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("nil config")
		}
		cp := *cfg
		o.config = &cp
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              控制器
// ════════════════════════════════════════════════════════════════════════════

// WithEndpoint 客户端目标地址或服务端监听地址
func WithEndpoint(addr string) Option {
	return func(o *options) error {
		if addr == "" {
			return errors.New("empty endpoint")
		}
		o.config.Controller.Endpoint = addr
		return nil
	}
}

// WithCapabilities 本端能力描述，值须为 JSON 兼容类型
func WithCapabilities(caps map[string]any) Option {
	return func(o *options) error {
		o.config.Controller.Capabilities = caps
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              认证
// ════════════════════════════════════════════════════════════════════════════

// WithPresharedKey 客户端预共享密钥，同时开启认证
func WithPresharedKey(key string) Option {
	return func(o *options) error {
		if key == "" {
			return errors.New("empty preshared key")
		}
		o.config.Auth.Key = key
		o.config.Auth.Required = true
		return nil
	}
}

// WithAuthRequired 是否要求认证
func WithAuthRequired(required bool) Option {
	return func(o *options) error {
		o.config.Auth.Required = required
		return nil
	}
}

// WithKeyStoreFile 服务端使用 JSON 文件密钥库，同时开启认证
func WithKeyStoreFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return errors.New("empty key store path")
		}
		o.config.Auth.KeyStorePath = path
		o.config.Auth.Required = true
		return nil
	}
}

// WithKeyStore 服务端使用调用方提供的密钥库，同时开启认证
func WithKeyStore(ks interfaces.KeyStore) Option {
	return func(o *options) error {
		if ks == nil {
			return errors.New("nil key store")
		}
		o.keyStore = ks
		o.config.Auth.Required = true
		return nil
	}
}

// WithAuthTimeout 挑战发出后等待应答的时间
func WithAuthTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("invalid auth timeout %s", d)
		}
		o.config.Auth.Timeout = config.Duration(d)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              重连与传输
// ════════════════════════════════════════════════════════════════════════════

// WithReconnect 是否启用客户端自动重连
func WithReconnect(enabled bool) Option {
	return func(o *options) error {
		o.config.Reconnect.Enabled = enabled
		return nil
	}
}

// WithReconnectConfig 替换重连参数，缺省字段在校验时补全
func WithReconnectConfig(cfg config.ReconnectConfig) Option {
	return func(o *options) error {
		o.config.Reconnect = cfg
		return nil
	}
}

// WithTransport 传输类型: config.TransportTCP 或 config.TransportWebSocket
func WithTransport(kind string) Option {
	return func(o *options) error {
		switch kind {
		case config.TransportTCP, config.TransportWebSocket:
			o.config.Transport.Kind = kind
			return nil
		default:
			return fmt.Errorf("unknown transport %q", kind)
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              指标与日志
// ════════════════════════════════════════════════════════════════════════════

// WithMetrics 是否收集 Prometheus 指标
func WithMetrics(enabled bool) Option {
	return func(o *options) error {
		o.config.Metrics.Enabled = enabled
		return nil
	}
}

// WithMetricsListen 在指定地址暴露 /metrics，同时开启指标
func WithMetricsListen(addr string) Option {
	return func(o *options) error {
		o.config.Metrics.Enabled = true
		o.config.Metrics.Listen = addr
		return nil
	}
}

// WithFxDebug 输出 Fx 依赖注入日志
func WithFxDebug(enabled bool) Option {
	return func(o *options) error {
		o.fxDebug = enabled
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              消息与扩展
// ════════════════════════════════════════════════════════════════════════════

// WithType 登记一个线上负载类型，请求、应答与普通消息都需先登记
//
// T 为结构体类型本身，线上传输其指针。
func WithType[T any](name string) Option {
	return func(o *options) error {
		o.registrations = append(o.registrations, func(reg *wire.Registry) error {
			return wire.Register[T](reg, name)
		})
		return nil
	}
}

// WithHandler 注册 *P 类型请求的处理器，返回值作为成功应答负载，错误作为失败应答
//
// 同一类型重复注册时后者替换前者。
func WithHandler[P any](fn func(p *P) (any, error)) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("nil handler")
		}
		o.handlers = append(o.handlers, func(rr *reqresp.Feature) error {
			return reqresp.Handle(rr, func(_ *reqresp.Exchange, p *P) (any, error) {
				return fn(p)
			})
		})
		return nil
	}
}

// WithControllerOptions 追加控制器构造选项
func WithControllerOptions(opts ...controller.Option) Option {
	return func(o *options) error {
		o.controllerOptions = append(o.controllerOptions, opts...)
		return nil
	}
}

// WithFxOptions 追加 Fx 选项，用于注入自定义组件
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
