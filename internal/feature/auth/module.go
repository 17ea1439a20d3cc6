package auth

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// ModuleInput 密钥库依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 提供服务端密钥库
func Module() fx.Option {
	return fx.Module("auth",
		fx.Provide(ProvideKeyStore),
	)
}

// ProvideKeyStore 配置了文件路径时打开文件密钥库，否则使用空的内存密钥库
func ProvideKeyStore(in ModuleInput) (interfaces.KeyStore, error) {
	cfg := config.DefaultAuthConfig()
	if in.Config != nil {
		cfg = in.Config.Auth
	}
	if cfg.KeyStorePath == "" {
		return NewMemoryKeyStore(), nil
	}
	ks, err := OpenFileKeyStore(cfg.KeyStorePath)
	if err != nil {
		return nil, fmt.Errorf("auth: open key store: %w", err)
	}
	logger.Info("已加载密钥库", "path", cfg.KeyStorePath, "keys", len(ks.Records()))
	return ks, nil
}
