package controller

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/internal/core/metrics"
	"github.com/dep2p/go-peerctl/internal/core/transport"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reconnect"
	"github.com/dep2p/go-peerctl/pkg/types"
)

func moduleApp(t *testing.T, cfg *config.Config, target **Controller) *fxtest.App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	return fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg),
		eventbus.Module(),
		metrics.Module(),
		transport.Module(),
		auth.Module(),
		Module(),
		fx.Populate(target),
	)
}

func TestModule_ServerAndClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	ks, err := auth.OpenFileKeyStore(path)
	require.NoError(t, err)
	_, err = ks.AddKey("s3cret", "module-test")
	require.NoError(t, err)

	srvCfg := config.Default()
	srvCfg.Controller.Role = config.RoleServer
	srvCfg.Controller.Endpoint = "127.0.0.1:0"
	srvCfg.Auth.Required = true
	srvCfg.Auth.KeyStorePath = path
	srvCfg.Metrics.Enabled = false

	var srv *Controller
	srvApp := moduleApp(t, srvCfg, &srv)
	srvApp.RequireStart()
	defer srvApp.RequireStop()

	require.True(t, srv.Started())
	assert.Equal(t, types.RoleServer, srv.Role())

	cliCfg := config.Default()
	cliCfg.Controller.Endpoint = srv.Addr()
	cliCfg.Auth.Required = true
	cliCfg.Auth.Key = "s3cret"
	cliCfg.Reconnect.Enabled = false

	var cli *Controller
	cliApp := moduleApp(t, cliCfg, &cli)
	cliApp.RequireStart()

	require.True(t, cli.Connected())
	af, ok := auth.From(cli.Features())
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, af.Wait(ctx))
	assert.Equal(t, 1, srv.PeerCount())

	cliApp.RequireStop()
	assert.False(t, cli.Connected())
	assert.Eventually(t, func() bool { return srv.PeerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestModule_ClientStartsReconnectWhenDialFails(t *testing.T) {
	cfg := config.Default()
	cfg.Controller.Endpoint = "127.0.0.1:1"
	cfg.Reconnect.Enabled = true
	cfg.Metrics.Enabled = false

	var cli *Controller
	app := moduleApp(t, cfg, &cli)
	app.RequireStart()

	rc, ok := reconnect.From(cli.Features())
	require.True(t, ok)
	assert.False(t, cli.Connected())
	assert.True(t, rc.Running())

	app.RequireStop()
	assert.False(t, rc.Running())
}
