package peerctl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

func init() {
	log.Discard()
}

type greeting struct {
	Name string `json:"name"`
}

func startServer(t *testing.T, opts ...Option) *Node {
	t.Helper()
	base := []Option{
		WithEndpoint("127.0.0.1:0"),
		WithKeyStore(auth.NewMemoryKeyStore("s3cret")),
		WithHandler(EchoHandler),
	}
	srv, err := NewServer(append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, srv.Close()) })
	return srv
}

func startClient(t *testing.T, srv *Node, opts ...Option) *Node {
	t.Helper()
	base := []Option{
		WithEndpoint(srv.Addr()),
		WithPresharedKey("s3cret"),
		WithReconnect(false),
		WithMetrics(false),
	}
	cli, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, cli.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, cli.Close()) })
	return cli
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ════════════════════════════════════════════════════════════════════════════
//                              端到端
// ════════════════════════════════════════════════════════════════════════════

func TestNode_EchoRoundTrip(t *testing.T) {
	for _, kind := range []string{config.TransportTCP, config.TransportWebSocket} {
		t.Run(kind, func(t *testing.T) {
			srv := startServer(t, WithTransport(kind))
			cli := startClient(t, srv, WithTransport(kind))
			ctx := testContext(t)

			require.True(t, cli.Connected())
			require.NoError(t, cli.WaitAuthenticated(ctx))

			out, err := cli.Request(ctx, &Echo{Seq: 7, Text: "hello"})
			require.NoError(t, err)
			echo, ok := out.(*Echo)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, uint64(7), echo.Seq)
			assert.Equal(t, "hello", echo.Text)

			peers := srv.Peers()
			require.Len(t, peers, 1)
			assert.True(t, peers[0].Authorized)
			assert.NotEmpty(t, peers[0].RemoteAddr)
			assert.NotNil(t, srv.Metrics())
			assert.Nil(t, cli.Metrics())
		})
	}
}

func TestNode_HandlerErrorBecomesRemoteFailure(t *testing.T) {
	srv := startServer(t, WithHandler(func(*Echo) (any, error) {
		return nil, errors.New("busy")
	}))
	cli := startClient(t, srv)
	ctx := testContext(t)
	require.NoError(t, cli.WaitAuthenticated(ctx))

	_, err := cli.Request(ctx, &Echo{Text: "x"})
	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.Contains(t, err.Error(), "busy")
}

func TestNode_CustomTypes(t *testing.T) {
	srv := startServer(t,
		WithType[greeting]("test.Greeting"),
		WithHandler(func(g *greeting) (any, error) {
			return &greeting{Name: "hello " + g.Name}, nil
		}),
	)
	cli := startClient(t, srv, WithType[greeting]("test.Greeting"))
	ctx := testContext(t)
	require.NoError(t, cli.WaitAuthenticated(ctx))

	out, err := cli.Request(ctx, &greeting{Name: "ada"})
	require.NoError(t, err)
	assert.Equal(t, &greeting{Name: "hello ada"}, out)
}

func TestNode_ServerRequestsPeer(t *testing.T) {
	srv := startServer(t)
	cli := startClient(t, srv, WithHandler(EchoHandler))
	ctx := testContext(t)
	require.NoError(t, cli.WaitAuthenticated(ctx))

	peers := srv.Peers()
	require.Len(t, peers, 1)
	out, err := srv.RequestPeer(ctx, peers[0].ID, &Echo{Text: "down"})
	require.NoError(t, err)
	assert.Equal(t, "down", out.(*Echo).Text)

	_, err = srv.RequestPeer(ctx, "nope", &Echo{})
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestNode_WrongKey(t *testing.T) {
	srv := startServer(t)
	cli, err := NewClient(
		WithEndpoint(srv.Addr()),
		WithPresharedKey("wrong"),
		WithReconnect(false),
	)
	require.NoError(t, err)
	gone := eventbus.Subscribe[types.EvtClientDisconnected](cli.Events(), 1)
	defer gone.Close()
	require.NoError(t, cli.Start(context.Background()))
	defer cli.Close()

	ctx := testContext(t)
	err = cli.WaitAuthenticated(ctx)
	var failure *AuthFailure
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.Equal(t, types.AuthFailureUnknownKey, failure.Reason)

	select {
	case evt := <-gone.Out():
		assert.Equal(t, types.DisconnectAuthFailure, evt.Reason)
	case <-ctx.Done():
		t.Fatal("client not disconnected")
	}
	assert.False(t, cli.Connected())
}

func TestNode_KickPeer(t *testing.T) {
	srv := startServer(t)
	cli := startClient(t, srv)
	ctx := testContext(t)
	require.NoError(t, cli.WaitAuthenticated(ctx))

	gone := eventbus.Subscribe[types.EvtClientDisconnected](cli.Events(), 1)
	defer gone.Close()
	require.NoError(t, srv.Kick(srv.Peers()[0].ID))

	select {
	case evt := <-gone.Out():
		assert.Equal(t, types.DisconnectRemoved, evt.Reason)
	case <-ctx.Done():
		t.Fatal("kicked client not disconnected")
	}
	assert.Eventually(t, func() bool { return len(srv.Peers()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期与选项
// ════════════════════════════════════════════════════════════════════════════

func TestNode_Lifecycle(t *testing.T) {
	srv, err := NewServer(WithEndpoint("127.0.0.1:0"), WithMetrics(false))
	require.NoError(t, err)

	ctx := testContext(t)
	assert.ErrorIs(t, srv.Stop(ctx), ErrNotStarted)
	assert.NoError(t, srv.Close())

	require.NoError(t, srv.Start(ctx))
	assert.ErrorIs(t, srv.Start(ctx), ErrAlreadyStarted)
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	require.NoError(t, srv.Stop(ctx))
	assert.ErrorIs(t, srv.Stop(ctx), ErrNodeClosed)
	assert.ErrorIs(t, srv.Start(ctx), ErrNodeClosed)
	assert.NoError(t, srv.Close())
}

func TestNode_RoleGuards(t *testing.T) {
	srv, err := NewServer(WithEndpoint("127.0.0.1:0"), WithMetrics(false))
	require.NoError(t, err)
	cli, err := NewClient(WithEndpoint("127.0.0.1:1"), WithReconnect(false), WithMetrics(false))
	require.NoError(t, err)
	ctx := testContext(t)

	_, err = srv.Request(ctx, &Echo{})
	assert.ErrorIs(t, err, types.ErrClientOnly)
	assert.ErrorIs(t, srv.WaitAuthenticated(ctx), types.ErrClientOnly)
	assert.False(t, srv.Connected())

	_, err = cli.RequestPeer(ctx, "p", &Echo{})
	assert.ErrorIs(t, err, types.ErrServerOnly)
	assert.Nil(t, cli.Peers())
	assert.ErrorIs(t, cli.Send(&Echo{}), ErrNotConnected)
	assert.Equal(t, types.RoleServer, srv.Role())
	assert.Equal(t, types.RoleClient, cli.Role())
}

func TestNode_ClientDialFailure(t *testing.T) {
	cli, err := NewClient(WithEndpoint("127.0.0.1:1"), WithReconnect(false), WithMetrics(false))
	require.NoError(t, err)
	err = cli.Start(testContext(t))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestNode_OptionErrors(t *testing.T) {
	cases := map[string]Option{
		"empty endpoint":  WithEndpoint(""),
		"empty key":       WithPresharedKey(""),
		"unknown kind":    WithTransport("udp"),
		"nil config":      WithConfig(nil),
		"nil key store":   WithKeyStore(nil),
		"bad timeout":     WithAuthTimeout(0),
		"missing cfgfile": WithConfigFile("/nonexistent/peerctl.json"),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient(opt)
			assert.Error(t, err)
		})
	}
}

func TestNode_ConfigOptions(t *testing.T) {
	cli, err := NewClient(
		WithEndpoint("10.0.0.1:9"),
		WithPresharedKey("k"),
		WithTransport(config.TransportWebSocket),
		WithReconnect(false),
		WithMetrics(false),
		WithCapabilities(map[string]any{"name": "probe"}),
	)
	require.NoError(t, err)

	cfg := cli.Config()
	assert.Equal(t, config.RoleClient, cfg.Controller.Role)
	assert.Equal(t, "10.0.0.1:9", cfg.Controller.Endpoint)
	assert.True(t, cfg.Auth.Required)
	assert.Equal(t, config.TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, "probe", cli.Controller().Specs().GetFields()["name"].GetStringValue())
	assert.Equal(t, "10.0.0.1:9", cli.Addr())
}
