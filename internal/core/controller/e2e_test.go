package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/internal/core/transport/tcp"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
	"github.com/dep2p/go-peerctl/internal/feature/reqresp"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              TCP 回环
// ============================================================================

func startLoopbackServer(t *testing.T) *Controller {
	t.Helper()
	codec := testCodec(t)
	ks := auth.NewMemoryKeyStore("s3cret")
	srv, err := NewServer(
		Config{Endpoint: "127.0.0.1:0", RequiresAuth: true, Capabilities: map[string]any{"name": "srv"}},
		tcp.NewServer(tcp.Config{}),
		WithCodec(codec),
		WithPeerFeatures(
			reqresp.NewFactory(reqresp.Config{}),
			auth.NewFactory(auth.Config{KeyStore: ks}),
		),
		WithPeerInit(func(p *Peer) error {
			rr, _ := reqresp.From(p.Features())
			return reqresp.Handle(rr, func(_ *reqresp.Exchange, n *note) (any, error) {
				return &note{Text: "echo:" + n.Text}, nil
			})
		}),
	)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	})
	return srv
}

func dialLoopback(t *testing.T, srv *Controller, key string, bus *eventbus.Bus) *Controller {
	t.Helper()
	cli, err := NewClient(
		Config{Endpoint: srv.Addr(), RequiresAuth: true, PresharedKey: key, Capabilities: map[string]any{"name": "cli"}},
		tcp.NewClient(tcp.Config{}),
		WithCodec(testCodec(t)),
		WithEventSink(bus),
		WithFeatures(
			reqresp.NewFactory(reqresp.Config{}),
			auth.NewFactory(auth.Config{}),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func TestLoopback_AuthenticatedRequest(t *testing.T) {
	srv := startLoopbackServer(t)
	bus := eventbus.NewBus()
	defer bus.Close()
	cli := dialLoopback(t, srv, "s3cret", bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cli.Connect(ctx))

	af, ok := auth.From(cli.Features())
	require.True(t, ok)
	require.NoError(t, af.Wait(ctx))

	require.Equal(t, 1, srv.PeerCount())
	peer := srv.Peers()[0]
	assert.True(t, peer.Authorized())
	assert.Eventually(t, func() bool {
		specs := peer.Specs()
		return specs != nil && specs.GetFields()["name"].GetStringValue() == "cli"
	}, 2*time.Second, 10*time.Millisecond)

	rr, ok := reqresp.From(cli.Features())
	require.True(t, ok)
	resp, err := rr.Call(ctx, &note{Text: "ping"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	n, ok := resp.Payload.(*note)
	require.True(t, ok)
	assert.Equal(t, "echo:ping", n.Text)
}

func TestLoopback_WrongKeyIsRejected(t *testing.T) {
	srv := startLoopbackServer(t)
	bus := eventbus.NewBus()
	defer bus.Close()
	gone := eventbus.Subscribe[types.EvtClientDisconnected](bus, 1)
	defer gone.Close()
	cli := dialLoopback(t, srv, "wrong", bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cli.Connect(ctx))

	af, _ := auth.From(cli.Features())
	err := af.Wait(ctx)
	var failure *auth.Failure
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.Equal(t, types.AuthFailureUnknownKey, failure.Reason)
	assert.ErrorIs(t, err, types.ErrAuthentication)

	select {
	case evt := <-gone.Out():
		assert.Equal(t, types.DisconnectAuthFailure, evt.Reason)
	case <-ctx.Done():
		t.Fatal("client was not disconnected")
	}
	assert.Eventually(t, func() bool { return srv.PeerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
