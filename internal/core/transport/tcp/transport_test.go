package tcp

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type clientRecorder struct {
	connected    chan struct{}
	data         chan []byte
	disconnected chan types.DisconnectReason
}

func newClientRecorder() *clientRecorder {
	return &clientRecorder{
		connected:    make(chan struct{}, 4),
		data:         make(chan []byte, 64),
		disconnected: make(chan types.DisconnectReason, 4),
	}
}

func (r *clientRecorder) OnConnected()                                 { r.connected <- struct{}{} }
func (r *clientRecorder) OnDisconnected(reason types.DisconnectReason) { r.disconnected <- reason }
func (r *clientRecorder) OnBytesReceived(data []byte)                  { r.data <- data }

type serverConn struct {
	id   uint64
	data []byte
}

type serverRecorder struct {
	mu           sync.Mutex
	remotes      map[uint64]string
	connected    chan uint64
	data         chan serverConn
	disconnected chan types.DisconnectReason
}

func newServerRecorder() *serverRecorder {
	return &serverRecorder{
		remotes:      make(map[uint64]string),
		connected:    make(chan uint64, 4),
		data:         make(chan serverConn, 64),
		disconnected: make(chan types.DisconnectReason, 4),
	}
}

func (r *serverRecorder) OnConnected(id uint64, remote string) {
	r.mu.Lock()
	r.remotes[id] = remote
	r.mu.Unlock()
	r.connected <- id
}

func (r *serverRecorder) OnDisconnected(_ uint64, reason types.DisconnectReason) {
	r.disconnected <- reason
}

func (r *serverRecorder) OnBytesReceived(id uint64, data []byte) {
	r.data <- serverConn{id: id, data: data}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for transport callback")
	}
	var zero T
	return zero
}

func startPair(t *testing.T, cfg Config) (*Server, *serverRecorder, *Client, *clientRecorder, uint64) {
	t.Helper()

	srv := NewServer(cfg)
	sr := newServerRecorder()
	srv.SetHandler(sr)
	require.NoError(t, srv.Listen(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() { _ = srv.Close() })

	cli := NewClient(cfg)
	cr := newClientRecorder()
	cli.SetHandler(cr)
	require.NoError(t, cli.Connect(context.Background(), srv.Addr()))
	t.Cleanup(func() { _ = cli.Close() })

	recv(t, cr.connected)
	id := recv(t, sr.connected)
	return srv, sr, cli, cr, id
}

// ============================================================================
//                              测试用例
// ============================================================================

func TestFrameRoundTrip(t *testing.T) {
	srv, sr, cli, cr, id := startPair(t, DefaultConfig())

	require.NoError(t, cli.Send([]byte("hello")))
	got := recv(t, sr.data)
	assert.Equal(t, id, got.id)
	assert.Equal(t, []byte("hello"), got.data)

	require.NoError(t, srv.Send(id, []byte{}))
	assert.Empty(t, recv(t, cr.data))

	big := make([]byte, 200_000)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, srv.Send(id, big))
	assert.Equal(t, big, recv(t, cr.data))
}

func TestFramesKeepOrder(t *testing.T) {
	_, sr, cli, _, _ := startPair(t, DefaultConfig())

	for i := 0; i < 50; i++ {
		require.NoError(t, cli.Send([]byte{byte(i)}))
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, []byte{byte(i)}, recv(t, sr.data).data)
	}
}

func TestDisconnectReasonReachesClient(t *testing.T) {
	srv, sr, _, cr, id := startPair(t, DefaultConfig())

	require.NoError(t, srv.Disconnect(id, types.DisconnectAuthFailure))
	assert.Equal(t, types.DisconnectAuthFailure, recv(t, cr.disconnected))
	assert.Equal(t, types.DisconnectAuthFailure, recv(t, sr.disconnected))

	assert.ErrorIs(t, srv.Send(id, []byte("x")), ErrUnknownConn)
}

func TestDisconnectReasonReachesServer(t *testing.T) {
	_, sr, cli, cr, _ := startPair(t, DefaultConfig())

	require.NoError(t, cli.Disconnect(types.DisconnectNormal))
	assert.Equal(t, types.DisconnectNormal, recv(t, sr.disconnected))
	assert.Equal(t, types.DisconnectNormal, recv(t, cr.disconnected))
}

func TestServerCloseNotifiesShutdown(t *testing.T) {
	srv, sr, _, cr, _ := startPair(t, DefaultConfig())

	require.NoError(t, srv.Close())
	assert.Equal(t, types.DisconnectShutdown, recv(t, cr.disconnected))
	assert.Equal(t, types.DisconnectShutdown, recv(t, sr.disconnected))
	assert.Empty(t, srv.Addr())
}

func TestServerListensAgainAfterClose(t *testing.T) {
	srv, sr, _, cr, _ := startPair(t, DefaultConfig())
	require.NoError(t, srv.Close())
	recv(t, cr.disconnected)
	recv(t, sr.disconnected)

	require.NoError(t, srv.Listen(context.Background(), "127.0.0.1:0"))
	assert.ErrorIs(t, srv.Listen(context.Background(), "127.0.0.1:0"), ErrAlreadyListening)

	cli := NewClient(DefaultConfig())
	cr2 := newClientRecorder()
	cli.SetHandler(cr2)
	require.NoError(t, cli.Connect(context.Background(), srv.Addr()))
	t.Cleanup(func() { _ = cli.Close() })
	recv(t, cr2.connected)
	id := recv(t, sr.connected)

	require.NoError(t, cli.Send([]byte("again")))
	got := recv(t, sr.data)
	assert.Equal(t, id, got.id)
	assert.Equal(t, []byte("again"), got.data)
}

func TestClientNotConnected(t *testing.T) {
	cli := NewClient(DefaultConfig())
	assert.ErrorIs(t, cli.Send([]byte("x")), ErrNotConnected)
	assert.ErrorIs(t, cli.Send([]byte("x")), types.ErrTransport)
	assert.ErrorIs(t, cli.Disconnect(types.DisconnectNormal), ErrNotConnected)
	assert.NoError(t, cli.Close())
}

func TestClientDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cli := NewClient(Config{DialTimeout: time.Second})
	err = cli.Connect(context.Background(), addr)
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestClientAlreadyConnected(t *testing.T) {
	srv, _, cli, _, _ := startPair(t, DefaultConfig())
	assert.ErrorIs(t, cli.Connect(context.Background(), srv.Addr()), ErrAlreadyConnected)
}

func TestFrameTooLarge(t *testing.T) {
	_, _, cli, _, _ := startPair(t, Config{MaxFrameSize: 16})
	assert.ErrorIs(t, cli.Send(make([]byte, 17)), ErrFrameTooLarge)
}

func TestOversizedInboundFrameDropsConnection(t *testing.T) {
	srv := NewServer(Config{MaxFrameSize: 8})
	sr := newServerRecorder()
	srv.SetHandler(sr)
	require.NoError(t, srv.Listen(context.Background(), "127.0.0.1:0"))
	defer srv.Close()

	nc, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer nc.Close()
	recv(t, sr.connected)

	_, err = nc.Write(encodeFrame(frameData, make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, types.DisconnectRemoved, recv(t, sr.disconnected))
}

func TestIdleTimeout(t *testing.T) {
	srv := NewServer(Config{IdleTimeout: 50 * time.Millisecond})
	sr := newServerRecorder()
	srv.SetHandler(sr)
	require.NoError(t, srv.Listen(context.Background(), "127.0.0.1:0"))
	defer srv.Close()

	nc, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer nc.Close()
	recv(t, sr.connected)

	assert.Equal(t, types.DisconnectTimeout, recv(t, sr.disconnected))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, types.DisconnectRemoved, classify(ErrMalformedFrame))
	assert.Equal(t, types.DisconnectTimeout, classify(&net.OpError{Op: "read", Err: timeoutErr{}}))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
