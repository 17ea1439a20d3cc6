package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/pkg/types"
)

func TestBus_RoutesByType(t *testing.T) {
	bus := NewBus()
	connected := Subscribe[types.EvtPeerConnected](bus, 4)
	gone := Subscribe[types.EvtPeerDisconnected](bus, 4)
	defer connected.Close()
	defer gone.Close()

	bus.Emit(types.EvtPeerConnected{PeerID: "p1"})
	bus.Emit(types.EvtPeerDisconnected{PeerID: "p1", Reason: types.DisconnectTimeout})
	bus.Emit("ignored")

	select {
	case evt := <-connected.Out():
		assert.Equal(t, "p1", evt.PeerID)
	case <-time.After(time.Second):
		t.Fatal("no connected event")
	}
	select {
	case evt := <-gone.Out():
		assert.Equal(t, types.DisconnectTimeout, evt.Reason)
	case <-time.After(time.Second):
		t.Fatal("no disconnected event")
	}
	assert.Empty(t, connected.Out())
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := Subscribe[types.EvtUnhandledMessage](bus, 1)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		bus.Emit(types.EvtUnhandledMessage{TypeName: "x"})
	}
	assert.Len(t, sub.Out(), 1)
}

func TestBus_KeepLast(t *testing.T) {
	bus := NewBus()
	KeepLast[types.EvtReconnectGaveUp](bus)
	bus.Emit(types.EvtReconnectGaveUp{Delay: time.Minute})

	sub := Subscribe[types.EvtReconnectGaveUp](bus, 1)
	defer sub.Close()
	evt := <-sub.Out()
	assert.Equal(t, time.Minute, evt.Delay)
}

func TestBus_CloseSubscription(t *testing.T) {
	bus := NewBus()
	sub := Subscribe[types.EvtPeerConnected](bus, 1)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, bus.Types())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	bus.Emit(types.EvtPeerConnected{})
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	sub := Subscribe[types.EvtPeerConnected](bus, 1)
	require.NoError(t, bus.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	late := Subscribe[types.EvtPeerConnected](bus, 1)
	_, ok = <-late.Out()
	assert.False(t, ok)
	bus.Emit(types.EvtPeerConnected{})
	require.NoError(t, late.Close())
}
