package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

func TestModule(t *testing.T) {
	var (
		bus  *Bus
		sink interfaces.EventSink
	)
	app := fxtest.New(t, Module(), fx.Populate(&bus, &sink))
	app.RequireStart()

	assert.Same(t, bus, sink)
	sub := Subscribe[types.EvtClientConnected](bus, 1)
	sink.Emit(types.EvtClientConnected{Endpoint: "x"})
	assert.Equal(t, "x", (<-sub.Out()).Endpoint)

	app.RequireStop()
	_, ok := <-sub.Out()
	assert.False(t, ok)
}
