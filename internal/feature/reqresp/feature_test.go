package reqresp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/internal/core/feature"
	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type ping struct {
	N int `json:"n"`
}

type pong struct {
	N int `json:"n"`
}

// pipeOwner 记录发出的对象，可选地经编解码后交给对端集合
type pipeOwner struct {
	id    string
	codec *wire.Codec
	set   *feature.Set

	mu     sync.Mutex
	sent   []any
	remote *feature.Set
	err    error
}

func (o *pipeOwner) ID() string                              { return o.id }
func (o *pipeOwner) Role() types.Role                        { return types.RoleClient }
func (o *pipeOwner) RequiresAuth() bool                      { return false }
func (o *pipeOwner) Disconnect(types.DisconnectReason) error { return nil }
func (o *pipeOwner) Features() interfaces.FeatureLookup      { return o.set }

func (o *pipeOwner) Send(objs ...any) error {
	o.mu.Lock()
	if o.err != nil {
		o.mu.Unlock()
		return o.err
	}
	remote := o.remote
	o.mu.Unlock()

	if o.codec != nil {
		data, err := o.codec.Encode(wire.NewPack(objs...))
		if err != nil {
			return err
		}
		p, err := o.codec.Decode(data)
		if err != nil {
			return err
		}
		objs = p.Objects()
	}

	o.mu.Lock()
	o.sent = append(o.sent, objs...)
	o.mu.Unlock()

	if remote != nil {
		for _, obj := range objs {
			remote.Dispatch(obj)
		}
	}
	return nil
}

func (o *pipeOwner) requests() []*Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*Request
	for _, obj := range o.sent {
		if r, ok := obj.(*Request); ok {
			out = append(out, r)
		}
	}
	return out
}

func newCodec(t *testing.T) *wire.Codec {
	t.Helper()
	reg := wire.NewRegistry()
	require.NoError(t, RegisterTypes(reg))
	require.NoError(t, wire.Register[ping](reg, "test.ping"))
	require.NoError(t, wire.Register[pong](reg, "test.pong"))
	return wire.NewCodec(reg)
}

func install(t *testing.T, o *pipeOwner, cfg Config) *Feature {
	t.Helper()
	o.set = feature.NewSet(o, nil)
	f, err := feature.Add(o.set, Key, func() *Feature { return New(cfg) })
	require.NoError(t, err)
	return f
}

// linked 两个通过编解码互联的宿主
func linked(t *testing.T) (*Feature, *pipeOwner, *Feature, *pipeOwner) {
	t.Helper()
	codec := newCodec(t)
	a := &pipeOwner{id: "a", codec: codec}
	b := &pipeOwner{id: "b", codec: codec}
	fa := install(t, a, Config{})
	fb := install(t, b, Config{})
	a.remote, b.remote = b.set, a.set
	return fa, a, fb, b
}

// ============================================================================
//                              关联
// ============================================================================

func TestConcurrentRequestsReverseOrder(t *testing.T) {
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{})

	const n = 100
	type hit struct {
		reqN, respN int
	}
	var (
		mu   sync.Mutex
		hits = make(map[string][]hit)
		wg   sync.WaitGroup
	)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			req := NewRequest(&ping{N: i})
			err := f.Send(req, func(resp *Response) {
				mu.Lock()
				hits[req.ID] = append(hits[req.ID], hit{reqN: i, respN: resp.Payload.(*pong).N})
				mu.Unlock()
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reqs := owner.requests()
	require.Len(t, reqs, n)
	assert.Equal(t, n, f.Pending())
	assert.Equal(t, uint64(n), f.Sent())

	ids := make(map[string]struct{}, n)
	for _, r := range reqs {
		ids[r.ID] = struct{}{}
	}
	assert.Len(t, ids, n, "correlation ids must be distinct")

	for i := n - 1; i >= 0; i-- {
		r := reqs[i]
		resp := &Response{RequestID: r.ID, Success: true, Payload: &pong{N: r.Payload.(*ping).N}}
		assert.True(t, f.Process(resp))
	}

	assert.Len(t, hits, n)
	for id, hs := range hits {
		require.Len(t, hs, 1, "callback for %s must run exactly once", id)
		assert.Equal(t, hs[0].reqN, hs[0].respN)
	}
	assert.Zero(t, f.Pending())
}

func TestUnknownAndDuplicateResponsesAreNotClaimed(t *testing.T) {
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{})

	calls := 0
	req, err := f.Request(&ping{}, func(*Response) { calls++ })
	require.NoError(t, err)

	assert.False(t, f.Process(&Response{RequestID: "nope", Success: true}))
	assert.True(t, f.Process(&Response{RequestID: req.ID, Success: true}))
	assert.False(t, f.Process(&Response{RequestID: req.ID, Success: true}))
	assert.Equal(t, 1, calls)
}

func TestSendNotConnected(t *testing.T) {
	owner := &pipeOwner{id: "client", err: types.ErrNotConnected}
	f := install(t, owner, Config{})

	err := f.Send(NewRequest(&ping{}), func(*Response) {})
	assert.ErrorIs(t, err, types.ErrInvalidOperation)
	assert.Zero(t, f.Pending())
	assert.Zero(t, f.Sent())
}

func TestSendRequiresEnabledFeature(t *testing.T) {
	f := New(Config{})
	assert.ErrorIs(t, f.Send(NewRequest(nil), nil), ErrNotInstalled)
	assert.ErrorIs(t, f.Send(nil, nil), ErrNilRequest)
}

func TestSendKeepsExplicitID(t *testing.T) {
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{IDs: types.SequenceIDs("req-")})

	req := &Request{ID: "fixed"}
	require.NoError(t, f.Send(req, nil))
	assert.Equal(t, "fixed", req.ID)

	auto, err := f.Request(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "req-1", auto.ID)

	err = f.Send(&Request{ID: "fixed"}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidOperation)
}

func TestTimestamps(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{Clock: mock})

	var got *Response
	req, err := f.Request(nil, func(r *Response) { got = r })
	require.NoError(t, err)
	assert.Equal(t, mock.Now(), req.SentAt)

	mock.Add(3 * time.Second)
	require.True(t, f.Process(&Response{RequestID: req.ID, Success: true}))
	assert.Equal(t, mock.Now(), got.ReceivedAt)
}

func TestUninstallDropsPending(t *testing.T) {
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{})

	called := false
	req, err := f.Request(nil, func(*Response) { called = true })
	require.NoError(t, err)

	require.NoError(t, owner.set.Remove(Key))
	assert.Zero(t, f.Pending())
	assert.False(t, f.Process(&Response{RequestID: req.ID, Success: true}))
	assert.False(t, called)
}

// ============================================================================
//                              处理器
// ============================================================================

func TestAutoHandlerOverWire(t *testing.T) {
	fa, _, fb, _ := linked(t)

	require.NoError(t, Handle(fb, func(ex *Exchange, p *ping) (any, error) {
		assert.Equal(t, "b", ex.Request().AcceptedBy())
		assert.Equal(t, "b", ex.Owner().ID())
		return &pong{N: p.N * 2}, nil
	}))

	resp, err := fa.Call(context.Background(), &ping{N: 21})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	assert.Equal(t, &pong{N: 42}, resp.Payload)
}

func TestAutoHandlerErrorBecomesFailure(t *testing.T) {
	fa, _, fb, _ := linked(t)

	require.NoError(t, Handle(fb, func(*Exchange, *ping) (any, error) {
		return nil, errors.New("boom")
	}))

	resp, err := fa.Call(context.Background(), &ping{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Err(), ErrRemoteFailure)
	assert.Contains(t, resp.Err().Error(), "boom")
}

func TestVoidHandlerResponds(t *testing.T) {
	fa, _, fb, _ := linked(t)

	require.NoError(t, HandleVoid(fb, func(ex *Exchange, p *ping) {
		require.NoError(t, ex.RespondFail(&pong{N: p.N}))
		assert.ErrorIs(t, ex.RespondSuccess(nil), ErrAlreadyResponded)
	}))

	resp, err := fa.Call(context.Background(), &ping{N: 7})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, &pong{N: 7}, resp.Payload)
}

func TestAddHandlersRunInOrder(t *testing.T) {
	owner := &pipeOwner{id: "server"}
	f := install(t, owner, Config{})

	var order []int
	require.NoError(t, AddVoidHandler(f, func(*Exchange, *ping) { order = append(order, 1) }))
	require.NoError(t, AddHandler(f, func(*Exchange, *ping) (any, error) {
		order = append(order, 2)
		return &pong{N: 1}, nil
	}))
	require.NoError(t, AddHandler(f, func(*Exchange, *ping) (any, error) {
		order = append(order, 3)
		return &pong{N: 2}, nil
	}))

	assert.True(t, f.Process(&Request{ID: "r1", Payload: &ping{}}))
	assert.Equal(t, []int{1, 2, 3}, order)

	var responses []*Response
	for _, obj := range owner.sent {
		if r, ok := obj.(*Response); ok {
			responses = append(responses, r)
		}
	}
	require.Len(t, responses, 1)
	assert.Equal(t, &pong{N: 1}, responses[0].Payload)
}

func TestHandlerConflict(t *testing.T) {
	f := New(Config{})

	require.NoError(t, Handle(f, func(*Exchange, *ping) (any, error) { return nil, nil }))
	assert.ErrorIs(t, AddHandler(f, func(*Exchange, *ping) (any, error) { return nil, nil }), ErrHandlerConflict)
	assert.ErrorIs(t, AddVoidHandler(f, func(*Exchange, *ping) {}), ErrHandlerConflict)

	require.NoError(t, AddVoidHandler(f, func(*Exchange, *pong) {}))
	assert.ErrorIs(t, HandleVoid(f, func(*Exchange, *pong) {}), ErrHandlerConflict)

	// 替换式可以重复替换
	require.NoError(t, HandleVoid(f, func(*Exchange, *ping) {}))

	RemoveHandlers[pong](f)
	assert.NoError(t, HandleVoid(f, func(*Exchange, *pong) {}))
}

func TestUnhandledRequestIsNotClaimed(t *testing.T) {
	owner := &pipeOwner{id: "server"}
	f := install(t, owner, Config{})

	req := &Request{ID: "r1", Payload: &ping{}}
	assert.False(t, f.Process(req))
	assert.Empty(t, req.AcceptedBy())
	assert.Empty(t, owner.sent)

	assert.False(t, f.Process(&Request{ID: "r2"}))
}

func TestValuePayloadMatchesPointerHandler(t *testing.T) {
	owner := &pipeOwner{id: "server"}
	f := install(t, owner, Config{})

	var got int
	require.NoError(t, HandleVoid(f, func(_ *Exchange, p *ping) { got = p.N }))
	assert.True(t, f.Process(&Request{ID: "r", Payload: ping{N: 5}}))
	assert.Equal(t, 5, got)
}

func TestCallContextCancel(t *testing.T) {
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Call(ctx, &ping{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.Pending())
}

func TestDisabledFeatureIgnoresTraffic(t *testing.T) {
	owner := &pipeOwner{id: "client"}
	f := install(t, owner, Config{})
	require.NoError(t, f.Disable())

	assert.False(t, f.Accepts(&Request{}))
	assert.False(t, f.Accepts(&ping{}))
	require.NoError(t, f.Enable())
	assert.True(t, f.Accepts(&Response{}))
}

// ============================================================================
//                              Request
// ============================================================================

func TestRequestAcceptDecline(t *testing.T) {
	r := NewRequest(nil)
	assert.ErrorIs(t, r.Decline(), ErrNotAccepted)

	assert.True(t, r.Accept("a"))
	assert.False(t, r.Accept("b"))
	assert.Equal(t, "a", r.AcceptedBy())

	require.NoError(t, r.Decline())
	assert.ErrorIs(t, r.Decline(), ErrNotAccepted)
	assert.True(t, r.Accept("b"))
	assert.Equal(t, "b", r.AcceptedBy())
}

func TestMessagesRoundTrip(t *testing.T) {
	codec := newCodec(t)
	sent := time.Unix(1_700_000_000, 123)

	req := &Request{ID: "id-1", SentAt: sent, Payload: &ping{N: 3}}
	resp := &Response{RequestID: "id-1", Success: false, SentAt: sent, Payload: &Failure{Message: "no"}}

	data, err := codec.Encode(wire.NewPack(req, resp))
	require.NoError(t, err)
	p, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	gotReq := p.Objects()[0].(*Request)
	assert.Equal(t, "id-1", gotReq.ID)
	assert.True(t, sent.Equal(gotReq.SentAt))
	assert.Equal(t, &ping{N: 3}, gotReq.Payload)
	assert.Empty(t, gotReq.AcceptedBy())

	gotResp := p.Objects()[1].(*Response)
	assert.Equal(t, "id-1", gotResp.RequestID)
	assert.False(t, gotResp.Success)
	assert.EqualError(t, gotResp.Err(), "reqresp: remote responded with failure: no")
	assert.True(t, gotResp.ReceivedAt.IsZero())
}
