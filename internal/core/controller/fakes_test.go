package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              内存客户端传输
// ============================================================================

// memClient 内存客户端传输，断开事件异步投递
type memClient struct {
	mu        sync.Mutex
	handler   interfaces.ClientHandler
	connected bool
	dialErr   error
	sent      [][]byte
	reasons   []types.DisconnectReason
	wg        sync.WaitGroup
}

func (m *memClient) SetHandler(h interfaces.ClientHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *memClient) Connect(_ context.Context, _ string) error {
	m.mu.Lock()
	if m.dialErr != nil {
		err := m.dialErr
		m.mu.Unlock()
		return err
	}
	if m.connected {
		m.mu.Unlock()
		return fmt.Errorf("%w: already connected", types.ErrTransport)
	}
	m.connected = true
	h := m.handler
	m.mu.Unlock()
	h.OnConnected()
	return nil
}

func (m *memClient) Disconnect(reason types.DisconnectReason) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return fmt.Errorf("%w: not connected", types.ErrTransport)
	}
	m.connected = false
	m.reasons = append(m.reasons, reason)
	h := m.handler
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		h.OnDisconnected(reason)
	}()
	return nil
}

func (m *memClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("%w: not connected", types.ErrTransport)
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

// drop 模拟远端断开，同步投递
func (m *memClient) drop(reason types.DisconnectReason) {
	m.mu.Lock()
	m.connected = false
	h := m.handler
	m.mu.Unlock()
	h.OnDisconnected(reason)
}

// deliver 模拟读协程收到一帧
func (m *memClient) deliver(data []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h.OnBytesReceived(data)
}

func (m *memClient) frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

// ============================================================================
//                              内存服务端传输
// ============================================================================

// memServer 内存服务端传输，连接由测试驱动，断开事件异步投递
type memServer struct {
	mu        sync.Mutex
	handler   interfaces.ServerHandler
	listening bool
	conns     map[uint64]bool
	sent      map[uint64][][]byte
	reasons   map[uint64]types.DisconnectReason
	nextID    atomic.Uint64
	wg        sync.WaitGroup
}

func newMemServer() *memServer {
	return &memServer{
		conns:   make(map[uint64]bool),
		sent:    make(map[uint64][][]byte),
		reasons: make(map[uint64]types.DisconnectReason),
	}
}

func (m *memServer) SetHandler(h interfaces.ServerHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *memServer) Listen(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = true
	return nil
}

func (m *memServer) Addr() string {
	return "mem:7400"
}

func (m *memServer) Send(connID uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.conns[connID] {
		return fmt.Errorf("%w: unknown connection", types.ErrTransport)
	}
	m.sent[connID] = append(m.sent[connID], append([]byte(nil), data...))
	return nil
}

func (m *memServer) Disconnect(connID uint64, reason types.DisconnectReason) error {
	m.mu.Lock()
	if !m.conns[connID] {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown connection", types.ErrTransport)
	}
	delete(m.conns, connID)
	m.reasons[connID] = reason
	h := m.handler
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		h.OnDisconnected(connID, reason)
	}()
	return nil
}

func (m *memServer) Close() error {
	m.mu.Lock()
	m.listening = false
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

// accept 模拟一条入站连接，返回连接号
func (m *memServer) accept() uint64 {
	id := m.nextID.Add(1)
	m.mu.Lock()
	m.conns[id] = true
	h := m.handler
	m.mu.Unlock()
	h.OnConnected(id, fmt.Sprintf("10.0.0.%d:5000", id))
	return id
}

// drop 模拟远端断开
func (m *memServer) drop(connID uint64, reason types.DisconnectReason) {
	m.mu.Lock()
	delete(m.conns, connID)
	h := m.handler
	m.mu.Unlock()
	h.OnDisconnected(connID, reason)
}

func (m *memServer) deliver(connID uint64, data []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h.OnBytesReceived(connID, data)
}

func (m *memServer) frames(connID uint64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent[connID]...)
}

func (m *memServer) reason(connID uint64) (types.DisconnectReason, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reasons[connID]
	return r, ok
}

// ============================================================================
//                              计数指标
// ============================================================================

type countingReporter struct {
	sent, received, decodeFailed, unhandled, gated atomic.Int64
}

func (r *countingReporter) PackSent(int)     { r.sent.Add(1) }
func (r *countingReporter) PackReceived(int) { r.received.Add(1) }
func (r *countingReporter) DecodeFailed()    { r.decodeFailed.Add(1) }
func (r *countingReporter) Unhandled()       { r.unhandled.Add(1) }
func (r *countingReporter) GatedDrop()       { r.gated.Add(1) }
