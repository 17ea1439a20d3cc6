package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// Server WebSocket 服务端传输
type Server struct {
	cfg      Config
	handler  interfaces.ServerHandler
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	ln    net.Listener
	http  *http.Server
	conns map[uint64]*wsConn
	wg    sync.WaitGroup

	nextID atomic.Uint64
	// closing 仅在 Close 执行期间为 true，结束后可再次 Listen
	closing atomic.Bool
}

var _ interfaces.ServerTransport = (*Server)(nil)

// NewServer 创建服务端传输
func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.DialTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		conns: make(map[uint64]*wsConn),
	}
}

// SetHandler 实现 ServerTransport
func (s *Server) SetHandler(h interfaces.ServerHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Listen 实现 ServerTransport，Close 之后可再次调用
func (s *Server) Listen(ctx context.Context, endpoint string) error {
	if s.closing.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrAlreadyListening
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", endpoint)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", types.ErrTransport, endpoint, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: s.cfg.DialTimeout}
	s.ln, s.http = ln, srv
	logger.Info("开始监听", "addr", ln.Addr().String(), "path", s.cfg.Path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http 服务退出", "error", err)
		}
	}()
	return nil
}

// Addr 实现 ServerTransport
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := s.nextID.Add(1)
	wc := newConn(raw, s.cfg)

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = wc.close(types.DisconnectShutdown)
		return
	}
	s.conns[id] = wc
	handler := s.handler
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	remote := raw.RemoteAddr().String()
	logger.Debug("新连接", "conn", id, "remote", remote)
	if handler != nil {
		handler.OnConnected(id, remote)
	}
	reason := wc.readLoop(func(data []byte) {
		if handler != nil {
			handler.OnBytesReceived(id, data)
		}
	})

	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()

	logger.Debug("连接已断开", "conn", id, "reason", reason)
	if handler != nil {
		handler.OnDisconnected(id, reason)
	}
}

func (s *Server) lookup(id uint64) (*wsConn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wc, ok := s.conns[id]
	if !ok {
		return nil, ErrUnknownConn
	}
	return wc, nil
}

// Send 实现 ServerTransport
func (s *Server) Send(connID uint64, data []byte) error {
	wc, err := s.lookup(connID)
	if err != nil {
		return err
	}
	return wc.write(data)
}

// Disconnect 实现 ServerTransport
func (s *Server) Disconnect(connID uint64, reason types.DisconnectReason) error {
	wc, err := s.lookup(connID)
	if err != nil {
		return err
	}
	return wc.close(reason)
}

// Close 实现 ServerTransport
func (s *Server) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.closing.Store(false)

	s.mu.Lock()
	srv := s.http
	conns := make([]*wsConn, 0, len(s.conns))
	for _, wc := range s.conns {
		conns = append(conns, wc)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Close()
	}
	for _, wc := range conns {
		_ = wc.close(types.DisconnectShutdown)
	}
	s.wg.Wait()

	s.mu.Lock()
	s.ln, s.http = nil, nil
	s.mu.Unlock()
	return err
}
