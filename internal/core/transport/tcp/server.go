package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	tec "github.com/jbenet/go-temp-err-catcher"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// ============================================================================
//                              Server
// ============================================================================

// Server TCP 服务端传输
type Server struct {
	cfg     Config
	handler interfaces.ServerHandler

	mu    sync.RWMutex
	ln    net.Listener
	conns map[uint64]*frameConn
	group *errgroup.Group

	nextID atomic.Uint64
	// closing 仅在 Close 执行期间为 true，结束后可再次 Listen
	closing atomic.Bool
}

var _ interfaces.ServerTransport = (*Server)(nil)

// NewServer 创建服务端传输
func NewServer(cfg Config) *Server {
	return &Server{
		cfg:   cfg.withDefaults(),
		conns: make(map[uint64]*frameConn),
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
	s.ln = ln
	s.group = &errgroup.Group{}
	logger.Info("开始监听", "addr", ln.Addr().String())

	group := s.group
	group.Go(func() error { return s.acceptLoop(ln, group) })
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

func (s *Server) acceptLoop(ln net.Listener, group *errgroup.Group) error {
	var catcher tec.TempErrCatcher
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			if catcher.IsTemporary(err) {
				continue
			}
			logger.Warn("accept 失败，停止监听", "error", err)
			return err
		}

		id := s.nextID.Add(1)
		fc := newFrameConn(nc, s.cfg)

		s.mu.Lock()
		if s.closing.Load() {
			s.mu.Unlock()
			_ = fc.close(types.DisconnectShutdown)
			return nil
		}
		s.conns[id] = fc
		handler := s.handler
		s.mu.Unlock()

		group.Go(func() error {
			s.serve(id, fc, handler)
			return nil
		})
	}
}

func (s *Server) serve(id uint64, fc *frameConn, handler interfaces.ServerHandler) {
	remote := fc.nc.RemoteAddr().String()
	logger.Debug("新连接", "conn", id, "remote", remote)
	if handler != nil {
		handler.OnConnected(id, remote)
	}

	reason := fc.readLoop(func(data []byte) {
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

func (s *Server) lookup(id uint64) (*frameConn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fc, ok := s.conns[id]
	if !ok {
		return nil, ErrUnknownConn
	}
	return fc, nil
}

// Send 实现 ServerTransport
func (s *Server) Send(connID uint64, data []byte) error {
	fc, err := s.lookup(connID)
	if err != nil {
		return err
	}
	return fc.writeFrame(frameData, data)
}

// Disconnect 实现 ServerTransport
func (s *Server) Disconnect(connID uint64, reason types.DisconnectReason) error {
	fc, err := s.lookup(connID)
	if err != nil {
		return err
	}
	return fc.close(reason)
}

// Close 实现 ServerTransport：关闭监听器与全部连接，等待协程退出
func (s *Server) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.closing.Store(false)

	s.mu.Lock()
	ln, group := s.ln, s.group
	conns := make([]*frameConn, 0, len(s.conns))
	for _, fc := range s.conns {
		conns = append(conns, fc)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, fc := range conns {
		_ = fc.close(types.DisconnectShutdown)
	}
	if group != nil {
		if werr := group.Wait(); werr != nil && err == nil {
			err = werr
		}
	}

	s.mu.Lock()
	s.ln, s.group = nil, nil
	s.mu.Unlock()
	return err
}
