package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// ============================================================================
//                              Client
// ============================================================================

// Client TCP 客户端传输
type Client struct {
	cfg     Config
	handler interfaces.ClientHandler

	mu   sync.Mutex
	conn *frameConn
	wg   sync.WaitGroup
}

var _ interfaces.ClientTransport = (*Client)(nil)

// NewClient 创建客户端传输
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// SetHandler 实现 ClientTransport
func (c *Client) SetHandler(h interfaces.ClientHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect 实现 ClientTransport
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	handler := c.handler
	c.mu.Unlock()

	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", types.ErrTransport, endpoint, err)
	}

	fc := newFrameConn(nc, c.cfg)
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		_ = nc.Close()
		return ErrAlreadyConnected
	}
	c.conn = fc
	c.mu.Unlock()

	logger.Debug("已连接", "endpoint", endpoint, "local", nc.LocalAddr().String())
	if handler != nil {
		handler.OnConnected()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reason := fc.readLoop(func(data []byte) {
			if handler != nil {
				handler.OnBytesReceived(data)
			}
		})
		logger.Debug("连接已断开", "endpoint", endpoint, "reason", reason)
		if handler != nil {
			handler.OnDisconnected(reason)
		}
		c.mu.Lock()
		if c.conn == fc {
			c.conn = nil
		}
		c.mu.Unlock()
	}()
	return nil
}

// Disconnect 实现 ClientTransport
func (c *Client) Disconnect(reason types.DisconnectReason) error {
	c.mu.Lock()
	fc := c.conn
	c.mu.Unlock()
	if fc == nil {
		return ErrNotConnected
	}
	return fc.close(reason)
}

// Send 实现 ClientTransport
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	fc := c.conn
	c.mu.Unlock()
	if fc == nil {
		return ErrNotConnected
	}
	return fc.writeFrame(frameData, data)
}

// Close 断开连接并等待读协程退出
func (c *Client) Close() error {
	err := c.Disconnect(types.DisconnectShutdown)
	if err == ErrNotConnected {
		err = nil
	}
	c.wg.Wait()
	return err
}
