package ws

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

var logger = log.Logger("core/transport/ws")

// Client WebSocket 客户端传输
type Client struct {
	cfg     Config
	handler interfaces.ClientHandler

	mu   sync.Mutex
	conn *wsConn
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

// URL 把 host:port 形式的端点补全为 ws 地址
func (c *Client) URL(endpoint string) string {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint
	}
	return "ws://" + endpoint + c.cfg.Path
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

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	url := c.URL(endpoint)
	raw, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", types.ErrTransport, url, err)
	}

	wc := newConn(raw, c.cfg)
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		_ = raw.Close()
		return ErrAlreadyConnected
	}
	c.conn = wc
	c.mu.Unlock()

	logger.Debug("已连接", "url", url)
	if handler != nil {
		handler.OnConnected()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reason := wc.readLoop(func(data []byte) {
			if handler != nil {
				handler.OnBytesReceived(data)
			}
		})
		logger.Debug("连接已断开", "url", url, "reason", reason)
		if handler != nil {
			handler.OnDisconnected(reason)
		}
		c.mu.Lock()
		if c.conn == wc {
			c.conn = nil
		}
		c.mu.Unlock()
	}()
	return nil
}

// Disconnect 实现 ClientTransport
func (c *Client) Disconnect(reason types.DisconnectReason) error {
	c.mu.Lock()
	wc := c.conn
	c.mu.Unlock()
	if wc == nil {
		return ErrNotConnected
	}
	return wc.close(reason)
}

// Send 实现 ClientTransport
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	wc := c.conn
	c.mu.Unlock()
	if wc == nil {
		return ErrNotConnected
	}
	return wc.write(data)
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
