package ws

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-peerctl/pkg/types"
)

const (
	// closeCodeBase 自定义关闭码起点
	closeCodeBase = 4000

	closeWriteTimeout = 500 * time.Millisecond
)

// Config WebSocket 传输配置
type Config struct {
	// DialTimeout 握手超时
	DialTimeout time.Duration

	// IdleTimeout 读空闲超时，0 表示不限制
	IdleTimeout time.Duration

	// MaxFrameSize 单条消息最大字节数
	MaxFrameSize int

	// Path 升级路径
	Path string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:  10 * time.Second,
		MaxFrameSize: 4 << 20,
		Path:         "/peerctl",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.Path == "" {
		c.Path = def.Path
	}
	return c
}

// ============================================================================
//                              wsConn
// ============================================================================

type wsConn struct {
	ws     *websocket.Conn
	cfg    Config
	closed atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once

	reasonMu  sync.Mutex
	reason    types.DisconnectReason
	reasonSet bool
}

func newConn(c *websocket.Conn, cfg Config) *wsConn {
	c.SetReadLimit(int64(cfg.MaxFrameSize))
	return &wsConn{ws: c, cfg: cfg}
}

func (c *wsConn) write(data []byte) error {
	if len(data) > c.cfg.MaxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), c.cfg.MaxFrameSize)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return nil
}

func (c *wsConn) close(reason types.DisconnectReason) error {
	var err error
	c.closeOnce.Do(func() {
		c.setReason(reason)

		c.writeMu.Lock()
		if !c.closed.Load() {
			msg := websocket.FormatCloseMessage(closeCodeBase+int(reason), reason.String())
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		}
		c.closed.Store(true)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) setReason(r types.DisconnectReason) {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	if !c.reasonSet {
		c.reason, c.reasonSet = r, true
	}
}

func (c *wsConn) readLoop(onData func([]byte)) types.DisconnectReason {
	for {
		if c.cfg.IdleTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
		}
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.setReason(classify(err))
			break
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		onData(data)
	}

	c.writeMu.Lock()
	c.closed.Store(true)
	c.writeMu.Unlock()
	_ = c.ws.Close()

	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	return c.reason
}

// classify 把读错误映射为断开原因，自定义关闭码优先
func classify(err error) types.DisconnectReason {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if r := types.DisconnectReason(ce.Code - closeCodeBase); ce.Code >= closeCodeBase && r.Valid() {
			return r
		}
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
			return types.DisconnectNormal
		}
		return types.DisconnectRemoved
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.DisconnectTimeout
	}
	return types.DisconnectRemoved
}
