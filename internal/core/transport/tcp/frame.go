package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-peerctl/pkg/types"
)

const (
	frameData  byte = 0
	frameClose byte = 1

	// closeWriteTimeout 发送关闭帧的最长等待
	closeWriteTimeout = 500 * time.Millisecond
)

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时
	DialTimeout time.Duration

	// IdleTimeout 读空闲超时，0 表示不限制
	IdleTimeout time.Duration

	// MaxFrameSize 单帧最大字节数
	MaxFrameSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:  10 * time.Second,
		MaxFrameSize: 4 << 20,
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
	return c
}

// ============================================================================
//                              frameConn
// ============================================================================

// frameConn 带帧边界与断开原因的 TCP 连接
type frameConn struct {
	nc     net.Conn
	br     *bufio.Reader
	cfg    Config
	closed atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once

	reasonMu  sync.Mutex
	reason    types.DisconnectReason
	reasonSet bool
}

func newFrameConn(nc net.Conn, cfg Config) *frameConn {
	return &frameConn{
		nc:  nc,
		br:  bufio.NewReader(nc),
		cfg: cfg,
	}
}

// writeFrame 写入一帧，写入串行化
func (c *frameConn) writeFrame(kind byte, payload []byte) error {
	if len(payload) > c.cfg.MaxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), c.cfg.MaxFrameSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	if _, err := c.nc.Write(encodeFrame(kind, payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return nil
}

func encodeFrame(kind byte, payload []byte) []byte {
	size := uint64(len(payload) + 1)
	buf := make([]byte, 0, varint.UvarintSize(size)+int(size))
	buf = append(buf, varint.ToUvarint(size)...)
	buf = append(buf, kind)
	return append(buf, payload...)
}

// readFrame 读取一帧
func (c *frameConn) readFrame() (byte, []byte, error) {
	if c.cfg.IdleTimeout > 0 {
		_ = c.nc.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	}
	size, err := varint.ReadUvarint(c.br)
	if err != nil {
		return 0, nil, err
	}
	if size == 0 {
		return 0, nil, ErrMalformedFrame
	}
	if size > uint64(c.cfg.MaxFrameSize)+1 {
		return 0, nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.br, buf); err != nil {
		return 0, nil, err
	}
	return buf[0], buf[1:], nil
}

// close 以指定原因关闭，尽力通知对端
func (c *frameConn) close(reason types.DisconnectReason) error {
	var err error
	c.closeOnce.Do(func() {
		c.setReason(reason)

		c.writeMu.Lock()
		if !c.closed.Load() {
			_ = c.nc.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
			_, _ = c.nc.Write(encodeFrame(frameClose, []byte{byte(reason)}))
		}
		c.closed.Store(true)
		c.writeMu.Unlock()

		err = c.nc.Close()
	})
	return err
}

// setReason 记录断开原因，先到者生效
func (c *frameConn) setReason(r types.DisconnectReason) {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	if !c.reasonSet {
		c.reason, c.reasonSet = r, true
	}
}

func (c *frameConn) finalReason() types.DisconnectReason {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	return c.reason
}

// readLoop 循环读取直到连接结束，返回断开原因
func (c *frameConn) readLoop(onData func([]byte)) types.DisconnectReason {
	for {
		kind, payload, err := c.readFrame()
		if err != nil {
			c.setReason(classify(err))
			break
		}
		switch kind {
		case frameData:
			onData(payload)
			continue
		case frameClose:
			reason := types.DisconnectRemoved
			if len(payload) == 1 && types.DisconnectReason(payload[0]).Valid() {
				reason = types.DisconnectReason(payload[0])
			}
			c.setReason(reason)
		default:
			c.setReason(types.DisconnectRemoved)
		}
		break
	}

	c.writeMu.Lock()
	c.closed.Store(true)
	c.writeMu.Unlock()
	_ = c.nc.Close()
	return c.finalReason()
}

// classify 把读错误映射为断开原因
func classify(err error) types.DisconnectReason {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		return types.DisconnectNormal
	case errors.As(err, &ne) && ne.Timeout():
		return types.DisconnectTimeout
	default:
		return types.DisconnectRemoved
	}
}
