package peerctl

import (
	"time"

	"github.com/dep2p/go-peerctl/internal/core/wire"
)

// EchoName Echo 的线上类型名
const EchoName = "peerctl.Echo"

// Echo 内置的回显负载，节点默认登记
type Echo struct {
	Seq    uint64
	Text   string
	SentAt time.Time
}

// MarshalWire 实现 wire.Serializable
func (e *Echo) MarshalWire(w *wire.Writer) error {
	w.WriteUvarint(e.Seq)
	w.WriteString(e.Text)
	w.WriteTime(e.SentAt)
	return nil
}

// UnmarshalWire 实现 wire.Serializable
func (e *Echo) UnmarshalWire(r *wire.Reader) (err error) {
	if e.Seq, err = r.ReadUvarint(); err != nil {
		return err
	}
	if e.Text, err = r.ReadString(); err != nil {
		return err
	}
	e.SentAt, err = r.ReadTime()
	return err
}

// EchoHandler 原样返回请求负载，可直接交给 WithHandler
func EchoHandler(e *Echo) (any, error) {
	return e, nil
}
