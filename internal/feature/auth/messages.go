package auth

import (
	"github.com/dep2p/go-peerctl/internal/core/wire"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// 线上类型标识
const (
	ChallengeName = "peerctl.auth.Challenge"
	KeyProofName  = "peerctl.auth.KeyProof"
	ResultName    = "peerctl.auth.Result"
)

// RegisterTypes 向注册表登记认证消息
func RegisterTypes(reg *wire.Registry) error {
	if err := wire.Register[Challenge](reg, ChallengeName); err != nil {
		return err
	}
	if err := wire.Register[KeyProof](reg, KeyProofName); err != nil {
		return err
	}
	return wire.Register[Result](reg, ResultName)
}

// Challenge 认证挑战，无内容
type Challenge struct{}

func (*Challenge) MarshalWire(*wire.Writer) error   { return nil }
func (*Challenge) UnmarshalWire(*wire.Reader) error { return nil }

// KeyProof 应答方提供的预共享密钥
type KeyProof struct {
	Key string
}

func (p *KeyProof) MarshalWire(w *wire.Writer) error {
	w.WriteString(p.Key)
	return nil
}

func (p *KeyProof) UnmarshalWire(r *wire.Reader) (err error) {
	p.Key, err = r.ReadString()
	return err
}

// Result 发起方告知应答方的认证结论
type Result struct {
	Success bool
	Reason  types.AuthFailureReason
}

func (m *Result) MarshalWire(w *wire.Writer) error {
	w.WriteBool(m.Success)
	w.WriteUvarint(uint64(m.Reason))
	return nil
}

func (m *Result) UnmarshalWire(r *wire.Reader) error {
	ok, err := r.ReadBool()
	if err != nil {
		return err
	}
	reason, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Success, m.Reason = ok, types.AuthFailureReason(reason)
	return nil
}
