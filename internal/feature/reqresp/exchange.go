package reqresp

import (
	"sync/atomic"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

// Exchange 一次入站请求的处理上下文
//
// 每个请求至多产生一个响应，第二次响应返回 ErrAlreadyResponded。
type Exchange struct {
	f         *Feature
	owner     interfaces.Owner
	req       *Request
	responded atomic.Bool
}

// Request 正在处理的请求
func (ex *Exchange) Request() *Request {
	return ex.req
}

// Owner 收到请求的宿主
func (ex *Exchange) Owner() interfaces.Owner {
	return ex.owner
}

// Responded 是否已经响应
func (ex *Exchange) Responded() bool {
	return ex.responded.Load()
}

// RespondSuccess 发送成功响应
func (ex *Exchange) RespondSuccess(payload any) error {
	return ex.respond(true, payload)
}

// RespondFail 发送失败响应
func (ex *Exchange) RespondFail(payload any) error {
	return ex.respond(false, payload)
}

// Decline 放弃处理，清除请求的接受端点
func (ex *Exchange) Decline() error {
	return ex.req.Decline()
}

func (ex *Exchange) respond(success bool, payload any) error {
	if !ex.responded.CompareAndSwap(false, true) {
		return ErrAlreadyResponded
	}
	resp := &Response{
		RequestID: ex.req.ID,
		Success:   success,
		Payload:   payload,
		SentAt:    ex.f.cfg.Clock.Now(),
	}
	return ex.owner.Send(resp)
}
