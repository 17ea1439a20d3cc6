package reqresp

import (
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-peerctl/internal/core/wire"
)

// 线上类型标识
const (
	RequestName  = "peerctl.Request"
	ResponseName = "peerctl.Response"
	FailureName  = "peerctl.Failure"
)

// RegisterTypes 向注册表登记请求响应相关类型
func RegisterTypes(reg *wire.Registry) error {
	if err := wire.Register[Request](reg, RequestName); err != nil {
		return err
	}
	if err := wire.Register[Response](reg, ResponseName); err != nil {
		return err
	}
	return wire.Register[Failure](reg, FailureName)
}

// ============================================================================
//                              Request
// ============================================================================

// Request 携带调用方载荷的请求
//
// acceptedBy 仅在本地有效，不参与编码。
type Request struct {
	ID      string
	SentAt  time.Time
	Payload any

	mu         sync.Mutex
	acceptedBy string
}

var _ wire.Serializable = (*Request)(nil)

// NewRequest 创建请求，ID 在发送时分配
func NewRequest(payload any) *Request {
	return &Request{Payload: payload}
}

// Accept 标记接受请求的端点，先到者生效，返回本次是否生效
func (r *Request) Accept(endpoint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acceptedBy != "" {
		return false
	}
	r.acceptedBy = endpoint
	return true
}

// Decline 清除已接受的端点
func (r *Request) Decline() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acceptedBy == "" {
		return ErrNotAccepted
	}
	r.acceptedBy = ""
	return nil
}

// AcceptedBy 返回接受请求的端点，未接受时为空
func (r *Request) AcceptedBy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acceptedBy
}

// MarshalWire 实现 wire.Serializable
func (r *Request) MarshalWire(w *wire.Writer) error {
	w.WriteString(r.ID)
	w.WriteTime(r.SentAt)
	return w.WriteObject(r.Payload)
}

// UnmarshalWire 实现 wire.Serializable
func (r *Request) UnmarshalWire(rd *wire.Reader) (err error) {
	if r.ID, err = rd.ReadString(); err != nil {
		return err
	}
	if r.SentAt, err = rd.ReadTime(); err != nil {
		return err
	}
	r.Payload, err = rd.ReadObject()
	return err
}

// ============================================================================
//                              Response
// ============================================================================

// Response 对某个请求的应答
type Response struct {
	RequestID string
	Success   bool
	Payload   any
	SentAt    time.Time

	// ReceivedAt 到达本端的时间，不参与编码
	ReceivedAt time.Time
}

var _ wire.Serializable = (*Response)(nil)

// Err 失败响应转为错误，成功时返回 nil
func (r *Response) Err() error {
	if r.Success {
		return nil
	}
	if f, ok := r.Payload.(*Failure); ok && f.Message != "" {
		return fmt.Errorf("%w: %s", ErrRemoteFailure, f.Message)
	}
	return ErrRemoteFailure
}

// MarshalWire 实现 wire.Serializable
func (r *Response) MarshalWire(w *wire.Writer) error {
	w.WriteString(r.RequestID)
	w.WriteBool(r.Success)
	w.WriteTime(r.SentAt)
	return w.WriteObject(r.Payload)
}

// UnmarshalWire 实现 wire.Serializable
func (r *Response) UnmarshalWire(rd *wire.Reader) (err error) {
	if r.RequestID, err = rd.ReadString(); err != nil {
		return err
	}
	if r.Success, err = rd.ReadBool(); err != nil {
		return err
	}
	if r.SentAt, err = rd.ReadTime(); err != nil {
		return err
	}
	r.Payload, err = rd.ReadObject()
	return err
}

// Failure 自动响应处理器出错时的失败载荷
type Failure struct {
	Message string `json:"message"`
}
