// Package interfaces 定义 peerctl 公共接口
//
// 本文件定义事件接收器接口。
package interfaces

// EventSink 事件接收器
//
// Emit 即发即忘，不返回错误，也不会明显阻塞调用方。
type EventSink interface {
	Emit(evt any)
}

// NopSink 丢弃所有事件
type NopSink struct{}

// Emit 实现 EventSink
func (NopSink) Emit(any) {}
