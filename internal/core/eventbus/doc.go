// Package eventbus 实现进程内事件总线
//
// 事件按动态类型路由，订阅者通过泛型 Subscribe 获取类型安全的通道：
//
//	sub := eventbus.Subscribe[types.EvtPeerConnected](bus, 16)
//	defer sub.Close()
//	for evt := range sub.Out() { ... }
//
// Emit 从不阻塞：订阅者缓冲区已满时事件被丢弃，并节流记录警告。
// Bus 实现 interfaces.EventSink，作为特性的事件接收器使用。
package eventbus
