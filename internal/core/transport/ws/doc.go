// Package ws 提供基于 WebSocket 的字节流传输实现
//
// 一条二进制消息对应一个 DataPack。断开原因通过关闭码传递：
// 关闭码 = 4000 + DisconnectReason。
package ws
