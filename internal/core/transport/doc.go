// Package transport 按配置选择字节流传输实现
//
// 支持的传输：
//   - tcp: 长度前缀帧（默认）
//   - ws:  WebSocket 二进制消息
//
// 所有实现都满足 interfaces.ClientTransport / interfaces.ServerTransport，
// 并向对端传递断开原因。
package transport
