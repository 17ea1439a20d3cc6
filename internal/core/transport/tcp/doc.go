// Package tcp 提供基于 TCP 的字节流传输实现
//
// 每次写入对应一帧：
//
//	uvarint len | kind | payload
//
// kind 为 0 时 payload 是一个完整的 DataPack；kind 为 1 时为关闭帧，
// payload 只有一个字节的断开原因，让对端知道连接为何被关闭
// （例如认证失败后客户端不应重连）。
//
// 同一连接上的写入由单写者锁串行化，读取在每条连接独立的协程上按序回调。
package tcp
