// Package controller 实现消息控制器
//
// 控制器有两种角色：
//   - 客户端：维持一条到服务端的出站连接，自身即宿主，特性直接挂载在控制器上
//   - 服务端：监听入站连接，为每条连接创建一个 Peer，Peer 拥有独立的特性集合
//
// 入站数据流：
//
//	传输层字节 → 线上编解码 → 数据包 → 控制器特性 → Peer 特性
//
// 每个对象由第一个认领它的特性处理；无人认领的对象记录日志并发出
// types.EvtUnhandledMessage，随后继续分发下一个对象。
//
// 服务端要求认证时，未认证 Peer 的入站对象只放行 *reqresp.Response，
// 其余对象在分发前丢弃。
package controller
