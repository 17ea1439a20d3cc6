// Package interfaces 定义 peerctl 的公共接口
//
// 核心框架只通过这些窄接口消费外部协作者：
//   - feature.go    - 特性、数据目标与宿主（Controller / Peer）
//   - transport.go  - 字节流传输层（客户端与服务端）
//   - keystore.go   - 认证密钥库
//   - codec.go      - JSON 回退编解码器
//   - eventbus.go   - 事件接收器
package interfaces
