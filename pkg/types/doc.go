// Package types 定义 peerctl 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 peerctl 内部包。
// 所有类型都是纯值类型，用于在控制器、特性与传输层之间传递数据。
//
// # 文件组织
//
//   - enums.go   - Role, AuthStatus, AuthFailureReason, ReconnectState
//   - events.go  - DisconnectReason 与事件类型
//   - errors.go  - 公共错误分类
//   - ids.go     - ID 生成器
package types
