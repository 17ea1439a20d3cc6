// Package auth 实现预共享密钥挑战/应答认证特性
//
// 服务端 Peer 一侧是发起方：连接建立后发送 Challenge 请求并启动超时轮询，
// 收到应答后用密钥库校验 KeyProof，再把 Result 告知对端。客户端一侧是
// 应答方：有密钥时以 KeyProof 成功应答，否则失败应答。
//
// 状态迁移：
//
//	NotStarted → RequestSent → Authenticated
//	                         → Failed(InvalidKey | UnknownKey | TimedOut)
//
// 任何失败都会以 AuthFailure 原因断开连接，且不会自动重试。
//
// 特性依赖同一宿主上已挂载的 reqresp 特性。
package auth
