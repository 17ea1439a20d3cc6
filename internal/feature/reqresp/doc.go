// Package reqresp 实现请求/响应关联特性
//
// 发送方为每个 Request 分配关联 ID，并把回调存入待决表；对端返回的
// Response 按关联 ID 找到回调并执行一次。接收方按载荷的运行时类型查找
// 处理器：
//
//	Handle[P]          替换式，返回值自动作为成功响应
//	HandleVoid[P]      替换式，处理器自行调用 RespondSuccess/RespondFail
//	AddHandler[P]      追加式，可注册多个，按注册顺序调用
//	AddVoidHandler[P]  追加式的 void 版本
//
// 同一载荷类型不能同时注册替换式与追加式处理器。
//
// 已拆除宿主上的待决回调永远不会被调用，也不会伪造失败响应；
// 需要超时的调用方使用 Call 并传入带截止时间的 context。
package reqresp
