// Package feature 实现特性模型
//
// 特性是挂载在 Controller 或 Peer 上的独立行为单元（认证、请求响应、重连等）。
// 每个特性在挂载期间只属于一个宿主，生命周期为：
//
//	Uninstalled → Install → Disabled ⇄ Enabled → Disable → Uninstall
//
// Set 是宿主持有的特性注册表，按特性标识去重，并负责把入站对象按挂载顺序
// 分发给已启用的数据目标：第一个 Accepts 且 Process 返回 true 的目标认领对象。
//
// 特性通过工厂函数构造（Add / Factory），不依赖运行时反射。
package feature
