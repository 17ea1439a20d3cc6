// Package metrics 提供基于 Prometheus 的运行指标
//
// 控制器直接调用 Reporter 记录收发与丢弃，特性事件（认证结果、Peer 上下线、
// 重连放弃）通过事件总线订阅汇总。每个实例使用独立的 prometheus.Registry，
// 测试之间互不干扰。
package metrics
