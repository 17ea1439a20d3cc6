// Package peerctl 提供点对点消息控制框架
//
// 一个连接的两端分别是客户端控制器与服务端控制器。双方交换 DataPack
// （有序的对象列表），经线上编解码后在传输层上收发。服务端为每个入站连接
// 创建一个 Peer。行为由可插拔的特性（Feature）组成：请求响应关联、
// 预共享密钥认证、客户端自动重连。
//
// # 快速开始
//
//	import "github.com/dep2p/go-peerctl"
//
//	// 服务端
//	srv, err := peerctl.NewServer(
//	    peerctl.WithEndpoint("127.0.0.1:7400"),
//	    peerctl.WithKeyStoreFile("keys.json"),
//	    peerctl.WithHandler(peerctl.EchoHandler),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	// 客户端
//	cli, err := peerctl.NewClient(
//	    peerctl.WithEndpoint("127.0.0.1:7400"),
//	    peerctl.WithPresharedKey(key),
//	)
//	if err := cli.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cli.WaitAuthenticated(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	out, err := cli.Request(ctx, &peerctl.Echo{Text: "hello"})
//
// # 分层
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│  入口层      Node  peerctl.NewClient() / peerctl.NewServer()     │
//	├─────────────────────────────────────────────────────────────────┤
//	│  控制层      Controller / Peer   （internal/core/controller）    │
//	│              数据分发、认证门控、Peer 生命周期                    │
//	├─────────────────────────────────────────────────────────────────┤
//	│  特性层      reqresp / auth / reconnect   （internal/feature）   │
//	├─────────────────────────────────────────────────────────────────┤
//	│  基础层      wire / feature / eventbus / metrics / transport      │
//	└─────────────────────────────────────────────────────────────────┘
//
// # 负载类型
//
// 线上对象以注册名标识。自定义负载须在两端用 WithType 登记；实现
// wire.Serializable 的类型使用原生编码，proto.Message 使用 protobuf，
// 其余类型回退为 JSON。
//
// # 文件组织
//
//   - node.go     Node 门面、生命周期、收发
//   - options.go  Option 构建器
//   - fx.go       Fx 应用装配
//   - echo.go     内置 Echo 负载
//   - errors.go   公共错误
package peerctl
