package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-peerctl"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
	"github.com/dep2p/go-peerctl/pkg/types"
)

type serverFlags struct {
	listen    string
	keys      string
	transport string
	metrics   string
	name      string
}

func newServerCommand(g *globalFlags) *cobra.Command {
	f := &serverFlags{}
	cmd := &cobra.Command{
		Use:   "server",
		Short: "运行消息服务端",
		Long: `运行消息服务端，对 Echo 请求原样应答。

指定 --keys 时要求客户端以密钥库中的预共享密钥认证。`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := f.options(cmd, g)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runServer(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&f.listen, "listen", "", "监听地址，如 :7400")
	cmd.Flags().StringVar(&f.keys, "keys", "", "密钥库文件，指定时要求认证")
	cmd.Flags().StringVar(&f.transport, "transport", "", "传输类型: tcp 或 ws")
	cmd.Flags().StringVar(&f.metrics, "metrics", "", "/metrics 监听地址，如 :9400")
	cmd.Flags().StringVar(&f.name, "name", "peerctl-server", "能力描述中的节点名")
	return cmd
}

// options 命令行参数只覆盖显式设置的项
func (f *serverFlags) options(cmd *cobra.Command, g *globalFlags) ([]peerctl.Option, error) {
	opts, err := baseOptions(g)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		opts = append(opts, peerctl.WithEndpoint(f.listen))
	}
	if f.keys != "" {
		opts = append(opts, peerctl.WithKeyStoreFile(f.keys))
	}
	if flags.Changed("transport") {
		opts = append(opts, peerctl.WithTransport(f.transport))
	}
	if f.metrics != "" {
		opts = append(opts, peerctl.WithMetricsListen(f.metrics))
	}
	opts = append(opts,
		peerctl.WithCapabilities(map[string]any{"name": f.name, "version": peerctl.Version}),
		peerctl.WithHandler(peerctl.EchoHandler),
	)
	return opts, nil
}

func runServer(ctx context.Context, out io.Writer, opts []peerctl.Option) error {
	srv, err := peerctl.NewServer(opts...)
	if err != nil {
		return fmt.Errorf("创建服务端失败: %w", err)
	}

	joined := eventbus.Subscribe[types.EvtPeerConnected](srv.Events(), 16)
	defer joined.Close()
	left := eventbus.Subscribe[types.EvtPeerDisconnected](srv.Events(), 16)
	defer left.Close()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = srv.Close() }()

	fmt.Fprintf(out, "%s\n", peerctl.VersionInfo())
	fmt.Fprintf(out, "监听: %s  传输: %s  认证: %v\n",
		srv.Addr(), srv.Config().Transport.Kind, srv.Config().Auth.Required)
	fmt.Fprintln(out, "按 Ctrl+C 退出")

	for {
		select {
		case evt := <-joined.Out():
			fmt.Fprintf(out, "%s  + %s  %s\n", evt.At.Format(time.TimeOnly), log.TruncateID(evt.PeerID, 8), evt.RemoteAddr)
		case evt := <-left.Out():
			fmt.Fprintf(out, "%s  - %s  %s\n", evt.At.Format(time.TimeOnly), log.TruncateID(evt.PeerID, 8), evt.Reason)
		case <-ctx.Done():
			fmt.Fprintln(out, "\n正在关闭服务端...")
			logger.Info("服务端退出", "peers", len(srv.Peers()))
			return nil
		}
	}
}
