package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-peerctl"
	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/pkg/types"
)

type clientFlags struct {
	connect     string
	key         string
	transport   string
	count       int
	interval    time.Duration
	timeout     time.Duration
	noReconnect bool
}

func newClientCommand(g *globalFlags) *cobra.Command {
	f := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "client",
		Short: "运行消息客户端",
		Long: `连接服务端并周期性发送 Echo 请求，打印往返时延。

连接断开后按重连配置自动重连；认证失败时不重连。`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := f.options(cmd, g)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runClient(ctx, cmd.OutOrStdout(), opts, f)
		},
	}

	cmd.Flags().StringVar(&f.connect, "connect", "", "服务端地址，如 127.0.0.1:7400")
	cmd.Flags().StringVar(&f.key, "key", "", "预共享密钥")
	cmd.Flags().StringVar(&f.transport, "transport", "", "传输类型: tcp 或 ws")
	cmd.Flags().IntVar(&f.count, "count", 0, "发送次数，0 表示直到退出")
	cmd.Flags().DurationVar(&f.interval, "interval", time.Second, "两次请求的间隔")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "单次请求超时")
	cmd.Flags().BoolVar(&f.noReconnect, "no-reconnect", false, "禁用自动重连")
	return cmd
}

func (f *clientFlags) options(cmd *cobra.Command, g *globalFlags) ([]peerctl.Option, error) {
	opts, err := baseOptions(g)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("connect") {
		opts = append(opts, peerctl.WithEndpoint(f.connect))
	}
	if f.key != "" {
		opts = append(opts, peerctl.WithPresharedKey(f.key))
	}
	if flags.Changed("transport") {
		opts = append(opts, peerctl.WithTransport(f.transport))
	}
	if f.noReconnect {
		opts = append(opts, peerctl.WithReconnect(false))
	}
	if f.interval <= 0 {
		return nil, fmt.Errorf("invalid interval %s", f.interval)
	}
	opts = append(opts, peerctl.WithCapabilities(map[string]any{"name": "peerctl-client", "version": peerctl.Version}))
	return opts, nil
}

func runClient(ctx context.Context, out io.Writer, opts []peerctl.Option, f *clientFlags) error {
	cli, err := peerctl.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("创建客户端失败: %w", err)
	}

	gaveUp := eventbus.Subscribe[types.EvtReconnectGaveUp](cli.Events(), 1)
	defer gaveUp.Close()

	if err := cli.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = cli.Close() }()
	fmt.Fprintf(out, "连接: %s  已连接: %v\n", cli.Addr(), cli.Connected())

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var seq uint64
	for f.count == 0 || seq < uint64(f.count) {
		select {
		case <-ctx.Done():
			return nil
		case <-gaveUp.Out():
			return errors.New("重连已放弃")
		case <-ticker.C:
		}
		if !cli.Connected() {
			fmt.Fprintln(out, "未连接，等待重连...")
			continue
		}
		seq++
		if err := ping(ctx, out, cli, seq, f.timeout); err != nil {
			var failure *peerctl.AuthFailure
			if errors.As(err, &failure) {
				return err
			}
			fmt.Fprintf(out, "#%d 失败: %v\n", seq, err)
		}
	}
	return nil
}

// ping 等待认证后发送一次 Echo
func ping(ctx context.Context, out io.Writer, cli *peerctl.Node, seq uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := cli.WaitAuthenticated(ctx); err != nil {
		return err
	}
	sent := time.Now()
	resp, err := cli.Request(ctx, &peerctl.Echo{Seq: seq, Text: "ping", SentAt: sent})
	if err != nil {
		return err
	}
	echo, ok := resp.(*peerctl.Echo)
	if !ok || echo.Seq != seq {
		return fmt.Errorf("unexpected response %T", resp)
	}
	fmt.Fprintf(out, "#%d %s rtt=%s\n", seq, echo.Text, time.Since(sent).Round(time.Microsecond))
	return nil
}
