// Package main 提供 peerctl 命令行入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-peerctl"
	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/pkg/lib/log"
)

var logger = log.Logger("peerctl/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 全局参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
	quiet      bool
	fxDebug    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "peerctl",
		Short: "点对点消息控制框架命令行",
		Long: `peerctl 运行消息服务端或客户端，并管理预共享密钥库。

服务端对 Echo 请求原样应答；客户端周期性发送 Echo 并在断线后自动重连。`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging(g)
		},
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "JSON 配置文件路径")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "日志级别，支持 组件=级别,默认级别（覆盖 PEERCTL_LOG_LEVEL）")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "日志格式: text 或 json（覆盖 PEERCTL_LOG_FORMAT）")
	root.PersistentFlags().BoolVar(&g.quiet, "quiet", false, "关闭日志输出")
	root.PersistentFlags().BoolVar(&g.fxDebug, "fx-debug", false, "输出依赖注入日志")

	root.AddCommand(newServerCommand(g))
	root.AddCommand(newClientCommand(g))
	root.AddCommand(newKeygenCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// setupLogging 环境变量为基础，命令行参数覆盖
func setupLogging(g *globalFlags) error {
	if g.quiet {
		log.Discard()
		return nil
	}
	cfg := log.ConfigFromEnv()
	if g.logLevel != "" {
		log.ParseLevelSpec(&cfg, g.logLevel)
	}
	switch g.logFormat {
	case "":
	case "text":
		cfg.Format = log.FormatText
	case "json":
		cfg.Format = log.FormatJSON
	default:
		return fmt.Errorf("unknown log format %q", g.logFormat)
	}
	log.Configure(cfg)
	return nil
}

// baseOptions 配置文件与全局参数对应的节点选项
func baseOptions(g *globalFlags) ([]peerctl.Option, error) {
	var opts []peerctl.Option
	if g.configFile != "" {
		cfg, err := config.Load(g.configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		opts = append(opts, peerctl.WithConfig(cfg))
	}
	if g.fxDebug {
		opts = append(opts, peerctl.WithFxDebug(true))
	}
	return opts, nil
}

// signalContext 在 SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), peerctl.VersionInfo())
		},
	}
}
