// Package log 提供 peerctl 统一日志接口
//
// 基于 Go 标准库 log/slog 封装。组件通过 Logger 获取懒加载 logger：
//
//	var logger = log.Logger("core/controller")
//	logger.Info("客户端已连接", "endpoint", ep)
//
// 支持通过环境变量配置：
//   - PEERCTL_LOG_LEVEL: 日志级别，支持按组件配置
//     格式: 组件=级别,组件=级别,默认级别
//     示例: feature/auth=debug,core/transport=warn,info
//   - PEERCTL_LOG_FORMAT: text 或 json
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ============================================================================
//                              配置
// ============================================================================

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// Level 默认级别
	Level slog.Level

	// ComponentLevels 各组件的日志级别，键为 Logger 的组件名或其前缀
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format Format

	// Output 输出目标，nil 表示 os.Stderr
	Output io.Writer
}

// ParseLevel 解析级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ParseLevelSpec 解析 "组件=级别,...,默认级别" 形式的配置串
func ParseLevelSpec(cfg *Config, spec string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, levelName, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(levelName); ok {
				if cfg.ComponentLevels == nil {
					cfg.ComponentLevels = make(map[string]slog.Level)
				}
				cfg.ComponentLevels[strings.TrimSpace(name)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.Level = level
		}
	}
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() Config {
	cfg := Config{Level: slog.LevelInfo}
	if spec := os.Getenv("PEERCTL_LOG_LEVEL"); spec != "" {
		ParseLevelSpec(&cfg, spec)
	}
	if strings.EqualFold(os.Getenv("PEERCTL_LOG_FORMAT"), "json") {
		cfg.Format = FormatJSON
	}
	return cfg
}

// levels 当前组件级别表，由 Configure 原子替换
var levels atomic.Pointer[Config]

// Configure 按配置重建默认 logger
func Configure(cfg Config) {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	// handler 自身放行所有级别，过滤交给 LazyLogger 按组件判断
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	levels.Store(&cfg)
	slog.SetDefault(slog.New(h))
}

// ConfigureFromEnv 使用环境变量配置默认 logger
func ConfigureFromEnv() {
	Configure(ConfigFromEnv())
}

// SetOutputWithLevel 同时设置日志输出目标和默认级别
func SetOutputWithLevel(w io.Writer, level slog.Level) {
	Configure(Config{Level: level, Output: w})
}

// Discard 丢弃所有日志，用于测试与安静模式
func Discard() {
	Configure(Config{Level: slog.LevelError + 1, Output: io.Discard})
}

// levelFor 返回组件生效的最低级别，按最长前缀匹配
func levelFor(component string) slog.Level {
	cfg := levels.Load()
	if cfg == nil {
		return slog.LevelInfo
	}
	best, bestLen := cfg.Level, -1
	for name, level := range cfg.ComponentLevels {
		if strings.HasPrefix(component, name) && len(name) > bestLen {
			best, bestLen = level, len(name)
		}
	}
	return best
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。日志调用从不返回错误。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// Enabled 指定级别在该组件上是否输出
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return level >= levelFor(l.component)
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !l.Enabled(level) {
		return
	}
	slog.Default().With("component", l.component).Log(ctx, level, msg, args...)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return slog.Default().With("component", l.component).With(args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
//
// 如果 ID 长度小于等于 maxLen，返回原 ID；否则返回前 maxLen 个字符。
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
