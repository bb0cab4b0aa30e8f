package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

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
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// ComponentLevels 各组件的日志级别（key 为组件名，如 "core/hub"）
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否添加源码位置
	AddSource bool

	// Output 输出目标，为 nil 时使用 stderr
	Output io.Writer
}

// Configure 按配置安装默认 slog handler
//
// 之后所有 LazyLogger 都会使用新的 handler。
func Configure(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		// 级别判断交给 componentHandler
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
	}
	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(out, opts)
	}
	levels := make(map[string]slog.Level, len(cfg.ComponentLevels))
	for k, v := range cfg.ComponentLevels {
		levels[k] = v
	}
	slog.SetDefault(slog.New(&componentHandler{
		inner:  inner,
		def:    cfg.DefaultLevel,
		levels: levels,
		level:  cfg.DefaultLevel,
	}))
}

// ParseLevels 解析级别配置字符串
//
// 格式: component=level,component=level,defaultLevel
// 示例: core/hub=debug,core/supervisor=warn,info
func ParseLevels(s string) (slog.Level, map[string]slog.Level) {
	def := slog.LevelInfo
	levels := make(map[string]slog.Level)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, lvl, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(lvl); ok {
				levels[strings.TrimSpace(name)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			def = level
		}
	}
	return def, levels
}

// ParseLevel 解析日志级别名称
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

// ParseFormat 解析输出格式名称
func ParseFormat(name string) Format {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return FormatJSON
	}
	return FormatText
}

// ============================================================================
//                              componentHandler
// ============================================================================

// componentHandler 支持按组件控制级别的 slog.Handler
//
// LazyLogger 通过 With("component", name) 注入组件名，
// WithAttrs 捕获该属性并确定本 handler 的生效级别。
type componentHandler struct {
	inner  slog.Handler
	def    slog.Level
	levels map[string]slog.Level
	level  slog.Level
}

// Enabled 检查是否启用指定级别
func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle 处理日志记录
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 返回带属性的 handler
func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	level := h.level
	for _, a := range attrs {
		if a.Key != "component" {
			continue
		}
		if l, ok := h.levels[a.Value.String()]; ok {
			level = l
		} else {
			level = h.def
		}
	}
	return &componentHandler{
		inner:  h.inner.WithAttrs(attrs),
		def:    h.def,
		levels: h.levels,
		level:  level,
	}
}

// WithGroup 返回带分组的 handler
func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{
		inner:  h.inner.WithGroup(name),
		def:    h.def,
		levels: h.levels,
		level:  h.level,
	}
}
