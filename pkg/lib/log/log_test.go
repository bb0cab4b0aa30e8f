package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevels(t *testing.T) {
	def, levels := ParseLevels("core/hub=debug, core/supervisor=warn,error")

	assert.Equal(t, slog.LevelError, def)
	assert.Equal(t, slog.LevelDebug, levels["core/hub"])
	assert.Equal(t, slog.LevelWarn, levels["core/supervisor"])

	def, levels = ParseLevels("")
	assert.Equal(t, slog.LevelInfo, def)
	assert.Empty(t, levels)

	// 未知级别被忽略
	def, levels = ParseLevels("bogus,core/hub=loud")
	assert.Equal(t, slog.LevelInfo, def)
	assert.Empty(t, levels)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestConfigure_ComponentLevels(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Configure(Config{
		DefaultLevel:    slog.LevelWarn,
		ComponentLevels: map[string]slog.Level{"core/hub": slog.LevelDebug},
		Output:          &buf,
	})

	hub := Logger("core/hub")
	other := Logger("core/supervisor")

	hub.Debug("hub debug")
	other.Info("supervisor info")
	other.Warn("supervisor warn")

	out := buf.String()
	assert.Contains(t, out, "hub debug")
	assert.NotContains(t, out, "supervisor info")
	assert.Contains(t, out, "supervisor warn")
	assert.Contains(t, out, "component=core/hub")
}

func TestLazyLogger_FollowsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := Logger("core/test")
	assert.Equal(t, "core/test", l.Component())

	var buf bytes.Buffer
	SetDefault(New(&buf, nil))
	l.Info("first", "k", 1)
	assert.Contains(t, buf.String(), "first")

	var buf2 bytes.Buffer
	SetDefault(NewJSON(&buf2, nil))
	l.Info("second")
	assert.Contains(t, buf2.String(), `"msg":"second"`)
	assert.NotContains(t, buf.String(), "second")
}
