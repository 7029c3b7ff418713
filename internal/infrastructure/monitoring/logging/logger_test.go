package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Defaults(t *testing.T) {
	l, err := NewLogger(Config{})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestFields_ReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Info("layer refreshed",
		String("layer", "audiosight"),
		Int("features", 42),
		Float64("duration_ms", 1.5),
		Bool("clustered", true),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "layer refreshed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "audiosight", fields["layer"])
	assert.EqualValues(t, 42, fields["features"])
}

func TestErr_NilError(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	parent := NewLoggerFromCore(core)
	child := parent.With(String("component", "filter"))

	parent.Info("parent entry")
	child.Info("child entry")

	require.Equal(t, 2, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "component")
	assert.Equal(t, "filter", logs.All()[1].ContextMap()["component"])
}

func TestDefault_NopUntilSet(t *testing.T) {
	// Must not panic even before SetDefault.
	Default().Info("ignored")

	l := NewNopLogger()
	SetDefault(l)
	assert.Equal(t, l, Default())
	SetDefault(nil) // no-op
	assert.Equal(t, l, Default())
}

func TestSetLevel_AdjustsAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := NewLogger(Config{Level: "info", Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.Debug("below threshold")

	setter, ok := l.(LevelSetter)
	require.True(t, ok)
	setter.SetLevel("debug")

	// Children derived before the change share the new level.
	l.Named("child").Debug("now visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), "now visible")
}
