package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/transformer-inspect/internal/logger"
)

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC).Module("inventory")

	log.Debug("hidden")
	log.Info("transformer created", logger.String("transformer_no", "TX-1"), logger.Uint64("id", 3))
	log.Warn("blob delete failed", logger.Error(os.ErrNotExist))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "transformer created")
	assert.Contains(t, out, "module=inventory")
	assert.Contains(t, out, "transformer_no=TX-1")
	assert.Contains(t, out, "id=3")
	assert.Contains(t, out, "level=WARN")
}

func TestTraceLevelRendering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelTrace, time.UTC)

	log.Trace("sql query")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithFieldsAndSubmodules(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC).Module("api")
	child := base.Module("images").With(logger.Int("image_id", 9))

	child.Debug("upload stored", logger.Float64("confidence", 0.123456))
	base.Debug("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=api.images")
	assert.Contains(t, lines[0], "image_id=9")
	assert.Contains(t, lines[0], "confidence=0.123")
	assert.NotContains(t, lines[1], "image_id")
}

func TestWithContextTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	ctx := logger.WithTraceID(context.Background(), "req-42")
	log.WithContext(ctx).Info("handled")
	log.WithContext(context.Background()).Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=req-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutputAndModuleLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	cfg := &logger.LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{"datastore": "trace"},
	}

	central, err := logger.NewCentralLogger(cfg)
	require.NoError(t, err)

	central.Module("datastore").Trace("sql query", logger.String("sql", "SELECT 1"))
	central.Module("annotation").Debug("suppressed by default level")
	central.Module("annotation").Info("annotation confirmed", logger.Uint64("annotation_id", 5))
	require.NoError(t, central.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "TRACE", first["level"])
	assert.Equal(t, "datastore", first["module"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "annotation confirmed", second["msg"])
	assert.InDelta(t, 5, second["annotation_id"], 0)
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Nowhere/Atlantis"})
	require.Error(t, err)

	_, err = logger.NewCentralLogger(nil)
	require.Error(t, err)
}

func TestRootModulesUseConfiguredLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{"inventory": "debug"},
	})
	require.NoError(t, err)

	root := central.Root()
	root.Module("inventory").Debug("kept by module level")
	root.Module("annotation").Debug("dropped by default level")
	require.NoError(t, central.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept by module level")
}
