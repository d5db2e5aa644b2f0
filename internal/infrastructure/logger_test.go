package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"integralq/internal/config"
)

func TestCreateLoggerInjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := createLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "console"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "abc-123")
	logger.InfoContext(ctx, "cleaned file", slog.String("file", "sales.csv"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cleaned file", entry["msg"])
	assert.Equal(t, "abc-123", entry["trace_id"])
	assert.Equal(t, "sales.csv", entry["file"])
}

func TestCreateLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := createLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "console"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCreateLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	var buf bytes.Buffer

	logger, err := createLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "both", FilePath: path}, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseLogFile() })

	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.FileExists(t, path)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestContextHandlerPrefersSpan(t *testing.T) {
	var buf bytes.Buffer
	logger, err := createLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "console"}, &buf)
	require.NoError(t, err)

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(WithTraceID(context.Background(), "req-1"), sc)

	logger.InfoContext(ctx, "merged")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, tid.String(), entry["trace_id"])
	assert.Equal(t, sid.String(), entry["span_id"])
	assert.Equal(t, tid.String(), GetTraceID(ctx))
}

func TestFileOutputRequiresPath(t *testing.T) {
	_, err := createLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "file"}, io.Discard)
	assert.Error(t, err)
}
