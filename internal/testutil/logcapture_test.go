package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCaptureKeepsWithAttrs(t *testing.T) {
	logger, logs := NewLogger(nil)
	logger.With(slog.String("component", "cleaner")).
		WithGroup("file").
		Warn("dropped rows", slog.Int("count", 3))
	logger.Info("done")

	records := logs.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "cleaner", records[0].Attrs["component"])
	assert.Equal(t, int64(3), records[0].Attrs["file.count"])

	r := AssertLogged(t, logs, slog.LevelWarn, "dropped")
	assert.Equal(t, "dropped rows", r.Message)

	_, ok := logs.Find(slog.LevelError, "done")
	assert.False(t, ok)
	AssertNoErrors(t, logs)
}
