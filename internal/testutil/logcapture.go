// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log line with its attributes flattened,
// including those added through Logger.With.
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogCapture is a slog.Handler that keeps every record in memory.
type LogCapture struct {
	sink   *logSink
	attrs  []slog.Attr
	groups []string
	t      *testing.T
}

// NewLogger returns a logger writing into a fresh capture. Records are
// echoed to t.Log when t is not nil.
func NewLogger(t *testing.T) (*slog.Logger, *LogCapture) {
	c := &LogCapture{sink: &logSink{}, t: t}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.attrs)+r.NumAttrs())
	for _, a := range c.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	prefix := strings.Join(c.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		attrs[key] = a.Value.Any()
		return true
	})

	c.sink.mu.Lock()
	c.sink.records = append(c.sink.records, LogRecord{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})
	c.sink.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.attrs = append(append([]slog.Attr{}, c.attrs...), attrs...)
	return &next
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	next := *c
	next.groups = append(append([]string{}, c.groups...), name)
	return &next
}

// Records returns a copy of everything captured so far.
func (c *LogCapture) Records() []LogRecord {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return append([]LogRecord(nil), c.sink.records...)
}

// Find returns the first record at level whose message contains msg.
func (c *LogCapture) Find(level slog.Level, msg string) (LogRecord, bool) {
	for _, r := range c.Records() {
		if r.Level == level && strings.Contains(r.Message, msg) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// AssertLogged fails t unless a record at level contains msg, and returns
// that record for further checks.
func AssertLogged(t *testing.T, c *LogCapture, level slog.Level, msg string) LogRecord {
	t.Helper()
	r, ok := c.Find(level, msg)
	if !ok {
		t.Errorf("no %s log containing %q", level, msg)
		for _, rec := range c.Records() {
			t.Logf("  [%s] %s %v", rec.Level, rec.Message, rec.Attrs)
		}
	}
	return r
}

// AssertNoErrors fails t if anything was logged at error level.
func AssertNoErrors(t *testing.T, c *LogCapture) {
	t.Helper()
	for _, r := range c.Records() {
		if r.Level >= slog.LevelError {
			t.Errorf("unexpected error log: %s %v", r.Message, r.Attrs)
		}
	}
}
