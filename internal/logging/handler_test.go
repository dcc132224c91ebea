package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatText)

	logger.Info("Visit recorded", "visitor", "3f0c2a9e...", "page", "/")

	assert.Equal(t, "Visit recorded (level=INFO, visitor=3f0c2a9e..., page=/)\n", buf.String())
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug, "JSON")

	logger.Debug("Database initialized", "path", "data/visitors.db")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Database initialized", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "data/visitors.db", entry["path"])
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, FormatText)

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	assert.Equal(t, "shown (level=WARN)\n", buf.String())
}

func TestHandler_QuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatText)

	logger.Error("Failed to record visit", "error", errors.New("database is locked"), "ua", "Mozilla/5.0 (X11)")

	out := buf.String()
	assert.Contains(t, out, "error=database is locked")
	assert.Contains(t, out, `ua="Mozilla/5.0 (X11)"`)
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatText)

	logger.With("component", "recorder").WithGroup("req").Info("Handled", "path", "/", slog.Group("client", "ip", "203.0.113.7"))

	assert.Equal(t, "Handled (level=INFO, component=recorder, req.path=/, req.client.ip=203.0.113.7)\n", buf.String())
}

func TestHandler_ReplaceAttrCanDropMessage(t *testing.T) {
	var buf bytes.Buffer
	h := NewHumanReadableHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey || a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.New(h).Info("ignored", "k", "v")

	assert.Equal(t, "k=v\n", buf.String())
}

func TestHandler_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatText)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				logger.Info("tick", "n", j)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 400)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "tick (level=INFO, n="), l)
	}
}
