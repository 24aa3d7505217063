package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "debug"))

	dl.Debug("handling event", "command", ":FIX:", "args", 2)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "handling event", entry["message"])
	assert.Equal(t, ":FIX:", entry["command"])
	assert.Equal(t, float64(2), entry["args"])
	assert.Contains(t, entry, "time")
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Info("queued", "status", "ok")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ok", entry["status"])
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Error("event failed", "error", "queue full")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "queue full", entry["error"])
}

func TestDispatcherLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNewZerolog_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "chatty")

	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
	logger.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDispatcherLogger_Pairs(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want map[string]any
	}{
		{"pairs", []any{"a", 1, "b", "two"}, map[string]any{"a": float64(1), "b": "two"}},
		{"odd trailing key dropped", []any{"a", 1, "b"}, map[string]any{"a": float64(1)}},
		{"non-string key skipped", []any{42, "x", "k", "v"}, map[string]any{"k": "v"}},
		{"error value", []any{"error", errors.New("queue full")}, map[string]any{"error": "queue full"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewDispatcherLogger(zerolog.New(&buf)).Info("m", tt.in...)

			entry := decodeLine(t, &buf)
			delete(entry, "level")
			delete(entry, "message")
			assert.Equal(t, tt.want, entry)
		})
	}
}
