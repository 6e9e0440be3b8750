package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitText(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)

	New("worker").Info("task done", "model_id", "abc")
	slog.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "component=worker")
	assert.Contains(t, out, "model_id=abc")
	assert.NotContains(t, out, "hidden")
}

func TestInitJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Init(slog.LevelDebug, "json", &buf)
	slog.Debug("debug line", "stage", "SPLIT")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug line", entry["msg"])
	assert.Equal(t, "SPLIT", entry["stage"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
