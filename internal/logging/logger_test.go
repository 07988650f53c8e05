package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "plan-extractor", "warn")

	logger.Info("skipped")
	logger.Warn("page failed", "page", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "page failed", entry["msg"])
	assert.Equal(t, "plan-extractor", entry["service"])
	assert.EqualValues(t, 3, entry["page"])
}

func TestStdioLogger(t *testing.T) {
	var buf bytes.Buffer
	NewStdioLogger(&buf, "plan-extractor", "info").Error("dropped")
	assert.Zero(t, buf.Len())

	NewStdioLogger(&buf, "plan-extractor", "debug").Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}
