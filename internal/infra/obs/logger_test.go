package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn", slog.LevelInfo))
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG ", slog.LevelInfo))
	assert.Equal(t, slog.LevelError+2, ParseLevel("error+2", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, ParseLevel("", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud", slog.LevelInfo))
}

func TestProductionLoggerWritesTaggedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", "warn")

	logger.Info("dropped")
	logger.Warn("kept", "booking_id", "b-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "staykeeper", line["service"])
	assert.Equal(t, "prod", line["env"])
	assert.Equal(t, "b-1", line["booking_id"])
}
