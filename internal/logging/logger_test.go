package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gmpsched/internal/ctxutil"
)

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Service: "gmpsched", Version: "test", Output: &buf})

	log.WithSession("s-1").
		WithComponent("scheduler").
		WithContext(ctxutil.WithOperator(context.Background(), "qa-lead")).
		Info("state changed", "to", "validation")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "state changed", entry["msg"])
	assert.Equal(t, "gmpsched", entry["service"])
	assert.Equal(t, "s-1", entry["session"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "qa-lead", entry["operator"])
	assert.Equal(t, "validation", entry["to"])

	ts, ok := entry["time"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
