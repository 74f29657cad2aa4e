package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	log.Debug("tier change", slog.String("metric", "flux"))

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tier change", rec["msg"])
	assert.Equal(t, "flux", rec["metric"])
}

func TestNewTextFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevelFallback(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
}
