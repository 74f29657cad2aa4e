package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.DataPort)
	assert.Equal(t, 8081, cfg.Server.UIPort)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, 360, cfg.Store.Retention)
	assert.Zero(t, cfg.Store.OverlayTimeout)
	assert.Equal(t, "ws://127.0.0.1:8000/ws", cfg.Feed.URL)
	assert.Equal(t, time.Second, cfg.Feed.ReconnectMin)
	assert.Equal(t, "backend", cfg.Simulation.Mode)
	assert.Equal(t, 100*time.Millisecond, cfg.Simulation.Interval)
	assert.Equal(t, "helios_session", cfg.Auth.CookieName)
	assert.False(t, cfg.Alerting.Kafka.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  data_port: 9000
  ui_port: 9001
store:
  retention: 1440
  overlay_timeout: 90s
simulation:
  mode: local
alerting:
  kafka:
    enabled: true
    brokers: ["kafka:9092"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("HELIOS_FEED_URL", "ws://backend:8000/ws")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.DataPort)
	assert.Equal(t, 1440, cfg.Store.Retention)
	assert.Equal(t, 90*time.Second, cfg.Store.OverlayTimeout)
	assert.Equal(t, "local", cfg.Simulation.Mode)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Alerting.Kafka.Brokers)
	assert.Equal(t, "helios.alerts", cfg.Alerting.Kafka.Topic)
	assert.Equal(t, "ws://backend:8000/ws", cfg.Feed.URL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  data_port: 8080
  ui_port: 8080
  allowed_origins: []
store:
  retention: 0
simulation:
  mode: replay
  interval: 0s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
	assert.Contains(t, err.Error(), "store.retention")
	assert.Contains(t, err.Error(), "simulation.mode")
	assert.Contains(t, err.Error(), "server.allowed_origins")
	assert.Contains(t, err.Error(), "simulation.interval")
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unterminated"), 0o600))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "read config")
}
