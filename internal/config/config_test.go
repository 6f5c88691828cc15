package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "127.0.0.1:8888", cfg.Addr())
}

func TestLoad_file_and_env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsactor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
store:
  driver: sqlite
  dsn: chat.db
log:
  format: json
`), 0o600))

	t.Setenv("WSACTOR_HOST", "0.0.0.0")
	t.Setenv("WSACTOR_LOG_LEVEL", "debug")
	t.Setenv("WSACTOR_STORE_NATS_URL", "nats://nats:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, "chat.db", cfg.Store.DSN)
	require.Equal(t, "nats://nats:4222", cfg.Store.NatsURL)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Store.Driver = "mysql"
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Log.Level = "loud"
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestEnvKey(t *testing.T) {
	require.Equal(t, "store.nats_url", envKey("WSACTOR_STORE_NATS_URL"))
	require.Equal(t, "metrics.enabled", envKey("WSACTOR_METRICS_ENABLED"))
	require.Equal(t, "port", envKey("WSACTOR_PORT"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}
