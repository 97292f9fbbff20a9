package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"echo-server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// TestLoadDefaults tests that the server runs without any file or variable.
func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader(t.TempDir(), config.Development).Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
	assert.Equal(t, 4096, cfg.WebSocket.OutboundQueueSize)
	assert.Equal(t, "close", cfg.WebSocket.OverflowPolicy)
	assert.Equal(t, 5*time.Second, cfg.SSE.Interval)
	assert.Equal(t, 30*time.Second, cfg.Compute.Timeout)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, []string{"GET", "POST", "DELETE"}, cfg.CORS.AllowedMethods)
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoadProductionUsesJSONLogs(t *testing.T) {
	cfg, err := config.NewLoader(t.TempDir(), config.Production).Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
}

// TestLoadFileLayering tests that later files override earlier ones key by key.
func TestLoadFileLayering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: 8000
sse:
  interval: 2s
logging:
  level: warn
`)
	writeFile(t, dir, "development.yaml", `
server:
  port: 8001
`)
	writeFile(t, dir, "local.json", `{"compute": {"matrix_size": 10}}`)

	cfg, err := config.NewLoader(dir, config.Development).Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 2*time.Second, cfg.SSE.Interval)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Compute.MatrixSize)
	assert.Len(t, cfg.LoadedFrom, 5)
}

func TestLoadSkipsLocalOutsideDevelopment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.yaml", "server:\n  port: 7000\n")

	cfg, err := config.NewLoader(dir, config.Staging).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadEnvironmentVariables(t *testing.T) {
	t.Setenv("HOST_PORT", "0.0.0.0:9100")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("WS_OUTBOUND_QUEUE_SIZE", "0")
	t.Setenv("WS_OVERFLOW_POLICY", "drop_oldest")
	t.Setenv("COMPUTE_TIMEOUT", "2s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: 8000\n")

	cfg, err := config.NewLoader(dir, config.Development).Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9100", cfg.Server.Address())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 0, cfg.WebSocket.OutboundQueueSize)
	assert.Equal(t, "drop_oldest", cfg.WebSocket.OverflowPolicy)
	assert.Equal(t, 2*time.Second, cfg.Compute.Timeout)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
}

func TestLoadServerPortOverridesHostPort(t *testing.T) {
	t.Setenv("HOST_PORT", "0.0.0.0:9100")
	t.Setenv("SERVER_PORT", "9200")

	cfg, err := config.NewLoader(t.TempDir(), config.Development).Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9200", cfg.Server.Address())
}

func TestLoadRejectsBadEnvironmentValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"host port without port", "HOST_PORT", "localhost"},
		{"host port with text port", "HOST_PORT", "localhost:http"},
		{"queue size not a number", "WS_OUTBOUND_QUEUE_SIZE", "lots"},
		{"negative queue size", "WS_OUTBOUND_QUEUE_SIZE", "-1"},
		{"unknown overflow policy", "WS_OVERFLOW_POLICY", "explode"},
		{"bad timeout", "COMPUTE_TIMEOUT", "soon"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.NewLoader(t.TempDir(), config.Development).Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server: [unterminated")

	_, err := config.NewLoader(dir, config.Development).Load()
	assert.Error(t, err)
}

// TestConfigValidation tests configuration validation.
func TestConfigValidation(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.NewLoader(t.TempDir(), config.Development).Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults", func(*config.Config) {}, false},
		{"unknown environment", func(c *config.Config) { c.Environment = "qa" }, true},
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *config.Config) { c.Server.Port = 70000 }, true},
		{"zero sse interval", func(c *config.Config) { c.SSE.Interval = 0 }, true},
		{"negative compute timeout", func(c *config.Config) { c.Compute.Timeout = -time.Second }, true},
		{"disabled compute timeout", func(c *config.Config) { c.Compute.Timeout = 0 }, false},
		{"unbounded queue", func(c *config.Config) { c.WebSocket.OutboundQueueSize = 0 }, false},
		{"sample rate above one", func(c *config.Config) { c.Tracing.SampleRate = 1.5 }, true},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatcherDisabledOutsideDevelopment(t *testing.T) {
	cfg, err := config.NewLoader(t.TempDir(), config.Production).Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(cfg, t.TempDir(), nil, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.False(t, w.Enabled())
	assert.Same(t, cfg, w.GetConfig())
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")

	loader := config.NewLoader(dir, config.Development)
	cfg, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(cfg, dir, loader.Load, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	require.True(t, w.Enabled())

	changed := make(chan *config.Config, 1)
	w.OnChange(func(c *config.Config) {
		select {
		case changed <- c:
		default:
		}
	})

	writeFile(t, dir, "base.yaml", "logging:\n  level: debug\n")

	select {
	case c := <-changed:
		assert.Equal(t, "debug", c.Logging.Level)
		assert.Equal(t, "debug", w.GetConfig().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")

	loader := config.NewLoader(dir, config.Development)
	cfg, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(cfg, dir, loader.Load, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	called := make(chan struct{}, 1)
	w.OnChange(func(*config.Config) { called <- struct{}{} })

	writeFile(t, dir, "base.yaml", "logging:\n  level: shouting\n")

	select {
	case <-called:
		t.Fatal("invalid configuration was applied")
	case <-time.After(1500 * time.Millisecond):
	}
	assert.Equal(t, "info", w.GetConfig().Logging.Level)
}
