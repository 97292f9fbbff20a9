package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"echo-server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewLoader(t.TempDir(), config.Staging).Load()
	require.NoError(t, err)
	return cfg
}

func TestInitializeContainer(t *testing.T) {
	container, err := InitializeContainer(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	container.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPut, "/echo/anything", nil)
	rr = httptest.NewRecorder()
	container.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"method":"PUT"`)
}

func TestContainerDrainFailsReadiness(t *testing.T) {
	container, err := InitializeContainer(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	container.Drain()

	rr := httptest.NewRecorder()
	container.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLogLevelIsAdjustable(t *testing.T) {
	container, err := InitializeContainer(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	assert.False(t, container.Logger.Core().Enabled(zapcore.DebugLevel))
	container.LogLevel.SetLevel(zapcore.DebugLevel)
	assert.True(t, container.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestProvideSessionManagerRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.WebSocket.OverflowPolicy = "explode"

	_, err := ProvideSessionManager(cfg, ProvideCollector(cfg), nil)
	assert.Error(t, err)
}
