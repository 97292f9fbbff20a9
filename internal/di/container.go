package di

import (
	"context"
	"errors"

	"echo-server/internal/config"
	"echo-server/internal/infrastructure/observability"
	"echo-server/internal/interfaces/http/rest/handlers"
	"echo-server/internal/interfaces/sse"
	"echo-server/internal/interfaces/websocket"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Container holds the assembled server.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Sessions *websocket.Manager
	SSE      *sse.Handler
	Health   *handlers.HealthHandler
	Router   *chi.Mux
}

// Drain fails readiness probes and ends open event streams. Call it before
// shutting the HTTP server down.
func (c *Container) Drain() {
	c.Health.SetDraining()
	c.SSE.Close()
}

// Shutdown terminates every WebSocket session and flushes pending spans.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Drain()
	c.Sessions.Shutdown()

	var errs []error
	if err := c.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = c.Logger.Sync()
	return errors.Join(errs...)
}
