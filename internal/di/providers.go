// Package di assembles the server's components. The injector in wire.go is
// compiled by Wire into wire_gen.go.
package di

import (
	"context"
	"fmt"

	"echo-server/internal/config"
	"echo-server/internal/infrastructure/concurrency"
	"echo-server/internal/infrastructure/observability"
	"echo-server/internal/interfaces/http/rest"
	"echo-server/internal/interfaces/http/rest/handlers"
	"echo-server/internal/interfaces/sse"
	"echo-server/internal/interfaces/websocket"
	"echo-server/internal/middleware"
	"echo-server/internal/service/compute"
	"echo-server/internal/service/echo"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogLevel parses the configured level into an AtomicLevel so it can
// be changed while the server runs.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return zap.AtomicLevel{}, err
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates the root logger.
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Logging.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", string(cfg.Environment))), nil
}

// ProvideCollector creates the Prometheus collector.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracerProvider initializes OpenTelemetry.
func ProvideTracerProvider(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	return observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.Version,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
}

// ProvideTracer returns the application tracer.
func ProvideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// ProvidePipeline creates the /expensive computation pipeline.
func ProvidePipeline(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector, tracer trace.Tracer) *compute.Pipeline {
	return compute.NewPipeline(compute.Config{
		Timeout:     cfg.Compute.Timeout,
		MatrixSize:  cfg.Compute.MatrixSize,
		SettleDelay: cfg.Compute.SettleDelay,
		BrewCups:    cfg.Compute.BrewCups,
		BoilDelay:   cfg.Compute.BoilDelay,
		CupDelay:    cfg.Compute.CupDelay,
	}, logger, metrics, compute.WithTracer(tracer))
}

// ProvideSessionManager creates the WebSocket session manager.
func ProvideSessionManager(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (*websocket.Manager, error) {
	policy, err := concurrency.ParseOverflowPolicy(cfg.WebSocket.OverflowPolicy)
	if err != nil {
		return nil, fmt.Errorf("websocket: %w", err)
	}
	return websocket.NewManager(websocket.ManagerConfig{
		OutboundQueueSize: cfg.WebSocket.OutboundQueueSize,
		OverflowPolicy:    policy,
		Shards:            cfg.WebSocket.RegistryShards,
	}, metrics, logger), nil
}

// ProvideWebSocketHandler creates the /ws handler.
func ProvideWebSocketHandler(cfg *config.Config, manager *websocket.Manager, metrics *observability.Collector, logger *zap.Logger) *websocket.Handler {
	return websocket.NewHandler(manager, websocket.HandlerConfig{
		ReadLimit:       cfg.WebSocket.ReadLimit,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		PingInterval:    cfg.WebSocket.PingInterval,
	}, metrics, logger)
}

// ProvideSSEHandler creates the /sse handler.
func ProvideSSEHandler(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) *sse.Handler {
	return sse.NewHandler(sse.Config{
		Interval:  cfg.SSE.Interval,
		KeepAlive: cfg.SSE.KeepAlive,
		Retry:     cfg.SSE.Retry,
	}, metrics, logger)
}

// ProvideEchoService creates the echo service.
func ProvideEchoService(metrics *observability.Collector, logger *zap.Logger) *echo.Service {
	return echo.NewService(metrics, logger)
}

// ProvideEchoHandler creates the echo handler.
func ProvideEchoHandler(cfg *config.Config, service *echo.Service, logger *zap.Logger) *handlers.EchoHandler {
	return handlers.NewEchoHandler(service, cfg.Server.MaxRequestSize, logger)
}

// ProvideExpensiveHandler creates the /expensive handler.
func ProvideExpensiveHandler(pipeline *compute.Pipeline, logger *zap.Logger) *handlers.ExpensiveHandler {
	return handlers.NewExpensiveHandler(pipeline, logger)
}

// ProvideHealthHandler creates the health handler.
func ProvideHealthHandler(cfg *config.Config, manager *websocket.Manager) *handlers.HealthHandler {
	return handlers.NewHealthHandler(cfg.Version, manager.Len)
}

// ProvideRouter maps configuration onto the HTTP router.
func ProvideRouter(
	cfg *config.Config,
	echoHandler *handlers.EchoHandler,
	expensive *handlers.ExpensiveHandler,
	health *handlers.HealthHandler,
	ws *websocket.Handler,
	sseHandler *sse.Handler,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *rest.Router {
	breaker := middleware.DefaultCircuitBreakerConfig("expensive")
	breaker.ConsecutiveFailures = cfg.Compute.BreakerFailures
	if cfg.Compute.BreakerOpenDuration > 0 {
		breaker.Timeout = cfg.Compute.BreakerOpenDuration
	}

	return rest.NewRouter(rest.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		CORS: cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
			MaxAge:         cfg.CORS.MaxAge,
		},
		Breaker: breaker,
	}, echoHandler, expensive, health, ws, sseHandler, metrics, tracer, logger)
}

// ProvideHTTPHandler builds the route tree.
func ProvideHTTPHandler(router *rest.Router) *chi.Mux {
	return router.Setup()
}
