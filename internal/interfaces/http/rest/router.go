// Package rest wires the HTTP surface: routes, middleware and the handlers
// for echo, WebSocket, SSE, computation, metrics and health endpoints.
package rest

import (
	"net/http"
	"time"

	"echo-server/internal/infrastructure/observability"
	"echo-server/internal/interfaces/http/rest/handlers"
	"echo-server/internal/interfaces/sse"
	"echo-server/internal/interfaces/websocket"
	"echo-server/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds the HTTP settings the router applies.
type Config struct {
	RequestTimeout time.Duration
	MetricsEnabled bool
	MetricsPath    string
	CORS           cors.Options
	Breaker        middleware.CircuitBreakerConfig
}

// Router creates and configures the HTTP router
type Router struct {
	config    Config
	echo      *handlers.EchoHandler
	expensive *handlers.ExpensiveHandler
	health    *handlers.HealthHandler
	ws        *websocket.Handler
	sse       *sse.Handler
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	config Config,
	echo *handlers.EchoHandler,
	expensive *handlers.ExpensiveHandler,
	health *handlers.HealthHandler,
	ws *websocket.Handler,
	sseHandler *sse.Handler,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Router {
	return &Router{
		config:    config,
		echo:      echo,
		expensive: expensive,
		health:    health,
		ws:        ws,
		sse:       sseHandler,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(rt.logger))
	router.Use(observability.TracingMiddleware(rt.tracer))
	router.Use(observability.MetricsMiddleware(rt.metrics))
	router.Use(middleware.Logger(rt.logger))
	router.Use(cors.Handler(rt.config.CORS))

	router.Get("/", rt.echo.Index)

	router.Get("/health", rt.health.Health)
	router.Get("/ready", rt.health.Ready)

	if rt.config.MetricsEnabled {
		path := rt.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Method(http.MethodGet, path, rt.metrics.Handler())
	}

	router.Method(http.MethodGet, "/ws", rt.ws)
	router.Method(http.MethodGet, "/sse", rt.sse)

	router.Group(func(r chi.Router) {
		r.Use(middleware.CircuitBreaker(rt.config.Breaker, rt.logger))
		r.Get("/expensive", rt.expensive.Compute)
		r.Post("/expensive", rt.expensive.Compute)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Deadline(rt.config.RequestTimeout))
		r.HandleFunc("/echo", rt.echo.Echo)
		r.HandleFunc("/echo/*", rt.echo.Echo)
	})

	// Everything else is echoed back with 404.
	router.NotFound(rt.echo.NotFound)
	router.MethodNotAllowed(rt.echo.NotFound)

	return router
}
