//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"echo-server/internal/config"

	"github.com/google/wire"
)

// ObservabilityProviders builds logging, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideCollector,
	ProvideTracerProvider,
	ProvideTracer,
)

// ServiceProviders builds the echo, session and computation services.
var ServiceProviders = wire.NewSet(
	ProvideEchoService,
	ProvidePipeline,
	ProvideSessionManager,
)

// InterfaceProviders builds the HTTP, WebSocket and SSE surface.
var InterfaceProviders = wire.NewSet(
	ProvideEchoHandler,
	ProvideExpensiveHandler,
	ProvideHealthHandler,
	ProvideWebSocketHandler,
	ProvideSSEHandler,
	ProvideRouter,
	ProvideHTTPHandler,
)

// SuperSet is the main provider set.
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	ServiceProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "Config", "Logger", "LogLevel", "Metrics", "Tracing", "Sessions", "SSE", "Health", "Router"),
)

// InitializeContainer creates a fully wired container.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
