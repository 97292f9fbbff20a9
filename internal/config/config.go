// Package config holds the echo server configuration and the layered loader
// that builds it from code defaults, configuration files and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Environment names a deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// IsValid reports whether e is a known environment.
func (e Environment) IsValid() bool {
	switch e {
	case Development, Staging, Production:
		return true
	}
	return false
}

// Config is the complete server configuration.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment"`

	Server    Server    `yaml:"server" json:"server"`
	WebSocket WebSocket `yaml:"websocket" json:"websocket"`
	SSE       SSE       `yaml:"sse" json:"sse"`
	Compute   Compute   `yaml:"compute" json:"compute"`
	Logging   Logging   `yaml:"logging" json:"logging"`
	Metrics   Metrics   `yaml:"metrics" json:"metrics"`
	Tracing   Tracing   `yaml:"tracing" json:"tracing"`
	CORS      CORS      `yaml:"cors" json:"cors"`

	// Populated by the loader.
	Version    string   `yaml:"-" json:"-"`
	LoadedFrom []string `yaml:"-" json:"-"`
}

// Server configures the HTTP listener.
type Server struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// WriteTimeout stays at zero by default: /ws and /sse hold the response
	// open indefinitely.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxRequestSize    int64         `yaml:"max_request_size" json:"max_request_size"`
}

// Address returns the host:port pair to listen on.
func (s Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WebSocket configures echo sessions.
type WebSocket struct {
	// OutboundQueueSize bounds each session's outbound queue; 0 is unbounded.
	OutboundQueueSize int    `yaml:"outbound_queue_size" json:"outbound_queue_size"`
	OverflowPolicy    string `yaml:"overflow_policy" json:"overflow_policy"`

	RegistryShards  int           `yaml:"registry_shards" json:"registry_shards"`
	ReadLimit       int64         `yaml:"read_limit" json:"read_limit"`
	ReadBufferSize  int           `yaml:"read_buffer_size" json:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" json:"write_buffer_size"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval" json:"ping_interval"`
}

// SSE configures the heartbeat stream.
type SSE struct {
	Interval  time.Duration `yaml:"interval" json:"interval"`
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
	Retry     time.Duration `yaml:"retry" json:"retry"`
}

// Compute configures the /expensive pipeline.
type Compute struct {
	// Timeout bounds a whole pipeline run; 0 disables it.
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MatrixSize  int           `yaml:"matrix_size" json:"matrix_size"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`

	BrewCups  int           `yaml:"brew_cups" json:"brew_cups"`
	BoilDelay time.Duration `yaml:"boil_delay" json:"boil_delay"`
	CupDelay  time.Duration `yaml:"cup_delay" json:"cup_delay"`

	BreakerFailures     uint32        `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerOpenDuration time.Duration `yaml:"breaker_open_duration" json:"breaker_open_duration"`
}

// Logging configures zap.
type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`
}

// CORS configures cross-origin access.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if !c.Environment.IsValid() {
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.WebSocket.OutboundQueueSize < 0 {
		errs = append(errs, errors.New("websocket.outbound_queue_size must not be negative"))
	}
	switch strings.ToLower(c.WebSocket.OverflowPolicy) {
	case "", "block", "drop_oldest", "close":
	default:
		errs = append(errs, fmt.Errorf("websocket.overflow_policy %q is not one of block, drop_oldest, close", c.WebSocket.OverflowPolicy))
	}
	if c.WebSocket.PingInterval < 0 {
		errs = append(errs, errors.New("websocket.ping_interval must not be negative"))
	}

	if c.SSE.Interval <= 0 {
		errs = append(errs, errors.New("sse.interval must be positive"))
	}

	if c.Compute.Timeout < 0 {
		errs = append(errs, errors.New("compute.timeout must not be negative"))
	}
	if c.Compute.MatrixSize < 0 {
		errs = append(errs, errors.New("compute.matrix_size must not be negative"))
	}
	if c.Compute.BrewCups < 0 {
		errs = append(errs, errors.New("compute.brew_cups must not be negative"))
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

// applyEnvironmentDefaults fills values that depend on the environment and
// were left empty by every source.
func (c *Config) applyEnvironmentDefaults() {
	if c.Logging.Format == "" {
		if c.IsProduction() {
			c.Logging.Format = "json"
		} else {
			c.Logging.Format = "console"
		}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "echo-server"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}
