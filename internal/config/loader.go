package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from several sources. From lowest to highest
// priority:
//  1. Default values (in code)
//  2. base.yaml
//  3. <environment>.yaml
//  4. local.yaml (development only)
//  5. Environment variables
type Loader struct {
	basePath    string
	environment Environment
	sources     []string
	fileLoaders []FileLoader
	getenv      func(string) string
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a loader reading files from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}

	l := &Loader{
		basePath:    basePath,
		environment: env,
		getenv:      os.Getenv,
	}
	// Order decides which file wins when several extensions exist.
	l.RegisterLoader(&YAMLLoader{})
	l.RegisterLoader(&JSONLoader{})

	return l
}

// RegisterLoader adds a file format.
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders = append(l.fileLoaders, loader)
}

// Load reads every source and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.sources = l.sources[:0]

	cfg := l.defaultConfig()
	l.sources = append(l.sources, "defaults")

	if err := l.loadFile("base", cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load local config: %v\n", err)
		}
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")

	// Files may not move the process to another environment.
	cfg.Environment = l.environment
	cfg.LoadedFrom = append([]string(nil), l.sources...)
	cfg.Version = "1.0.0"

	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Sources lists where the last Load read configuration from.
func (l *Loader) Sources() []string {
	return l.sources
}

// loadFile loads name.<ext> for the first registered extension that exists.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, name+"."+loader.Extension())

		if err := l.decodeFile(path, loader, cfg); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		l.sources = append(l.sources, path)
		return nil
	}

	return os.ErrNotExist
}

func (l *Loader) decodeFile(path string, loader FileLoader, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := loader.Load(file, cfg); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	if val := l.getenv("HOST_PORT"); val != "" {
		host, port, err := net.SplitHostPort(val)
		if err != nil {
			return fmt.Errorf("invalid HOST_PORT %q: %w", val, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid HOST_PORT %q: port is not a number", val)
		}
		cfg.Server.Host = host
		cfg.Server.Port = p
	}
	if val := l.getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := l.getenv("SERVER_PORT"); val != "" {
		if port := parseInt(val); port > 0 {
			cfg.Server.Port = port
		}
	}

	if val := l.getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := l.getenv("LOG_FORMAT"); val != "" {
		cfg.Logging.Format = strings.ToLower(val)
	}

	if val := l.getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}
	if val := l.getenv("TRACING_ENABLED"); val != "" {
		cfg.Tracing.Enabled = parseBool(val)
	}
	if val := l.getenv("TRACING_SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Tracing.SampleRate = rate
		}
	}

	if val := l.getenv("WS_OUTBOUND_QUEUE_SIZE"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid WS_OUTBOUND_QUEUE_SIZE %q: %w", val, err)
		}
		cfg.WebSocket.OutboundQueueSize = size
	}
	if val := l.getenv("WS_OVERFLOW_POLICY"); val != "" {
		cfg.WebSocket.OverflowPolicy = strings.ToLower(val)
	}

	if val := l.getenv("COMPUTE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid COMPUTE_TIMEOUT %q: %w", val, err)
		}
		cfg.Compute.Timeout = d
	}

	return nil
}

// defaultConfig returns a configuration the server can run with when no file
// or variable is present.
func (l *Loader) defaultConfig() *Config {
	return &Config{
		Environment: l.environment,
		Server: Server{
			Host:              "127.0.0.1",
			Port:              9000,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestTimeout:    30 * time.Second,
			MaxRequestSize:    10 * 1024 * 1024, // 10MB
		},
		WebSocket: WebSocket{
			OutboundQueueSize: 4096,
			OverflowPolicy:    "close",
			RegistryShards:    32,
			ReadLimit:         1 << 20,
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			WriteTimeout:      10 * time.Second,
			PingInterval:      30 * time.Second,
		},
		SSE: SSE{
			Interval:  5 * time.Second,
			KeepAlive: 15 * time.Second,
			Retry:     500 * time.Millisecond,
		},
		Compute: Compute{
			Timeout:             30 * time.Second,
			MatrixSize:          100,
			SettleDelay:         500 * time.Millisecond,
			BrewCups:            3,
			BoilDelay:           100 * time.Millisecond,
			CupDelay:            50 * time.Millisecond,
			BreakerFailures:     5,
			BreakerOpenDuration: 30 * time.Second,
		},
		Logging: Logging{
			Level: "info",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: Tracing{
			ServiceName: "echo-server",
			SampleRate:  1.0,
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		},
	}
}

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	return yaml.NewDecoder(reader).Decode(target)
}

func (y *YAMLLoader) Extension() string {
	return "yaml"
}

// JSONLoader loads configuration from JSON files. Durations are nanoseconds.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string {
	return "json"
}

func parseInt(s string) int {
	val, _ := strconv.Atoi(s)
	return val
}

func parseBool(s string) bool {
	val, _ := strconv.ParseBool(s)
	return val
}

// GetEnvironment returns the environment named by ENVIRONMENT, defaulting to
// development.
func GetEnvironment() Environment {
	if env := Environment(strings.ToLower(os.Getenv("ENVIRONMENT"))); env != "" {
		return env
	}
	return Development
}

// ConfigDir returns the directory configuration files are read from.
func ConfigDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}

// Load loads configuration for the current environment.
func Load() (*Config, error) {
	return NewLoader(ConfigDir(), GetEnvironment()).Load()
}
