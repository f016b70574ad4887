// Package config loads, validates and hot-reloads the sigmux
// configuration from files, the environment and flag overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration of the sigmux daemon.
type Config struct {
	App     AppConfig     `mapstructure:"app" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Watch   WatchConfig   `mapstructure:"watch" validate:"required"`
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig names the process and its runtime environment.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"env"`
	Debug       bool   `mapstructure:"debug"`
}

// LogConfig selects log level, encoding and destination. Output is
// "stdout", "stderr" or a file path.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output"`
}

// WatchConfig selects which signal kinds the daemon subscribes to.
// LogEvery throttles per-kind occurrence logging; zero logs every
// occurrence.
type WatchConfig struct {
	Kinds    []string      `mapstructure:"kinds" validate:"min=1,dive,signalkind"`
	LogEvery time.Duration `mapstructure:"log_every" validate:"min=0"`
}

// ServerConfig configures the HTTP observation surface.
type ServerConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port" validate:"required,min=1,max=65535"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	CORS      CORSConfig      `mapstructure:"cors"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// HTTPConfig carries the timeouts and limits handed to net/http.
type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" validate:"min=0"`
}

// CORSConfig configures cross-origin access to the HTTP API. MaxAge
// is the preflight cache lifetime in seconds.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

// WebSocketConfig bounds the event stream. An empty AllowedOrigins
// admits same-origin upgrades only; MaxConnections zero means
// unlimited.
type WebSocketConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxConnections int           `mapstructure:"max_connections" validate:"min=0"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout"`
}

// MetricsConfig exposes Prometheus metrics on a dedicated port.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig configures span export. SampleRate only applies to
// the "ratio" sampler.
type TracingConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	Exporter   string            `mapstructure:"exporter" validate:"oneof=otlpgrpc"`
	Endpoint   string            `mapstructure:"endpoint"`
	Timeout    time.Duration     `mapstructure:"timeout" validate:"min=0"`
	Sampler    string            `mapstructure:"sampler" validate:"oneof=always_on always_off ratio"`
	SampleRate float64           `mapstructure:"sample_rate" validate:"min=0,max=1"`
	Headers    map[string]string `mapstructure:"headers"`
}

// Validate checks the configuration against its struct tags and the
// registered custom validators.
func (c *Config) Validate() error {
	return ValidateWithDetails(c)
}

// Addr returns the host:port the HTTP API binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Env: %s, Watch: %v, Server: :%d}",
		c.App.Name, c.App.Environment, c.Watch.Kinds, c.Server.Port)
}
