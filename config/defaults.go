package config

import "time"

// DefaultConfig is the baseline every other source merges over: a
// development daemon watching interrupt and terminate, API on :8484,
// metrics on :9464, tracing off.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "sigmux",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Watch: WatchConfig{
			Kinds: []string{"interrupt", "terminate"},
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8484,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
			},
			WebSocket: WebSocketConfig{
				MaxConnections: 100,
				PingInterval:   30 * time.Second,
				PongTimeout:    10 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9464,
		},
		Tracing: TracingConfig{
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
	}
}
