package config

import "time"

// Log format constants
const (
	// LogFormatJSON emits one JSON object per entry
	LogFormatJSON = "json"
	// LogFormatText emits human readable console entries
	LogFormatText = "text"
)

// Config is the root configuration structure of an apimate service
type Config struct {
	Service       ServiceConfig
	HTTP          HTTPConfig
	MongoDB       MongoDBConfig `mapstructure:"mongodb"`
	Catalog       CatalogConfig
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
	Observability ObservabilityConfig
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds each resource request, store calls included.
	// Zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// BasePath prefixes every resource route, e.g. "/api/v1".
	BasePath string `mapstructure:"base_path"`
	// Router selects the HTTP router adapter: gin or gorilla.
	Router string `mapstructure:"router"`
	// Compression enables brotli and gzip response encoding.
	Compression bool `mapstructure:"compression"`
}

// MongoDBConfig configures the document store connection
type MongoDBConfig struct {
	URL              string        `mapstructure:"url" secret:"true"`
	Database         string        `mapstructure:"database"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxPoolSize      uint64        `mapstructure:"max_pool_size"`
}

// CatalogConfig locates the resource definitions served by the API
type CatalogConfig struct {
	// File is a YAML document of resource schemas, see query.LoadDefinitions.
	File string `mapstructure:"file"`
}

// RateLimitConfig limits resource requests per client IP. With a Redis URL
// the counters are shared by every replica; otherwise each process keeps
// its own token buckets.
type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	Burst             int    `mapstructure:"burst"`
	RedisURL          string `mapstructure:"redis_url" secret:"true"`
	RedisPrefix       string `mapstructure:"redis_prefix"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "apimate",
			Environment: "production",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			Router:          "gin",
			Compression:     true,
		},
		MongoDB: MongoDBConfig{
			URL:              "mongodb://localhost:27017",
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 5 * time.Second,
			MaxPoolSize:      100,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			RedisPrefix:       "apimate:ratelimit",
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         LogFormatJSON,
			MetricsEnabled:    true,
			TracingSampleRate: 0.1,
		},
	}
}
