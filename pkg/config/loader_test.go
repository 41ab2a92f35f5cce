package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.MongoDB.Database = "shop"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "apimate" {
		t.Errorf("expected service name apimate, got %s", cfg.Service.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.MongoDB.ConnectTimeout != 10*time.Second {
		t.Errorf("expected connect timeout 10s, got %v", cfg.MongoDB.ConnectTimeout)
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != LogFormatJSON {
		t.Errorf("expected info/json logging, got %s/%s", cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	}
	if cfg.Observability.TracingEnabled {
		t.Error("expected tracing to be disabled by default")
	}
}

func TestViperLoader_LoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
service:
  name: catalog-api
http:
  port: 9000
  base_path: /api/v1/
  router: gorilla
mongodb:
  url: mongodb://db:27017
  database: shop
  operation_timeout: 2s
catalog:
  file: resources.yaml
observability:
  log_level: debug
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SHOP_HTTP_PORT", "9100")
	t.Setenv("SHOP_LOG_FORMAT", "text")
	t.Setenv("SHOP_RATE_LIMIT_ENABLED", "true")

	cfg, err := NewViperLoader(file, "shop").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Service.Name != "catalog-api" {
		t.Errorf("service name = %s, want catalog-api", cfg.Service.Name)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("port = %d, want the env override 9100", cfg.HTTP.Port)
	}
	if cfg.HTTP.Router != "gorilla" {
		t.Errorf("router = %s, want gorilla", cfg.HTTP.Router)
	}
	if cfg.HTTP.BasePath != "/api/v1" {
		t.Errorf("base path = %q, want /api/v1", cfg.HTTP.BasePath)
	}
	if cfg.MongoDB.URL != "mongodb://db:27017" || cfg.MongoDB.Database != "shop" {
		t.Errorf("mongodb = %+v", cfg.MongoDB)
	}
	if cfg.MongoDB.OperationTimeout != 2*time.Second {
		t.Errorf("operation timeout = %v, want 2s", cfg.MongoDB.OperationTimeout)
	}
	if cfg.MongoDB.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout = %v, want the default", cfg.MongoDB.ConnectTimeout)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RequestsPerSecond != 50 {
		t.Errorf("rate limit = %+v, want enabled with the default rate", cfg.RateLimit)
	}
	if cfg.Catalog.File != "resources.yaml" {
		t.Errorf("catalog file = %s", cfg.Catalog.File)
	}
	if cfg.Observability.LogLevel != "debug" || cfg.Observability.LogFormat != "text" {
		t.Errorf("observability = %+v", cfg.Observability)
	}
}

func TestViperLoader_DefaultPrefix(t *testing.T) {
	t.Setenv("APIMATE_MONGODB_DATABASE", "inventory")

	cfg, err := NewViperLoader("", "").WithServiceNameDefault("inventory-api").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MongoDB.Database != "inventory" {
		t.Errorf("database = %s, want inventory", cfg.MongoDB.Database)
	}
	if cfg.Service.Name != "inventory-api" {
		t.Errorf("service name = %s, want inventory-api", cfg.Service.Name)
	}
}

func TestViperLoader_EnvForEveryKey(t *testing.T) {
	t.Setenv("APIMATE_MONGODB_DATABASE", "shop")
	t.Setenv("APIMATE_MONGODB_MAX_POOL_SIZE", "16")
	t.Setenv("APIMATE_RATE_LIMIT_REDIS_PREFIX", "shop:rl")
	t.Setenv("APIMATE_OBSERVABILITY_LOG_LEVEL", "warn")
	t.Setenv("APIMATE_HTTP_REQUEST_TIMEOUT", "3s")

	cfg, err := NewViperLoader("", "").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MongoDB.MaxPoolSize != 16 {
		t.Errorf("max pool size = %d, want 16", cfg.MongoDB.MaxPoolSize)
	}
	if cfg.RateLimit.RedisPrefix != "shop:rl" {
		t.Errorf("redis prefix = %q", cfg.RateLimit.RedisPrefix)
	}
	if cfg.Observability.LogLevel != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Observability.LogLevel)
	}
	if cfg.HTTP.RequestTimeout != 3*time.Second {
		t.Errorf("request timeout = %v, want 3s", cfg.HTTP.RequestTimeout)
	}
}

func TestSettings_CoversConfig(t *testing.T) {
	keys := settings(reflect.ValueOf(DefaultConfig()).Elem(), "")
	for _, key := range []string{"service.name", "http.base_path", "mongodb.max_pool_size", "catalog.file", "rate_limit.redis_url", "observability.tracing_endpoint"} {
		if _, ok := keys[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
	if keys["http.port"] != 8080 {
		t.Errorf("http.port default = %v", keys["http.port"])
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	if _, err := NewViperLoader(filepath.Join(t.TempDir(), "absent.yaml"), "").Load(); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestViperLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing database",
			mutate:  func(c *Config) { c.MongoDB.Database = "" },
			wantErr: []string{"mongodb.database is required"},
		},
		{
			name:    "bad url scheme",
			mutate:  func(c *Config) { c.MongoDB.URL = "postgres://localhost" },
			wantErr: []string{"mongodb.url must be"},
		},
		{
			name: "tracing without endpoint",
			mutate: func(c *Config) {
				c.Observability.TracingEnabled = true
				c.Observability.TracingSampleRate = 2
			},
			wantErr: []string{"tracing_endpoint is required", "tracing_sample_rate must be between 0 and 1"},
		},
		{
			name: "rate limit",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerSecond = 0
				c.RateLimit.RedisURL = "http://cache:6379"
			},
			wantErr: []string{"requests_per_second", "rate_limit.redis_url"},
		},
		{
			name: "every problem reported",
			mutate: func(c *Config) {
				c.HTTP.Port = 0
				c.Observability.LogLevel = "verbose"
				c.Observability.LogFormat = "xml"
				c.HTTP.BasePath = "api"
				c.HTTP.Router = "echo"
			},
			wantErr: []string{"http.port", "log_level", "log_format", "base_path", "http.router"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewViperLoader("", "").Validate(cfg)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.MongoDB.URL = "mongodb://admin:hunter2@db:27017/shop?authSource=admin"
	cfg.RateLimit.RedisURL = "redis://:s3cret@cache:6379/0"

	out := cfg.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "admin:") || strings.Contains(out, "s3cret") {
		t.Fatalf("credentials leaked:\n%s", out)
	}
	if !strings.Contains(out, "url: mongodb://redacted@db:27017/shop") {
		t.Fatalf("expected redacted url with host kept:\n%s", out)
	}
	if !strings.Contains(out, "mongodb:\n") || !strings.Contains(out, "  database: shop") {
		t.Fatalf("expected nested listing:\n%s", out)
	}
}

// Property: ports are accepted exactly within the TCP range
func TestProperty_PortValidation(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	loader := NewViperLoader("", "")

	properties.Property("port valid iff 1..65535", prop.ForAll(
		func(port int) bool {
			cfg := validConfig()
			cfg.HTTP.Port = port
			err := loader.Validate(cfg)
			valid := port >= 1 && port <= 65535
			return (err == nil) == valid
		},
		gen.IntRange(-1000, 70000),
	))

	properties.TestingRun(t)
}
