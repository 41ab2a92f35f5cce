package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes environment variables when no prefix is given.
const DefaultEnvPrefix = "APIMATE"

// envAliases are extra, shorter variable names accepted for some keys, after
// the canonical <PREFIX>_<KEY> one.
var envAliases = map[string]string{
	"service.environment":               "ENVIRONMENT",
	"observability.log_level":           "LOG_LEVEL",
	"observability.log_format":          "LOG_FORMAT",
	"observability.metrics_enabled":     "METRICS_ENABLED",
	"observability.tracing_enabled":     "TRACING_ENABLED",
	"observability.tracing_sample_rate": "TRACING_SAMPLE_RATE",
	"observability.tracing_endpoint":    "TRACING_ENDPOINT",
}

// Loader loads and validates a Config.
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader reads defaults, then the optional file, then the environment.
// Every key of Config can be set as <PREFIX>_<SECTION>_<KEY>, for example
// APIMATE_MONGODB_URL or APIMATE_RATE_LIMIT_BURST.
type ViperLoader struct {
	configFile  string
	envPrefix   string
	serviceName string
}

// NewViperLoader reads configFile when it is not empty. An empty envPrefix
// means DefaultEnvPrefix.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	prefix := strings.ToUpper(strings.TrimSpace(envPrefix))
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &ViperLoader{configFile: configFile, envPrefix: prefix}
}

// WithServiceNameDefault replaces the default service.name; file and
// environment still override it.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	l.serviceName = strings.TrimSpace(serviceName)
	return l
}

func (l *ViperLoader) Load() (*Config, error) {
	defaults := DefaultConfig()
	if l.serviceName != "" {
		defaults.Service.Name = l.serviceName
	}

	v := viper.New()
	for key, value := range settings(reflect.ValueOf(defaults).Elem(), "") {
		v.SetDefault(key, value)
		names := []string{key, l.envName(strings.ReplaceAll(key, ".", "_"))}
		if alias, ok := envAliases[key]; ok {
			names = append(names, l.envName(alias))
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (l *ViperLoader) envName(suffix string) string {
	return l.envPrefix + "_" + strings.ToUpper(suffix)
}

// settings flattens a config struct into dotted keys named like the
// mapstructure tags.
func settings(v reflect.Value, prefix string) map[string]any {
	out := make(map[string]any)
	t := v.Type()
	for i := range t.NumField() {
		key := prefix + fieldKey(t.Field(i))
		if f := v.Field(i); f.Kind() == reflect.Struct {
			for k, val := range settings(f, key+".") {
				out[k] = val
			}
		} else {
			out[key] = f.Interface()
		}
	}
	return out
}

func fieldKey(f reflect.StructField) string {
	if tag := f.Tag.Get("mapstructure"); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(f.Name)
}

// Validate normalizes the base path and reports every problem at once.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	cfg.HTTP.BasePath = strings.TrimRight(strings.TrimSpace(cfg.HTTP.BasePath), "/")
	check(cfg.HTTP.BasePath == "" || strings.HasPrefix(cfg.HTTP.BasePath, "/"),
		"http.base_path must start with /: %q", cfg.HTTP.BasePath)
	check(cfg.HTTP.Port >= 1 && cfg.HTTP.Port <= 65535,
		"http.port must be between 1 and 65535, got %d", cfg.HTTP.Port)
	check(oneOf(cfg.HTTP.Router, "gin", "gorilla"),
		"http.router must be gin or gorilla, got %q", cfg.HTTP.Router)
	check(min(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout, cfg.HTTP.RequestTimeout) >= 0,
		"http timeouts cannot be negative")

	if strings.TrimSpace(cfg.MongoDB.URL) == "" {
		errs = append(errs, errors.New("mongodb.url is required"))
	} else {
		check(hasScheme(cfg.MongoDB.URL, "mongodb", "mongodb+srv"),
			"mongodb.url must be a mongodb:// or mongodb+srv:// URL")
	}
	check(strings.TrimSpace(cfg.MongoDB.Database) != "", "mongodb.database is required")
	check(cfg.MongoDB.ConnectTimeout > 0, "mongodb.connect_timeout must be greater than 0")
	check(cfg.MongoDB.OperationTimeout >= 0, "mongodb.operation_timeout cannot be negative")

	if rl := cfg.RateLimit; rl.Enabled {
		check(rl.RequestsPerSecond > 0, "rate_limit.requests_per_second must be greater than 0")
		check(rl.Burst >= 0, "rate_limit.burst cannot be negative")
		check(rl.RedisURL == "" || hasScheme(rl.RedisURL, "redis", "rediss"),
			"rate_limit.redis_url must be a redis:// or rediss:// URL")
	}

	obs := cfg.Observability
	check(oneOf(obs.LogLevel, "debug", "info", "warn", "error"),
		"observability.log_level must be debug, info, warn or error, got %q", obs.LogLevel)
	check(oneOf(obs.LogFormat, LogFormatJSON, LogFormatText),
		"observability.log_format must be json or text, got %q", obs.LogFormat)
	if obs.TracingEnabled {
		check(strings.TrimSpace(obs.TracingEndpoint) != "",
			"observability.tracing_endpoint is required when tracing is enabled")
		check(obs.TracingSampleRate >= 0 && obs.TracingSampleRate <= 1,
			"observability.tracing_sample_rate must be between 0 and 1")
	}

	return errors.Join(errs...)
}

func oneOf(value string, allowed ...string) bool {
	return slices.Contains(allowed, strings.ToLower(value))
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	return err == nil && slices.Contains(schemes, u.Scheme)
}
