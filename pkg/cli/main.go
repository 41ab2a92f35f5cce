// Package cli is the apimate command line: it serves a resource catalog and
// offers the tooling around it.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/health"
	"github.com/nimburion/apimate/pkg/middleware/ratelimit"
	"github.com/nimburion/apimate/pkg/observability/logger"
	mongostore "github.com/nimburion/apimate/pkg/store/mongodb"
	"github.com/nimburion/apimate/pkg/version"
	"github.com/spf13/cobra"
)

// DefaultName is the command and service name used when none is given.
const DefaultName = "apimate"

const healthcheckTimeout = 5 * time.Second

// CommandOptions customizes the root command.
type CommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// RunServer replaces Serve, mostly for tests.
	RunServer func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	// ValidateConfig runs after the built-in validation.
	ValidateConfig func(cfg *config.Config) error
	CustomCommands []*cobra.Command
}

// app carries the options and persistent flags every subcommand reads.
type app struct {
	opts        CommandOptions
	cfgPath     string
	serviceName string
}

// NewCommand builds the CLI. Without a subcommand it serves.
func NewCommand(opts CommandOptions) *cobra.Command {
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = DefaultName
	}
	if opts.Description == "" {
		opts.Description = "Serve filtered, paginated list endpoints over MongoDB collections"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.RunServer == nil {
		opts.RunServer = Serve
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	root.PersistentFlags().StringVar(&a.serviceName, "service-name", "", "service name override")

	serve := a.serveCommand()
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		a.versionCommand(),
		a.healthcheckCommand(),
		a.configCommand(),
		newExplainCommand(&a.cfgPath, opts.EnvPrefix),
		newSchemaCommand(&a.cfgPath, opts.EnvPrefix),
	)
	root.AddCommand(opts.CustomCommands...)
	return root
}

// Execute runs cmd and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the resource catalog over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := LoadConfigAndLogger(a.cfgPath, a.opts.EnvPrefix, a.opts.ValidateConfig, a.opts.Name, a.serviceName)
			if err != nil {
				return err
			}
			return a.opts.RunServer(cmd.Context(), cfg, log)
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Current(a.opts.Name)
			for _, row := range [][2]string{
				{"Service", info.Service},
				{"Version", info.Version},
				{"Commit", info.Commit},
				{"Build Time", info.BuildTime},
				{"Go", info.GoVersion},
				{"MongoDB", info.MongoDriver},
			} {
				fmt.Fprintf(cmd.OutOrStdout(), "%-11s %s\n", row[0]+":", row[1])
			}
		},
	}
}

// healthcheckCommand runs the readiness checks once, for container health checks.
func (a *app) healthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check MongoDB and, when rate limiting uses it, Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := LoadConfigAndLogger(a.cfgPath, a.opts.EnvPrefix, a.opts.ValidateConfig, a.opts.Name, a.serviceName)
			if err != nil {
				return err
			}

			checks := health.NewRegistry()
			adapter, err := mongostore.NewAdapter(mongoConfig(cfg), log)
			if err != nil {
				return err
			}
			defer adapter.Close()
			checks.Register(health.PingCheck("mongodb", adapter))

			if cfg.RateLimit.Enabled && cfg.RateLimit.RedisURL != "" {
				limiter, err := ratelimit.NewRedisRateLimiter(cfg.RateLimit, log)
				if err != nil {
					return err
				}
				defer limiter.Close()
				redis := health.PingCheck("redis", limiter)
				redis.Optional = true
				checks.Register(redis)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckTimeout)
			defer cancel()
			report := checks.Check(ctx)
			for _, res := range report.Checks {
				line := res.Name + ": " + string(res.Status)
				if res.Error != "" {
					line += " (" + res.Error + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if !report.Ready() {
				return fmt.Errorf("service is %s", report.Status)
			}
			return nil
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	load := func() (*config.Config, error) {
		cfg, err := loadConfig(a.cfgPath, a.opts.EnvPrefix, a.opts.Name, a.serviceName)
		if err != nil {
			return nil, err
		}
		if a.opts.ValidateConfig != nil {
			if err := a.opts.ValidateConfig(cfg); err != nil {
				return nil, fmt.Errorf("custom validation failed: %w", err)
			}
		}
		return cfg, nil
	}

	cmd := &cobra.Command{Use: "config", Short: "Inspect the effective configuration"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := load(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the configuration with secrets redacted",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), cfg.String())
				return nil
			},
		},
	)
	return cmd
}

func loadConfig(cfgPath, envPrefix, defaultServiceName, serviceNameOverride string) (*config.Config, error) {
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithServiceNameDefault(defaultServiceName).Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, defaultServiceName, serviceNameOverride)
	return cfg, nil
}

// LoadConfigAndLogger loads and validates the configuration, then builds
// the logger it describes. At debug level the redacted configuration is
// logged.
func LoadConfigAndLogger(
	cfgPath, envPrefix string,
	customValidator func(*config.Config) error,
	defaultServiceName, serviceNameOverride string,
) (*config.Config, logger.Logger, error) {
	cfg, err := loadConfig(cfgPath, envPrefix, defaultServiceName, serviceNameOverride)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if customValidator != nil {
		if err := customValidator(cfg); err != nil {
			return nil, nil, fmt.Errorf("custom validation failed: %w", err)
		}
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: cfg.Service.Name,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if strings.EqualFold(cfg.Observability.LogLevel, "debug") {
		log.Debug("effective configuration", "config", cfg.String())
	}
	return cfg, log, nil
}

// resolveServiceNameValue picks the --service-name flag, then the configured
// name, then the command's default.
func resolveServiceNameValue(configured, defaultName, override string) string {
	for _, name := range []string{override, configured, defaultName} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return DefaultName
}

func mongoConfig(cfg *config.Config) mongostore.Config {
	return mongostore.Config{
		URL:              cfg.MongoDB.URL,
		Database:         cfg.MongoDB.Database,
		AppName:          cfg.Service.Name,
		MaxPoolSize:      cfg.MongoDB.MaxPoolSize,
		ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
		OperationTimeout: cfg.MongoDB.OperationTimeout,
	}
}
