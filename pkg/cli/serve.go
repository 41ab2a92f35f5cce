package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/controller"
	"github.com/nimburion/apimate/pkg/health"
	"github.com/nimburion/apimate/pkg/middleware/ratelimit"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/observability/metrics"
	"github.com/nimburion/apimate/pkg/observability/tracing"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/nimburion/apimate/pkg/repository/document"
	"github.com/nimburion/apimate/pkg/server"
	"github.com/nimburion/apimate/pkg/server/router/factory"
	mongostore "github.com/nimburion/apimate/pkg/store/mongodb"
	"github.com/nimburion/apimate/pkg/version"
)

// Serve connects to MongoDB, mounts a list and a get endpoint for every
// resource of the catalog and serves until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func Serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	cat, err := loadCatalog(cfg.Catalog.File)
	if err != nil {
		return err
	}

	info := version.Current(cfg.Service.Name)
	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("create tracer provider: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	adapter, err := mongostore.NewAdapter(mongoConfig(cfg), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			log.Warn("mongodb close failed", "error", err)
		}
	}()

	r, err := factory.NewRouter(cfg.HTTP.Router)
	if err != nil {
		return err
	}

	checks := health.NewRegistry()
	checks.Register(health.PingCheck("mongodb", adapter))

	var reg *metrics.Registry
	if cfg.Observability.MetricsEnabled {
		reg = metrics.NewRegistry()
	}

	api := server.NewAPIServer(cfg.HTTP, r, log, checks, reg)
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(cfg.RateLimit, log)
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
		defer limiter.Close()
		if p, ok := limiter.(health.Pinger); ok {
			redis := health.PingCheck("redis", p)
			redis.Optional = true
			checks.Register(redis)
		}
		api.Resources().Use(ratelimit.RateLimit(limiter, ratelimit.Config{}))
	}
	open := func(name string) (document.Collection, error) {
		coll, err := document.NewMongoCollection(adapter, name)
		if err != nil {
			return nil, err
		}
		return coll, nil
	}
	if err := controller.RegisterCatalog(api.Resources(), cat, open, log); err != nil {
		return err
	}
	warnMissingCollections(ctx, adapter, cat, log)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("apimate starting",
		"service", cfg.Service.Name,
		"version", info.Version,
		"router", cfg.HTTP.Router,
		"base_path", cfg.HTTP.BasePath,
		"resources", cat.Names(),
	)
	return api.Start(runCtx)
}

func loadCatalog(path string) (*query.Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog.file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	cat, err := query.LoadDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cat, nil
}

// warnMissingCollections logs catalog collections absent from the database.
// They are served as empty lists rather than failing startup.
func warnMissingCollections(ctx context.Context, adapter *mongostore.Adapter, cat *query.Catalog, log logger.Logger) {
	var names []string
	for _, name := range cat.Names() {
		if coll, ok := cat.Collection(name); ok {
			names = append(names, coll)
		}
	}
	missing, err := adapter.MissingCollections(ctx, names...)
	if err != nil {
		log.Warn("cannot list mongodb collections", "error", err)
		return
	}
	for _, coll := range missing {
		log.Warn("catalog collection does not exist", "collection", coll)
	}
}
