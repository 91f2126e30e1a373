package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/cache"
	badgercache "github.com/marmos91/facetfs/pkg/cache/badger"
	cachemem "github.com/marmos91/facetfs/pkg/cache/memory"
	"github.com/marmos91/facetfs/pkg/config"
	"github.com/marmos91/facetfs/pkg/facet"
	"github.com/marmos91/facetfs/pkg/facet/store"
	memorystore "github.com/marmos91/facetfs/pkg/facet/store/memory"
	"github.com/marmos91/facetfs/pkg/facet/store/postgres"
	"github.com/marmos91/facetfs/pkg/facet/store/sqlite"
	"github.com/marmos91/facetfs/pkg/fsal"
	localfsal "github.com/marmos91/facetfs/pkg/fsal/local"
	s3fsal "github.com/marmos91/facetfs/pkg/fsal/s3"
	"github.com/marmos91/facetfs/pkg/metrics"
	prommetrics "github.com/marmos91/facetfs/pkg/metrics/prometheus"
	"github.com/marmos91/facetfs/pkg/tasks"
)

// engine bundles a wired Archive with the resources that back it, so
// commands can tear everything down with one Close.
type engine struct {
	archive  *facet.Archive
	executor *tasks.Executor
	closers  []io.Closer
}

// buildEngine wires store, cache, lister, executor, and metrics from the
// configuration into a ready Archive.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	e := &engine{}

	st, err := e.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := e.openCache(cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	lister, err := openLister(ctx, cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	var m facet.Metrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = prommetrics.NewFacetMetrics()
	}

	e.executor = tasks.NewExecutor(cfg.Scanner.Workers)

	archive, err := facet.New(facet.Options{
		Store:     st,
		Lister:    lister,
		Scheduler: e.executor,
		Cache:     c,
		Metrics:   m,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.archive = archive
	return e, nil
}

func (e *engine) openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "postgres":
		st, err := postgres.NewPostgresStore(ctx, &cfg.Store.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		e.closers = append(e.closers, st)
		return st, nil
	case "sqlite":
		st, err := sqlite.NewSQLiteStore(&cfg.Store.SQLite)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		e.closers = append(e.closers, st)
		return st, nil
	case "memory":
		return memorystore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func (e *engine) openCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case "badger":
		c, err := badgercache.NewBadgerCache(cfg.Cache.Badger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger cache: %w", err)
		}
		e.closers = append(e.closers, c)
		return c, nil
	case "memory":
		return cachemem.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
}

func openLister(ctx context.Context, cfg *config.Config) (fsal.Lister, error) {
	switch cfg.Scanner.Backend {
	case "s3":
		return s3fsal.NewLister(ctx, cfg.Scanner.S3)
	case "local":
		if cfg.Scanner.Root == "" {
			return nil, fmt.Errorf("scanner.root is required for the local backend")
		}
		return localfsal.NewLister(cfg.Scanner.Root), nil
	default:
		return nil, fmt.Errorf("unknown scanner backend %q", cfg.Scanner.Backend)
	}
}

// serveMetrics exposes the Prometheus endpoint for the lifetime of ctx.
// A no-op when metrics are disabled.
func serveMetrics(ctx context.Context, cfg *config.Config) {
	handler := metrics.Handler()
	if handler == nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		logger.Info("metrics endpoint listening", "port", cfg.Metrics.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics endpoint failed", "error", err)
		}
	}()
}

// Close drains the executor and releases store and cache resources.
func (e *engine) Close() {
	if e.executor != nil {
		e.executor.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			logger.Warn("resource close failed", "error", err)
		}
	}
}
