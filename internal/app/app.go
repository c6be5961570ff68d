// Package app wires configuration into the geocoder, resolver, store and
// telemetry shared by the geofix binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/config"
	"github.com/monolithe-geofix/internal/db"
	"github.com/monolithe-geofix/internal/geocode"
	"github.com/monolithe-geofix/internal/observability"
	"github.com/monolithe-geofix/internal/resolver"
	"github.com/monolithe-geofix/internal/store"
)

// Options tweak how the App is assembled.
type Options struct {
	Debug bool
	// TraceWriter receives exported spans; stderr when nil.
	TraceWriter io.Writer
	// Clock paces the resolver; the real clock when nil.
	Clock clockwork.Clock
}

// App holds the long-lived collaborators of one process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Geocoder *geocode.CachedLookup
	Resolver *resolver.Resolver

	conn        *db.Connection
	store       *store.AddressStore
	stopTracing func(context.Context) error
}

// New builds everything that does not need the database.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TraceWriter == nil {
		opts.TraceWriter = os.Stderr
	}

	stopTracing, err := observability.InitTracing(ctx, cfg.Tracing.Enabled, cfg.Tracing.ServiceName, opts.TraceWriter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	client := geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.CountryCode, cfg.Geocoder.UserAgent,
		cfg.Geocoder.Timeout, logger.Named("geocode"))
	cached := geocode.NewCachedLookup(client, cfg.Geocoder.CacheSize, metrics)

	res := resolver.New(cached, resolver.Options{
		MinInterval: cfg.Geocoder.MinInterval,
		Clock:       opts.Clock,
		Metrics:     metrics,
		Logger:      logger.Named("resolver"),
		Debug:       opts.Debug,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry,
		Metrics:     metrics,
		Geocoder:    cached,
		Resolver:    res,
		stopTracing: stopTracing,
	}, nil
}

// Store opens the database on first use.
func (a *App) Store(ctx context.Context) (*store.AddressStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	conn, err := db.NewConnection(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.conn = conn
	a.store = store.NewAddressStore(conn.DB, conn.Dialect, a.Config.Sweep.ProviderRole)
	a.Logger.Debug("database opened",
		zap.String("driver", string(conn.Dialect)),
		zap.String("role", a.Config.Sweep.ProviderRole),
	)
	return a.store, nil
}

// Connection returns the open database connection, or nil before Store.
func (a *App) Connection() *db.Connection {
	return a.conn
}

// Close releases the database and flushes spans.
func (a *App) Close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.Logger.Warn("database close failed", zap.Error(err))
		}
		a.conn = nil
		a.store = nil
	}
	observability.ShutdownWithTimeout(a.stopTracing, a.Logger)
}
