package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monolithe-geofix/internal/app"
	"github.com/monolithe-geofix/internal/config"
	"github.com/monolithe-geofix/internal/logging"
	"github.com/monolithe-geofix/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "geofix.yaml", "YAML config file (optional)")
	debugMode := flag.Bool("debug", false, "trace every cleaning step and lookup")
	flag.Parse()

	if err := run(*configPath, *debugMode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, debugMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, flush, err := logging.Install(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer flush()

	application, err := app.New(ctx, cfg, logger, app.Options{Debug: debugMode})
	if err != nil {
		return err
	}
	defer application.Close()

	st, err := application.Store(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	server := web.NewServer(cfg.Server, web.Dependencies{
		Store:    st,
		Resolver: application.Resolver,
		Gatherer: application.Registry,
		Logger:   logger.Named("web"),
	})

	if cfg.Server.APIKey == "" {
		logger.Warn("API_KEY is empty, the /api routes are unauthenticated")
	}
	logger.Info("ops server configured",
		zap.String("addr", server.Addr()),
		zap.String("driver", cfg.Database.Driver),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("ops server stopped")
	return nil
}
