package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/app"
	"github.com/monolithe-geofix/internal/config"
	"github.com/monolithe-geofix/internal/logging"
)

var (
	// Global flags
	configPath string
	debugMode  bool
	logLevel   string

	// Set up by PersistentPreRunE
	cfg         *config.Config
	logger      *zap.Logger
	application *app.App
	flushLogs   func()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails.
	teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geofix",
		Short: "Provider address cleaning and geocoding toolkit",
		Long: `geofix fills in missing coordinates for service providers by cleaning their
free-text French addresses and querying a Nominatim geocoder, trying the full
address, then the address without its house number, then postcode and city.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			teardown()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "geofix.yaml", "YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "trace every cleaning step and lookup")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(createSweepCmd())
	rootCmd.AddCommand(createResolveCmd())
	rootCmd.AddCommand(createCleanCmd())
	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createExportUnresolvedCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createParseCmd())

	return rootCmd
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}

	logger, flushLogs, err = logging.Install(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	application, err = app.New(cmd.Context(), cfg, logger, app.Options{Debug: debugMode})
	if err != nil {
		return err
	}
	return nil
}

func teardown() {
	if application != nil {
		application.Close()
		application = nil
	}
	if flushLogs != nil {
		flushLogs()
		flushLogs = nil
	}
}
