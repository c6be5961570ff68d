package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/monolithe-geofix/internal/batch"
	"github.com/monolithe-geofix/internal/config"
	"github.com/monolithe-geofix/internal/importer"
	"github.com/monolithe-geofix/internal/normalize"
	"github.com/monolithe-geofix/internal/postal"
	"github.com/monolithe-geofix/internal/report"
)

// createSweepCmd creates the command that fills in missing coordinates
func createSweepCmd() *cobra.Command {
	var (
		dryRun     bool
		limit      int
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Geocode every provider that has an address but no coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			st, err := application.Store(ctx)
			if err != nil {
				return err
			}

			bp := batch.NewBatchProcessor(st, application.Resolver, batch.Options{
				DryRun:   dryRun,
				Limit:    limit,
				Progress: out,
				Metrics:  application.Metrics,
				Logger:   logger.Named("sweep"),
				Debug:    debugMode,
			})
			stats, runErr := bp.Run(ctx)
			if stats == nil {
				return runErr
			}
			stats.WriteSummary(out)

			if reportPath == "" {
				reportPath = cfg.Sweep.ReportPath
			}
			if reportPath != "" && len(stats.Unresolved) > 0 {
				if err := report.WriteFile(reportPath, report.FromUnresolved(stats.Unresolved)); err != nil {
					return errors.Join(runErr, err)
				}
				fmt.Fprintf(out, "Unresolved report: %s\n", reportPath)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve addresses without writing coordinates")
	cmd.Flags().IntVar(&limit, "limit", 0, "process at most N providers (0 = all)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write unresolved providers to this CSV (default REPORT_PATH)")
	return cmd
}

// createResolveCmd creates the command that resolves one address
func createResolveCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve [address]",
		Short: "Resolve a single address through all passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			res := application.Resolver.Resolve(cmd.Context(), args[0])

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintf(out, "Cleaned:   %s\n", res.Variants.Cleaned)
			for _, a := range res.Attempts {
				cached := ""
				if a.Cached {
					cached = " (cached)"
				}
				fmt.Fprintf(out, "  %-9s %-7s %s%s\n", a.Pass, a.Outcome, a.Query, cached)
			}
			if !res.Resolved() {
				fmt.Fprintln(out, "Result:    FAILED")
				return nil
			}
			fmt.Fprintf(out, "Result:    %s via %s\n", res.Coordinates, res.Pass)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

// createCleanCmd creates the command that shows the query variants of an address
func createCleanCmd() *cobra.Command {
	var showSteps bool

	cmd := &cobra.Command{
		Use:   "clean [address]",
		Short: "Show the cleaned address and its fallback query shapes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			v := normalize.BuildVariants(args[0])

			if showSteps {
				_, trace := normalize.Trace(args[0])
				for _, step := range trace {
					if step.Skipped {
						fmt.Fprintf(out, "%-34s (skipped)\n", step.Name)
						continue
					}
					fmt.Fprintf(out, "%-34s %s\n", step.Name, step.Output)
				}
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "Cleaned:   %s\n", orNone(v.Cleaned))
			fmt.Fprintf(out, "No number: %s\n", orNone(v.NoNumber))
			fmt.Fprintf(out, "City only: %s\n", orNone(v.CityOnly))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSteps, "steps", false, "print the address after every cleaning step")
	return cmd
}

// createImportCmd creates the provider CSV import command
func createImportCmd() *cobra.Command {
	var (
		password string
		cost     int
	)

	cmd := &cobra.Command{
		Use:   "import [filename]",
		Short: "Import providers from a directory CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if password == "" {
				password = config.GetEnv("IMPORT_INITIAL_PASSWORD", "")
			}

			st, err := application.Store(ctx)
			if err != nil {
				return err
			}

			imp := importer.NewCSVImporter(st, application.Resolver, importer.Options{
				InitialPassword: password,
				BcryptCost:      cost,
				Progress:        out,
				Logger:          logger.Named("import"),
				Debug:           debugMode,
			})
			stats, err := imp.ImportFile(ctx, args[0])
			if stats != nil {
				stats.WriteSummary(out)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "initial password for new accounts (default IMPORT_INITIAL_PASSWORD)")
	cmd.Flags().IntVar(&cost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for the initial password hash")
	return cmd
}

// createExportUnresolvedCmd creates the command that lists providers still missing coordinates
func createExportUnresolvedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-unresolved [filename]",
		Short: "Write providers without coordinates to a CSV for manual follow-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := application.Store(cmd.Context())
			if err != nil {
				return err
			}
			records, err := st.FetchCandidates(cmd.Context())
			if err != nil {
				return err
			}
			if err := report.WriteFile(args[0], report.FromRecords(records)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d providers to %s\n", len(records), args[0])
			return nil
		},
	}
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := application.Store(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Database connection successful!")
			fmt.Fprintf(out, "Providers (%s):      %d\n", cfg.Sweep.ProviderRole, stats.Providers)
			fmt.Fprintf(out, "With coordinates:      %d\n", stats.WithCoordinates)
			fmt.Fprintf(out, "Missing coordinates:   %d\n", stats.Missing)
			return nil
		},
	}
}

// createParseCmd creates the libpostal diagnostics command
func createParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [address]",
		Short: "Break an address into libpostal components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := postal.Parse(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range parsed.Components {
				fmt.Fprintf(out, "  %-14s %s\n", c.Label+":", c.Value)
			}
			fmt.Fprintf(out, "\nlibpostal city-only: %s\n", orNone(parsed.PostcodeCity()))
			fmt.Fprintf(out, "geofix city-only:    %s\n", orNone(normalize.ExtractPostcodeCity(args[0])))
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
