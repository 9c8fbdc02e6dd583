package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aaiptracker/internal/app"
	"aaiptracker/internal/config"
	"aaiptracker/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aaiptracker",
		Short:         "Tracks AAIP processing numbers, draws and trends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScrapeCmd(), newScheduleCmd(), newAnalyzeCmd(), newImportCmd())
	return root
}

// buildApp loads config and wires the application for one command.
func buildApp(ctx context.Context) (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)
	return app.New(ctx, cfg, logger)
}

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.RunOnce(cmd.Context())
		},
	}
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the scrape pipeline on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Schedule(cmd.Context())
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Build today's trend report from historical draws",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(report))
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "import-pdf",
		Short: "Backfill historical draws from the annual summary PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			inserted, err := a.ImportHistory(cmd.Context(), year)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d draws\n", inserted)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "draw year to import (defaults to configured year)")
	return cmd
}
