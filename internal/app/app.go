// Package app wires configuration to use cases and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aaiptracker/internal/config"
	"aaiptracker/internal/infrastructure/scheduler"
	"aaiptracker/internal/infrastructure/scraper"
	"aaiptracker/internal/infrastructure/storage"
	"aaiptracker/internal/logging"
	"aaiptracker/internal/ports"
	"aaiptracker/internal/streams"
	"aaiptracker/internal/usecase"
)

// Application holds the wired use cases behind the CLI commands.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    ports.Store
	pipeline *usecase.Pipeline
	analyzer *usecase.Analyzer
	importer *usecase.Importer
}

// New connects storage and builds the full object graph. The caller owns
// Close.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN,
		baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	pageCat := streams.NewCategorizer(pageRules(cfg), false)
	pdfCat := streams.NewCategorizer(streams.DefaultPDFRules(), true)

	source := scraper.NewPageScraper(nil, cfg.Source, pageCat,
		baseLogger.With("component", "scraper.page"))

	var eoi ports.EOISource
	if cfg.EOI.URL != "" {
		eoi = scraper.NewEOIScraper(nil, cfg.EOI,
			baseLogger.With("component", "scraper.eoi"))
	}

	history := scraper.NewPDFHistory(nil, cfg.PDFHistory, pdfCat,
		baseLogger.With("component", "scraper.pdf"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		pipeline: usecase.NewPipeline(source, eoi, store, baseLogger.With("component", "pipeline")),
		analyzer: usecase.NewAnalyzer(store, baseLogger.With("component", "analyzer")),
		importer: usecase.NewImporter(history, store, baseLogger.With("component", "importer")),
	}, nil
}

// pageRules prefers configured category patterns over the built-in table.
func pageRules(cfg config.Config) []streams.Rule {
	if len(cfg.Categories) == 0 {
		return streams.DefaultPageRules()
	}
	rules := make([]streams.Rule, 0, len(cfg.Categories))
	for _, r := range cfg.Categories {
		rules = append(rules, streams.Rule{Category: r.Category, Patterns: r.Patterns})
	}
	return rules
}

// RunOnce executes a single pipeline cycle.
func (a *Application) RunOnce(ctx context.Context) error {
	_, err := a.pipeline.Run(ctx)
	return err
}

// Schedule runs the pipeline on the configured cron expression until ctx
// is cancelled. One run executes immediately at startup.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.RunOnce(ctx); err != nil {
		a.logger.Error("initial run failed", "error", err)
	}

	sched := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"),
	)
	err := sched.Start(ctx, func(ts time.Time) {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := a.pipeline.Run(runCtx); err != nil {
			a.logger.Error("scheduled run failed", "tick", ts, "error", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Analyze builds and persists today's trend report, returning its JSON.
func (a *Application) Analyze(ctx context.Context) ([]byte, error) {
	return a.analyzer.Analyze(ctx, time.Now().In(a.cfg.Scheduler.Location()))
}

// ImportHistory backfills draws from the configured PDF for one year.
// A zero year falls back to the configured one.
func (a *Application) ImportHistory(ctx context.Context, year int) (int, error) {
	if year == 0 {
		year = a.cfg.PDFHistory.Year
	}
	return a.importer.Import(ctx, year)
}

// Close releases the storage handle.
func (a *Application) Close() error {
	return a.store.Close()
}
