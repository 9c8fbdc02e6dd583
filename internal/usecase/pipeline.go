package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"aaiptracker/internal/domain"
	"aaiptracker/internal/ports"
)

// Pipeline runs one scrape cycle: fetch the page, decide whether anything
// changed, and persist the results atomically with an audit row.
type Pipeline struct {
	source   ports.PageSource
	eoi      ports.EOISource
	store    ports.Store
	detector *ChangeDetector
	logger   *slog.Logger
}

// NewPipeline wires the pipeline. eoi may be nil when no EOI page is
// configured.
func NewPipeline(source ports.PageSource, eoi ports.EOISource, store ports.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source:   source,
		eoi:      eoi,
		store:    store,
		detector: NewChangeDetector(store, logger),
		logger:   logger,
	}
}

// Run executes one cycle. Snapshots are saved only when numbers moved;
// draw upserts and the audit row happen on every run. On failure an error
// audit row is written best-effort before the error propagates.
func (p *Pipeline) Run(ctx context.Context) (domain.RunStats, error) {
	var stats domain.RunStats

	snap, err := p.source.FetchSnapshot(ctx)
	if err != nil {
		p.logFailure(ctx, fmt.Sprintf("fetch page: %v", err))
		return stats, fmt.Errorf("fetch page: %w", err)
	}

	changed, err := p.detector.HasChanges(ctx, snap)
	if err != nil {
		p.logFailure(ctx, fmt.Sprintf("detect changes: %v", err))
		return stats, fmt.Errorf("detect changes: %w", err)
	}

	status := domain.StatusNoChange
	message := "no changes detected"
	if changed {
		status = domain.StatusSuccess
		message = "changes detected, snapshots saved"
	}

	pool := p.fetchPool(ctx)

	stats, err = p.store.CommitRun(ctx, ports.RunInput{
		Snapshot:      snap,
		SaveSnapshots: changed,
		EOIPool:       pool,
		LogStatus:     status,
		LogMessage:    message,
	})
	if err != nil {
		p.logFailure(ctx, fmt.Sprintf("persist run: %v", err))
		return stats, fmt.Errorf("persist run: %w", err)
	}

	p.logger.Info("pipeline run complete",
		"status", string(status),
		"streams", stats.StreamsCollected,
		"draws", stats.DrawsProcessed,
		"new_draws", stats.NewDraws,
		"updated_draws", stats.UpdatedDraws)

	return stats, nil
}

// fetchPool collects the optional EOI pool. A failing EOI page degrades to
// an empty pool instead of failing the run; the main page data is worth
// more than the side observation.
func (p *Pipeline) fetchPool(ctx context.Context) []domain.EOIPoolSnapshot {
	if p.eoi == nil {
		return nil
	}
	pool, err := p.eoi.FetchPool(ctx)
	if err != nil {
		p.logger.Warn("eoi pool fetch failed", "error", err)
		return nil
	}
	return pool
}

func (p *Pipeline) logFailure(ctx context.Context, message string) {
	entry := domain.ScrapeLogEntry{
		Status:  domain.StatusError,
		Message: message,
	}
	if err := p.store.AppendLog(ctx, entry); err != nil {
		p.logger.Error("cannot write error audit row", "error", err)
	}
}
