package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"aaiptracker/internal/ports"
)

// Importer backfills historical draws from the annual summary PDF.
// Existing rows always win over imported ones.
type Importer struct {
	source ports.DrawHistorySource
	store  ports.Store
	logger *slog.Logger
}

func NewImporter(source ports.DrawHistorySource, store ports.Store, logger *slog.Logger) *Importer {
	return &Importer{source: source, store: store, logger: logger}
}

// Import fetches one year's draws and inserts the ones not yet present.
func (i *Importer) Import(ctx context.Context, year int) (int, error) {
	draws, err := i.source.FetchDraws(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("fetch draw history: %w", err)
	}

	inserted, err := i.store.ImportDraws(ctx, draws)
	if err != nil {
		return 0, fmt.Errorf("import draws: %w", err)
	}

	i.logger.Info("historical draws imported",
		"year", year,
		"parsed", len(draws),
		"inserted", inserted,
		"skipped", len(draws)-inserted)

	return inserted, nil
}
