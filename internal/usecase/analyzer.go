package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aaiptracker/internal/analysis"
	"aaiptracker/internal/ports"
)

// ErrNoDraws is returned when analysis is requested over an empty draw
// table.
var ErrNoDraws = errors.New("no draws to analyze")

// Analyzer builds a trend report over all persisted draws and stores it
// keyed by calendar day.
type Analyzer struct {
	store  ports.Store
	logger *slog.Logger
}

func NewAnalyzer(store ports.Store, logger *slog.Logger) *Analyzer {
	return &Analyzer{store: store, logger: logger}
}

// Analyze computes and persists today's report, returning its JSON.
// Rerunning on the same day overwrites the stored report.
func (a *Analyzer) Analyze(ctx context.Context, now time.Time) ([]byte, error) {
	draws, err := a.store.HistoricalDraws(ctx)
	if err != nil {
		return nil, fmt.Errorf("load draws: %w", err)
	}
	if len(draws) == 0 {
		return nil, ErrNoDraws
	}

	report := analysis.Build(draws, now)
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	if err := a.store.SaveTrendReport(ctx, now, data); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	a.logger.Info("trend report saved",
		"draws", len(draws),
		"categories", len(analysis.Categories(draws)),
		"date", now.Format("2006-01-02"))

	return data, nil
}
