// Package usecase orchestrates scraping, change detection, persistence and
// analysis without knowing about HTTP, HTML or SQL.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"aaiptracker/internal/domain"
	"aaiptracker/internal/ports"
)

// ChangeDetector decides whether a fresh page snapshot differs from the
// last persisted state. Only the numeric fields participate: the page's
// "Last updated" label changes on edits that do not move any number.
type ChangeDetector struct {
	store  ports.Store
	logger *slog.Logger
}

func NewChangeDetector(store ports.Store, logger *slog.Logger) *ChangeDetector {
	return &ChangeDetector{store: store, logger: logger}
}

// HasChanges reports whether any summary or per-stream numeric moved since
// the last run. A stream never seen before counts as a change. Storage
// read errors propagate; guessing "changed" on a failing store would write
// snapshots nobody compared against.
func (d *ChangeDetector) HasChanges(ctx context.Context, snap *domain.PageSnapshot) (bool, error) {
	if snap.Summary != nil {
		prev, err := d.store.LatestSummary(ctx)
		if err != nil {
			return false, fmt.Errorf("load latest summary: %w", err)
		}
		if prev == nil {
			d.debug("no prior summary, treating as changed")
			return true, nil
		}
		if summaryChanged(prev, snap.Summary) {
			d.debug("summary numbers changed")
			return true, nil
		}
	}

	for i := range snap.Streams {
		cur := &snap.Streams[i]
		prev, err := d.store.LatestStreamSnapshot(ctx, cur.StreamName)
		if err != nil {
			return false, fmt.Errorf("load latest snapshot for %q: %w", cur.StreamName, err)
		}
		if prev == nil {
			d.debug("new stream observed", "stream", cur.StreamName)
			return true, nil
		}
		if streamChanged(prev, cur) {
			d.debug("stream numbers changed", "stream", cur.StreamName)
			return true, nil
		}
	}

	return false, nil
}

func summaryChanged(prev, cur *domain.SummarySnapshot) bool {
	return !intPtrEqual(prev.Allocation, cur.Allocation) ||
		!intPtrEqual(prev.Issued, cur.Issued) ||
		!intPtrEqual(prev.SpacesRemaining, cur.SpacesRemaining) ||
		!intPtrEqual(prev.ApplicationsToProcess, cur.ApplicationsToProcess)
}

func streamChanged(prev, cur *domain.StreamSnapshot) bool {
	return !intPtrEqual(prev.Allocation, cur.Allocation) ||
		!intPtrEqual(prev.Issued, cur.Issued) ||
		!intPtrEqual(prev.SpacesRemaining, cur.SpacesRemaining) ||
		!intPtrEqual(prev.ApplicationsToProcess, cur.ApplicationsToProcess)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (d *ChangeDetector) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
