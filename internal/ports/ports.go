package ports

import (
	"context"
	"time"

	"aaiptracker/internal/domain"
)

// PageSource fetches and parses the processing-information page into an
// in-memory snapshot.
type PageSource interface {
	FetchSnapshot(ctx context.Context) (*domain.PageSnapshot, error)
}

// DrawHistorySource produces draw candidates from the annual summary PDF,
// filtered to a single year.
type DrawHistorySource interface {
	FetchDraws(ctx context.Context, year int) ([]domain.DrawRecord, error)
}

// EOISource observes per-stream EOI pool sizes.
type EOISource interface {
	FetchPool(ctx context.Context) ([]domain.EOIPoolSnapshot, error)
}

// Store is the single storage backend the pipeline is parameterized by.
// Backend choice (Postgres vs SQLite) is a configuration concern.
type Store interface {
	// LatestSummary returns the most recent summary snapshot, or nil when
	// none has been persisted yet.
	LatestSummary(ctx context.Context) (*domain.SummarySnapshot, error)
	// LatestStreamSnapshot returns the named stream's most recent
	// snapshot, or nil when the stream has never been seen.
	LatestStreamSnapshot(ctx context.Context, streamName string) (*domain.StreamSnapshot, error)

	// CommitRun persists one pipeline run atomically: snapshots when
	// saveSnapshots is set, draw upserts always, EOI pool rows when
	// present, and exactly one audit-log entry. On error nothing is
	// written.
	CommitRun(ctx context.Context, run RunInput) (domain.RunStats, error)

	// AppendLog writes a standalone audit row, used for error and
	// no-change outcomes outside a run transaction.
	AppendLog(ctx context.Context, entry domain.ScrapeLogEntry) error

	// ImportDraws inserts draw records only where the natural key is
	// absent, preserving everything already scraped.
	ImportDraws(ctx context.Context, draws []domain.DrawRecord) (inserted int, err error)

	// HistoricalDraws returns all draws ordered by date ascending.
	HistoricalDraws(ctx context.Context) ([]domain.DrawRecord, error)

	// SaveTrendReport upserts the report for the given calendar day.
	SaveTrendReport(ctx context.Context, analysisDate time.Time, reportJSON []byte) error

	Close() error
}

// RunInput carries everything CommitRun writes for one pipeline run.
type RunInput struct {
	Snapshot      *domain.PageSnapshot
	SaveSnapshots bool
	EOIPool       []domain.EOIPoolSnapshot
	LogStatus     domain.ScrapeStatus
	LogMessage    string
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
