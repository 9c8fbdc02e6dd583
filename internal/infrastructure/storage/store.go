// Package storage persists snapshots, draws and audit rows to Postgres or
// SQLite behind a single ports.Store implementation. Dialect differences
// are confined to placeholder format and DDL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"aaiptracker/internal/domain"
	"aaiptracker/internal/ports"
)

const analysisDateLayout = "2006-01-02"

// Store implements ports.Store over database/sql.
type Store struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	driver string
	logger *slog.Logger
}

var _ ports.Store = (*Store)(nil)

// New wraps an open database handle and runs schema migration. The driver
// string selects placeholder format and DDL dialect.
func New(db *sql.DB, driver string, logger *slog.Logger) (*Store, error) {
	var placeholder sq.PlaceholderFormat = sq.Dollar
	if driver == DriverSQLite {
		placeholder = sq.Question
	}

	s := &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		driver: driver,
		logger: logger,
	}

	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LatestSummary returns the most recent summary snapshot, nil when the
// table is empty.
func (s *Store) LatestSummary(ctx context.Context) (*domain.SummarySnapshot, error) {
	query, args, err := s.sb.
		Select("id", "timestamp", "allocation", "issued", "spaces_remaining", "applications_to_process", "last_updated").
		From("aaip_summary").
		OrderBy("timestamp DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	var out domain.SummarySnapshot
	var alloc, issued, remaining, toProcess sql.NullInt64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&out.ID, &out.Timestamp, &alloc, &issued, &remaining, &toProcess, &out.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest summary: %w", err)
	}

	out.Allocation = nullableInt(alloc)
	out.Issued = nullableInt(issued)
	out.SpacesRemaining = nullableInt(remaining)
	out.ApplicationsToProcess = nullableInt(toProcess)
	return &out, nil
}

// LatestStreamSnapshot returns the named stream's most recent snapshot,
// nil when the stream has never been persisted.
func (s *Store) LatestStreamSnapshot(ctx context.Context, streamName string) (*domain.StreamSnapshot, error) {
	query, args, err := s.sb.
		Select("id", "timestamp", "stream_name", "stream_type", "parent_stream",
			"allocation", "issued", "spaces_remaining", "applications_to_process", "processing_date").
		From("stream_snapshots").
		Where(sq.Eq{"stream_name": streamName}).
		OrderBy("timestamp DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stream query: %w", err)
	}

	var out domain.StreamSnapshot
	var alloc, issued, remaining, toProcess sql.NullInt64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&out.ID, &out.Timestamp, &out.StreamName, &out.StreamType, &out.ParentStream,
		&alloc, &issued, &remaining, &toProcess, &out.ProcessingDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest stream snapshot: %w", err)
	}

	out.Allocation = nullableInt(alloc)
	out.Issued = nullableInt(issued)
	out.SpacesRemaining = nullableInt(remaining)
	out.ApplicationsToProcess = nullableInt(toProcess)
	return &out, nil
}

// CommitRun writes one pipeline run in a single transaction: snapshots
// when requested, draw upserts always, EOI pool rows when present, and
// exactly one audit row. On any error the transaction rolls back and
// nothing is persisted.
func (s *Store) CommitRun(ctx context.Context, run ports.RunInput) (domain.RunStats, error) {
	var stats domain.RunStats
	if run.Snapshot == nil {
		return stats, errors.New("commit run: nil snapshot")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if run.SaveSnapshots {
		if run.Snapshot.Summary != nil {
			if err := s.insertSummary(ctx, tx, *run.Snapshot.Summary); err != nil {
				return stats, err
			}
		}
		for _, snap := range run.Snapshot.Streams {
			if err := s.insertStreamSnapshot(ctx, tx, snap); err != nil {
				return stats, err
			}
		}
		stats.SnapshotsSaved = true
	}
	stats.StreamsCollected = len(run.Snapshot.Streams)

	for _, draw := range run.Snapshot.Draws {
		inserted, err := s.upsertDraw(ctx, tx, draw)
		if err != nil {
			return stats, err
		}
		stats.DrawsProcessed++
		if inserted {
			stats.NewDraws++
		} else {
			stats.UpdatedDraws++
		}
	}

	for _, pool := range run.EOIPool {
		if err := s.insertEOIPool(ctx, tx, pool); err != nil {
			return stats, err
		}
	}

	entry := domain.ScrapeLogEntry{
		Timestamp:        time.Now().UTC(),
		Status:           run.LogStatus,
		Message:          run.LogMessage,
		StreamsCollected: stats.StreamsCollected,
		DrawsCollected:   stats.DrawsProcessed,
		NewDrawsAdded:    stats.NewDraws,
	}
	if err := s.insertLog(ctx, tx, entry); err != nil {
		return stats, err
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit tx: %w", err)
	}
	return stats, nil
}

// AppendLog writes a standalone audit row outside any run transaction.
func (s *Store) AppendLog(ctx context.Context, entry domain.ScrapeLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return s.insertLog(ctx, s.db, entry)
}

// ImportDraws inserts only draws whose natural key is absent, so a PDF
// import never overwrites rows collected from the live page.
func (s *Store) ImportDraws(ctx context.Context, draws []domain.DrawRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, draw := range draws {
		exists, err := s.drawExists(ctx, tx, draw)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		if err := s.insertDraw(ctx, tx, draw); err != nil {
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// HistoricalDraws returns every draw ordered by date ascending.
func (s *Store) HistoricalDraws(ctx context.Context) ([]domain.DrawRecord, error) {
	query, args, err := s.sb.
		Select("id", "draw_date", "stream_category", "stream_detail",
			"min_score", "invitations_issued", "created_at", "updated_at").
		From("draws").
		OrderBy("draw_date ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build draws query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()

	var draws []domain.DrawRecord
	for rows.Next() {
		var d domain.DrawRecord
		var score, invitations sql.NullInt64
		if err := rows.Scan(&d.ID, &d.DrawDate, &d.StreamCategory, &d.StreamDetail,
			&score, &invitations, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draw: %w", err)
		}
		d.MinScore = nullableInt(score)
		d.InvitationsIssued = nullableInt(invitations)
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draws: %w", err)
	}
	return draws, nil
}

// SaveTrendReport upserts the report for the given calendar day.
func (s *Store) SaveTrendReport(ctx context.Context, analysisDate time.Time, reportJSON []byte) error {
	query, args, err := s.sb.
		Insert("trend_analysis").
		Columns("analysis_date", "report_data", "created_at").
		Values(analysisDate.Format(analysisDateLayout), string(reportJSON), time.Now().UTC()).
		Suffix("ON CONFLICT (analysis_date) DO UPDATE SET report_data = excluded.report_data").
		ToSql()
	if err != nil {
		return fmt.Errorf("build trend upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert trend report: %w", err)
	}
	return nil
}

// execer lets the same insert helpers run against a transaction or the
// bare connection.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) insertSummary(ctx context.Context, db execer, snap domain.SummarySnapshot) error {
	query, args, err := s.sb.
		Insert("aaip_summary").
		Columns("timestamp", "allocation", "issued", "spaces_remaining", "applications_to_process", "last_updated").
		Values(snap.Timestamp.UTC(), intArg(snap.Allocation), intArg(snap.Issued),
			intArg(snap.SpacesRemaining), intArg(snap.ApplicationsToProcess), snap.LastUpdated).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (s *Store) insertStreamSnapshot(ctx context.Context, db execer, snap domain.StreamSnapshot) error {
	query, args, err := s.sb.
		Insert("stream_snapshots").
		Columns("timestamp", "stream_name", "stream_type", "parent_stream",
			"allocation", "issued", "spaces_remaining", "applications_to_process", "processing_date").
		Values(snap.Timestamp.UTC(), snap.StreamName, string(snap.StreamType), snap.ParentStream,
			intArg(snap.Allocation), intArg(snap.Issued), intArg(snap.SpacesRemaining),
			intArg(snap.ApplicationsToProcess), snap.ProcessingDate).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stream insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert stream snapshot: %w", err)
	}
	return nil
}

func (s *Store) insertEOIPool(ctx context.Context, db execer, pool domain.EOIPoolSnapshot) error {
	query, args, err := s.sb.
		Insert("eoi_pool").
		Columns("timestamp", "stream_name", "candidate_count").
		Values(pool.Timestamp.UTC(), pool.StreamName, pool.CandidateCount).
		ToSql()
	if err != nil {
		return fmt.Errorf("build eoi insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert eoi pool: %w", err)
	}
	return nil
}

func (s *Store) insertLog(ctx context.Context, db execer, entry domain.ScrapeLogEntry) error {
	query, args, err := s.sb.
		Insert("scrape_log").
		Columns("timestamp", "status", "message", "streams_collected", "draws_collected", "new_draws_added").
		Values(entry.Timestamp.UTC(), string(entry.Status), entry.Message,
			entry.StreamsCollected, entry.DrawsCollected, entry.NewDrawsAdded).
		ToSql()
	if err != nil {
		return fmt.Errorf("build log insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert scrape log: %w", err)
	}
	return nil
}

func (s *Store) drawExists(ctx context.Context, db execer, draw domain.DrawRecord) (bool, error) {
	query, args, err := s.sb.
		Select("id").
		From("draws").
		Where(sq.Eq{
			"draw_date":       draw.DrawDate.UTC(),
			"stream_category": draw.StreamCategory,
			"stream_detail":   draw.StreamDetail,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build draw lookup: %w", err)
	}

	var id int64
	err = db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup draw: %w", err)
	}
	return true, nil
}

func (s *Store) insertDraw(ctx context.Context, db execer, draw domain.DrawRecord) error {
	now := time.Now().UTC()
	query, args, err := s.sb.
		Insert("draws").
		Columns("draw_date", "stream_category", "stream_detail", "min_score", "invitations_issued", "created_at", "updated_at").
		Values(draw.DrawDate.UTC(), draw.StreamCategory, draw.StreamDetail,
			intArg(draw.MinScore), intArg(draw.InvitationsIssued), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build draw insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert draw: %w", err)
	}
	return nil
}

// upsertDraw reports whether the draw was new. Existing rows get only
// min_score, invitations_issued and updated_at refreshed; created_at and
// the identity columns never change.
func (s *Store) upsertDraw(ctx context.Context, db execer, draw domain.DrawRecord) (bool, error) {
	exists, err := s.drawExists(ctx, db, draw)
	if err != nil {
		return false, err
	}

	if !exists {
		return true, s.insertDraw(ctx, db, draw)
	}

	query, args, err := s.sb.
		Update("draws").
		Set("min_score", intArg(draw.MinScore)).
		Set("invitations_issued", intArg(draw.InvitationsIssued)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{
			"draw_date":       draw.DrawDate.UTC(),
			"stream_category": draw.StreamCategory,
			"stream_detail":   draw.StreamDetail,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build draw update: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("update draw: %w", err)
	}
	return false, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// intArg converts *int to a driver-friendly argument, nil for NULL.
func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
