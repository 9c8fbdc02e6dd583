package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aaiptracker/internal/domain"
	"aaiptracker/internal/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Each pooled connection would otherwise see its own empty in-memory DB.
	db.SetMaxOpenConns(1)

	store, err := New(db, DriverSQLite, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ip(v int) *int { return &v }

func testSnapshot(ts time.Time) *domain.PageSnapshot {
	return &domain.PageSnapshot{
		Timestamp:   ts,
		LastUpdated: "November 18, 2025",
		Summary: &domain.SummarySnapshot{
			Timestamp:             ts,
			Allocation:            ip(9750),
			Issued:                ip(8500),
			SpacesRemaining:       ip(1250),
			ApplicationsToProcess: nil,
			LastUpdated:           "November 18, 2025",
		},
		Streams: []domain.StreamSnapshot{
			{
				Timestamp:      ts,
				StreamName:     "Alberta Opportunity Stream",
				StreamType:     domain.StreamTypeMain,
				Allocation:     ip(4000),
				Issued:         ip(3600),
				ProcessingDate: "March 2025",
			},
			{
				Timestamp:    ts,
				StreamName:   "Express Entry - Accelerated Tech Pathway",
				StreamType:   domain.StreamTypeSubPathway,
				ParentStream: "Alberta Express Entry Stream",
				Allocation:   ip(1200),
			},
		},
		Draws: []domain.DrawRecord{
			{
				DrawDate:          time.Date(2025, time.November, 12, 0, 0, 0, 0, time.UTC),
				StreamCategory:    "Alberta Express Entry Stream",
				StreamDetail:      "Accelerated Tech Pathway",
				MinScore:          ip(350),
				InvitationsIssued: ip(45),
			},
			{
				DrawDate:       time.Date(2025, time.November, 5, 0, 0, 0, 0, time.UTC),
				StreamCategory: "Dedicated Health Care Pathway",
				StreamDetail:   "Nurses",
				MinScore:       ip(302),
			},
		},
	}
}

func TestCommitRunPersistsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, time.November, 18, 10, 0, 0, 0, time.UTC)

	stats, err := store.CommitRun(ctx, ports.RunInput{
		Snapshot:      testSnapshot(ts),
		SaveSnapshots: true,
		EOIPool: []domain.EOIPoolSnapshot{
			{Timestamp: ts, StreamName: "Alberta Opportunity Stream", CandidateCount: 1500},
		},
		LogStatus:  domain.StatusSuccess,
		LogMessage: "changes detected",
	})
	require.NoError(t, err)
	require.True(t, stats.SnapshotsSaved)
	require.Equal(t, 2, stats.StreamsCollected)
	require.Equal(t, 2, stats.DrawsProcessed)
	require.Equal(t, 2, stats.NewDraws)
	require.Equal(t, 0, stats.UpdatedDraws)

	summary, err := store.LatestSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, 9750, *summary.Allocation)
	require.Nil(t, summary.ApplicationsToProcess)
	require.Equal(t, "November 18, 2025", summary.LastUpdated)

	stream, err := store.LatestStreamSnapshot(ctx, "Express Entry - Accelerated Tech Pathway")
	require.NoError(t, err)
	require.NotNil(t, stream)
	require.Equal(t, domain.StreamTypeSubPathway, stream.StreamType)
	require.Equal(t, "Alberta Express Entry Stream", stream.ParentStream)

	draws, err := store.HistoricalDraws(ctx)
	require.NoError(t, err)
	require.Len(t, draws, 2)
	// Ascending by date.
	require.True(t, draws[0].DrawDate.Before(draws[1].DrawDate))

	require.Equal(t, 1, countRows(t, store, "eoi_pool"))
	require.Equal(t, 1, countRows(t, store, "scrape_log"))
}

func TestCommitRunUpsertsExistingDraw(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, time.November, 18, 10, 0, 0, 0, time.UTC)

	_, err := store.CommitRun(ctx, ports.RunInput{
		Snapshot:      testSnapshot(ts),
		SaveSnapshots: true,
		LogStatus:     domain.StatusSuccess,
	})
	require.NoError(t, err)

	before, err := store.HistoricalDraws(ctx)
	require.NoError(t, err)
	require.Len(t, before, 2)

	// Same draws come back with a corrected invitation count.
	second := testSnapshot(ts.Add(time.Hour))
	second.Draws[0].InvitationsIssued = ip(50)

	stats, err := store.CommitRun(ctx, ports.RunInput{
		Snapshot:  second,
		LogStatus: domain.StatusNoChange,
	})
	require.NoError(t, err)
	require.Equal(t, 0, stats.NewDraws)
	require.Equal(t, 2, stats.UpdatedDraws)

	after, err := store.HistoricalDraws(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2, "upsert must not duplicate rows")

	var updated domain.DrawRecord
	for _, d := range after {
		if d.StreamDetail == "Accelerated Tech Pathway" {
			updated = d
		}
	}
	require.NotNil(t, updated.InvitationsIssued)
	require.Equal(t, 50, *updated.InvitationsIssued)

	// created_at survives the update.
	for i := range after {
		require.True(t, after[i].CreatedAt.Equal(before[i].CreatedAt))
	}
}

func TestCommitRunWithoutSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.CommitRun(ctx, ports.RunInput{
		Snapshot:   testSnapshot(time.Now().UTC()),
		LogStatus:  domain.StatusNoChange,
		LogMessage: "no changes",
	})
	require.NoError(t, err)
	require.False(t, stats.SnapshotsSaved)

	summary, err := store.LatestSummary(ctx)
	require.NoError(t, err)
	require.Nil(t, summary, "summary must not be written on a no-change run")

	draws, err := store.HistoricalDraws(ctx)
	require.NoError(t, err)
	require.Len(t, draws, 2, "draw upserts happen regardless of snapshot saving")

	require.Equal(t, 1, countRows(t, store, "scrape_log"))
}

func TestImportDrawsSkipsExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	_, err := store.CommitRun(ctx, ports.RunInput{
		Snapshot:  testSnapshot(ts),
		LogStatus: domain.StatusSuccess,
	})
	require.NoError(t, err)

	imports := []domain.DrawRecord{
		// Same natural key as a scraped draw, with a conflicting score.
		{
			DrawDate:       time.Date(2025, time.November, 12, 0, 0, 0, 0, time.UTC),
			StreamCategory: "Alberta Express Entry Stream",
			StreamDetail:   "Accelerated Tech Pathway",
			MinScore:       ip(999),
		},
		{
			DrawDate:       time.Date(2024, time.June, 11, 0, 0, 0, 0, time.UTC),
			StreamCategory: "Alberta Express Entry Stream",
			MinScore:       ip(312),
		},
	}

	inserted, err := store.ImportDraws(ctx, imports)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	draws, err := store.HistoricalDraws(ctx)
	require.NoError(t, err)
	require.Len(t, draws, 3)

	// The scraped row wins over the import.
	for _, d := range draws {
		if d.StreamDetail == "Accelerated Tech Pathway" {
			require.Equal(t, 350, *d.MinScore)
		}
	}
}

func TestImportDrawsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	imports := []domain.DrawRecord{
		{
			DrawDate:       time.Date(2024, time.June, 11, 0, 0, 0, 0, time.UTC),
			StreamCategory: "Alberta Opportunity Stream",
			MinScore:       ip(312),
		},
	}

	inserted, err := store.ImportDraws(ctx, imports)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	inserted, err = store.ImportDraws(ctx, imports)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
}

func TestSaveTrendReportOverwritesSameDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, time.November, 18, 15, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveTrendReport(ctx, day, []byte(`{"v":1}`)))
	require.NoError(t, store.SaveTrendReport(ctx, day.Add(2*time.Hour), []byte(`{"v":2}`)))

	require.Equal(t, 1, countRows(t, store, "trend_analysis"))

	var report string
	err := store.db.QueryRow(`SELECT report_data FROM trend_analysis`).Scan(&report)
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, report)
}

func TestAppendLog(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendLog(context.Background(), domain.ScrapeLogEntry{
		Status:  domain.StatusError,
		Message: "fetch failed",
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, store, "scrape_log"))
}

func TestLatestSummaryEmpty(t *testing.T) {
	store := newTestStore(t)

	summary, err := store.LatestSummary(context.Background())
	require.NoError(t, err)
	require.Nil(t, summary)

	stream, err := store.LatestStreamSnapshot(context.Background(), "Alberta Opportunity Stream")
	require.NoError(t, err)
	require.Nil(t, stream)
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
