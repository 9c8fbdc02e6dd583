package storage

import "fmt"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// schemaStatements returns the DDL for one driver. Everything is
// IF NOT EXISTS so opening a store migrates an empty database in place.
func schemaStatements(driver string) []string {
	id := "BIGSERIAL PRIMARY KEY"
	if driver == DriverSQLite {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS aaip_summary (
			id %s,
			timestamp TIMESTAMP NOT NULL,
			allocation INTEGER,
			issued INTEGER,
			spaces_remaining INTEGER,
			applications_to_process INTEGER,
			last_updated TEXT NOT NULL DEFAULT ''
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stream_snapshots (
			id %s,
			timestamp TIMESTAMP NOT NULL,
			stream_name TEXT NOT NULL,
			stream_type TEXT NOT NULL,
			parent_stream TEXT NOT NULL DEFAULT '',
			allocation INTEGER,
			issued INTEGER,
			spaces_remaining INTEGER,
			applications_to_process INTEGER,
			processing_date TEXT NOT NULL DEFAULT ''
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS draws (
			id %s,
			draw_date TIMESTAMP NOT NULL,
			stream_category TEXT NOT NULL,
			stream_detail TEXT NOT NULL DEFAULT '',
			min_score INTEGER,
			invitations_issued INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (draw_date, stream_category, stream_detail)
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS eoi_pool (
			id %s,
			timestamp TIMESTAMP NOT NULL,
			stream_name TEXT NOT NULL,
			candidate_count INTEGER NOT NULL
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scrape_log (
			id %s,
			timestamp TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			streams_collected INTEGER NOT NULL DEFAULT 0,
			draws_collected INTEGER NOT NULL DEFAULT 0,
			new_draws_added INTEGER NOT NULL DEFAULT 0
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS trend_analysis (
			id %s,
			analysis_date TEXT NOT NULL UNIQUE,
			report_data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, id),

		`CREATE INDEX IF NOT EXISTS idx_draws_date ON draws (draw_date)`,
		`CREATE INDEX IF NOT EXISTS idx_stream_snapshots_name ON stream_snapshots (stream_name, timestamp)`,
	}
}
