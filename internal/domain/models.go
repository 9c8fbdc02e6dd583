package domain

import "time"

// StreamType distinguishes top-level streams from Express Entry sub-pathways.
type StreamType string

const (
	StreamTypeMain       StreamType = "main"
	StreamTypeSubPathway StreamType = "sub-pathway"
)

// SummarySnapshot is the program-wide nomination summary captured on a run
// where values changed. Rows are append-only and never updated.
//
// Numeric fields are pointers because the page sometimes redacts values
// ("Less than 10") or changes wording; extraction degrades to nil rather
// than failing the run.
type SummarySnapshot struct {
	ID                    int64
	Timestamp             time.Time
	Allocation            *int
	Issued                *int
	SpacesRemaining       *int
	ApplicationsToProcess *int
	LastUpdated           string
}

// StreamSnapshot is one stream's (or sub-pathway's) numbers at a point in
// time. Sub-pathway rows always carry the parent stream's name.
type StreamSnapshot struct {
	ID                    int64
	Timestamp             time.Time
	StreamName            string
	StreamType            StreamType
	ParentStream          string
	Allocation            *int
	Issued                *int
	SpacesRemaining       *int
	ApplicationsToProcess *int
	ProcessingDate        string
}

// DrawRecord is a single invitation round. The natural key is
// (DrawDate, StreamCategory, StreamDetail) with "" meaning no detail.
// Upserts overwrite MinScore/InvitationsIssued only; identity fields and
// CreatedAt are immutable.
type DrawRecord struct {
	ID                int64
	DrawDate          time.Time
	StreamCategory    string
	StreamDetail      string
	MinScore          *int
	InvitationsIssued *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EOIPoolSnapshot is an append-only observation of a stream's pending
// candidate pool size.
type EOIPoolSnapshot struct {
	ID             int64
	Timestamp      time.Time
	StreamName     string
	CandidateCount int
}

// ScrapeStatus enumerates audit-log outcomes.
type ScrapeStatus string

const (
	StatusSuccess  ScrapeStatus = "success"
	StatusNoChange ScrapeStatus = "no_change"
	StatusError    ScrapeStatus = "error"
)

// ScrapeLogEntry is the audit row written exactly once per pipeline run.
type ScrapeLogEntry struct {
	ID               int64
	Timestamp        time.Time
	Status           ScrapeStatus
	Message          string
	StreamsCollected int
	DrawsCollected   int
	NewDrawsAdded    int
}

// PageSnapshot is the in-memory result of one scrape of the processing
// information page, before change detection and persistence.
type PageSnapshot struct {
	Timestamp   time.Time
	LastUpdated string
	Summary     *SummarySnapshot
	Streams     []StreamSnapshot
	Draws       []DrawRecord
}

// RunStats summarizes what a persisted run actually wrote.
type RunStats struct {
	SnapshotsSaved   bool
	StreamsCollected int
	DrawsProcessed   int
	NewDraws         int
	UpdatedDraws     int
}
