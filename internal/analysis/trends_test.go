package analysis

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"aaiptracker/internal/domain"
)

func ip(v int) *int { return &v }

// drawSeries builds n draws for one category, two weeks apart, with the
// given scores (nil entries mean an unscored draw).
func drawSeries(category string, start time.Time, scores []*int) []domain.DrawRecord {
	draws := make([]domain.DrawRecord, 0, len(scores))
	for i, score := range scores {
		draws = append(draws, domain.DrawRecord{
			DrawDate:          start.AddDate(0, 0, 14*i),
			StreamCategory:    category,
			MinScore:          score,
			InvitationsIssued: ip(50),
		})
	}
	return draws
}

func TestDrawFrequency(t *testing.T) {
	t.Parallel()

	// Gaps of 7, 21 and 14 days.
	dates := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC),
	}
	var draws []domain.DrawRecord
	for _, d := range dates {
		draws = append(draws, domain.DrawRecord{DrawDate: d, StreamCategory: "Alberta Opportunity Stream"})
	}

	freq := drawFrequency(draws)
	stats, ok := freq["Alberta Opportunity Stream"]
	if !ok {
		t.Fatal("category missing from frequency map")
	}
	if stats.DrawCount != 4 {
		t.Errorf("draw count = %d; want 4", stats.DrawCount)
	}
	if stats.AvgIntervalDays != 14 {
		t.Errorf("avg interval = %v; want 14", stats.AvgIntervalDays)
	}
	if stats.MedianIntervalDays != 14 {
		t.Errorf("median interval = %v; want 14", stats.MedianIntervalDays)
	}
	if stats.MinIntervalDays != 7 || stats.MaxIntervalDays != 21 {
		t.Errorf("interval bounds = (%d, %d); want (7, 21)", stats.MinIntervalDays, stats.MaxIntervalDays)
	}
	if stats.LastDrawDate != "2024-02-12" {
		t.Errorf("last draw date = %q", stats.LastDrawDate)
	}
}

func TestDrawFrequencySkipsSingleDrawCategory(t *testing.T) {
	t.Parallel()

	draws := []domain.DrawRecord{
		{DrawDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), StreamCategory: "Other"},
	}
	if freq := drawFrequency(draws); len(freq) != 0 {
		t.Errorf("frequency = %v; want no entry for a single-draw category", freq)
	}
}

func TestScoreTrendDirections(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		scores []*int
		want   string
	}{
		{
			name:   "increasing",
			scores: []*int{ip(300), ip(300), ip(300), ip(300), ip(300), ip(340), ip(340), ip(340), ip(340), ip(340)},
			want:   DirectionIncreasing,
		},
		{
			name:   "decreasing",
			scores: []*int{ip(340), ip(340), ip(340), ip(340), ip(340), ip(300), ip(300), ip(300), ip(300), ip(300)},
			want:   DirectionDecreasing,
		},
		{
			name: "stable within margin",
			scores: []*int{
				ip(300), ip(300), ip(300), ip(300), ip(300),
				ip(304), ip(304), ip(304), ip(304), ip(304),
			},
			want: DirectionStable,
		},
		{
			// No full preceding window; defaults to stable rather than
			// guessing a direction from a partial one.
			name:   "three draws",
			scores: []*int{ip(300), ip(310), ip(320)},
			want:   DirectionStable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			draws := drawSeries("Alberta Express Entry Stream", start, tt.scores)
			trends := scoreTrends(draws)
			trend, ok := trends["Alberta Express Entry Stream"]
			if !ok {
				t.Fatal("category missing from trends map")
			}
			if trend.Direction != tt.want {
				t.Errorf("direction = %q; want %q (recent avg %v)", trend.Direction, tt.want, trend.RecentAvg)
			}
		})
	}
}

func TestScoreTrendBelowMinimumOmitted(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	draws := drawSeries("Rural Renewal Stream", start, []*int{nil, ip(300), ip(310)})

	// Two scored draws out of three rows: below the three-score minimum.
	if trends := scoreTrends(draws); len(trends) != 0 {
		t.Errorf("trends = %v; want no entry below three scored draws", trends)
	}
}

func TestScoreTrendRangesAndCounts(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	draws := drawSeries("Alberta Opportunity Stream", start,
		[]*int{ip(280), ip(360), ip(300), ip(310), ip(320), ip(330), ip(340)})

	trend := scoreTrends(draws)["Alberta Opportunity Stream"]
	if trend.DataPoints != 7 {
		t.Errorf("data points = %d; want 7", trend.DataPoints)
	}
	// Recent window is the last five: 300..340.
	if trend.RecentAvg != 320 || trend.RecentMin != 300 || trend.RecentMax != 340 {
		t.Errorf("recent = (%v, %d, %d); want (320, 300, 340)", trend.RecentAvg, trend.RecentMin, trend.RecentMax)
	}
	if trend.AllTimeMin != 280 || trend.AllTimeMax != 360 {
		t.Errorf("all-time = (%d, %d); want (280, 360)", trend.AllTimeMin, trend.AllTimeMax)
	}
}

func TestSeasonality(t *testing.T) {
	t.Parallel()

	draws := []domain.DrawRecord{
		{DrawDate: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{DrawDate: time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)},
		{DrawDate: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{DrawDate: time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)},
	}

	got := seasonality(draws)
	if got.ByMonth["06"] != 2 {
		t.Errorf("June count = %d; want 2 across years", got.ByMonth["06"])
	}
	if got.ByQuarter["Q2"] != 3 {
		t.Errorf("Q2 count = %d; want 3 (April + two Junes)", got.ByQuarter["Q2"])
	}
	if got.ByQuarter["Q4"] != 1 {
		t.Errorf("Q4 count = %d; want 1", got.ByQuarter["Q4"])
	}
	if got.MostActiveMonth.Period != "June" || got.MostActiveMonth.Count != 2 {
		t.Errorf("most active month = %+v; want June/2", got.MostActiveMonth)
	}
	if got.MostActiveQuarter.Period != "Q2" || got.MostActiveQuarter.Count != 3 {
		t.Errorf("most active quarter = %+v; want Q2/3", got.MostActiveQuarter)
	}
}

func TestInvitationStats(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	counts := []int{10, 20, 30, 40, 50, 60, 70}
	var draws []domain.DrawRecord
	for i, c := range counts {
		draws = append(draws, domain.DrawRecord{
			DrawDate:          start.AddDate(0, 0, 14*i),
			StreamCategory:    "Alberta Opportunity Stream",
			InvitationsIssued: ip(c),
		})
	}

	stats := invitations(draws)["Alberta Opportunity Stream"]
	// Recent window is the last five: 30..70.
	if stats.RecentAvg != 50 || stats.RecentTotal != 250 {
		t.Errorf("recent = (%d, %d); want (50, 250)", stats.RecentAvg, stats.RecentTotal)
	}
	if stats.AllTimeAvg != 40 || stats.AllTimeTotal != 280 {
		t.Errorf("all-time = (%d, %d); want (40, 280)", stats.AllTimeAvg, stats.AllTimeTotal)
	}
	if stats.MinIssued != 10 || stats.MaxIssued != 70 {
		t.Errorf("bounds = (%d, %d); want (10, 70)", stats.MinIssued, stats.MaxIssued)
	}
}

// Each category gets its own probability table; merging them would let one
// stream's high cutoffs dilute another's.
func TestSuccessProbabilitiesPerCategory(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	var draws []domain.DrawRecord
	draws = append(draws, drawSeries("Alberta Opportunity Stream", start,
		[]*int{ip(300), ip(305), ip(310), ip(315), ip(320)})...)
	draws = append(draws, drawSeries("Alberta Express Entry Stream", start,
		[]*int{ip(600), ip(610), ip(620), ip(630), ip(640)})...)

	probs := successProbabilities(draws)
	if len(probs) != 2 {
		t.Fatalf("categories = %d; want 2", len(probs))
	}

	aos := probs["Alberta Opportunity Stream"]
	ee := probs["Alberta Express Entry Stream"]

	// 301-400 band: every AOS cutoff is at or below 400, no EE cutoff is.
	if got := aos.ByRange[1]; got.Range != "301-400" || got.Probability != 100 || got.Label != "Very High" {
		t.Errorf("AOS 301-400 = %+v; want 100%% Very High", got)
	}
	if got := ee.ByRange[1]; got.Probability != 0 || got.Label != "Very Low" {
		t.Errorf("EE 301-400 = %+v; want 0%% Very Low", got)
	}

	if aos.MedianCutoff != 310 {
		t.Errorf("AOS median cutoff = %v; want 310", aos.MedianCutoff)
	}
	if aos.RecentCutoff != 320 {
		t.Errorf("AOS recent cutoff = %d; want 320", aos.RecentCutoff)
	}
	if ee.MedianCutoff != 620 || ee.RecentCutoff != 640 {
		t.Errorf("EE cutoffs = (%v, %d); want (620, 640)", ee.MedianCutoff, ee.RecentCutoff)
	}
}

func TestSuccessProbabilitiesLabels(t *testing.T) {
	t.Parallel()

	// Cutoffs 290, 310, 450, 455, 460: a 300 clears 1 of 5, a 400 clears
	// 2, a 500 clears all.
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	draws := drawSeries("Alberta Opportunity Stream", start,
		[]*int{ip(290), ip(310), ip(450), ip(455), ip(460)})

	bands := successProbabilities(draws)["Alberta Opportunity Stream"].ByRange
	if len(bands) != 5 {
		t.Fatalf("bands = %d; want 5", len(bands))
	}

	expected := []struct {
		rng         string
		probability float64
		label       string
	}{
		{"0-300", 20, "Very Low"},
		{"301-400", 40, "Low"},
		{"401-500", 100, "Very High"},
		{"501-600", 100, "Very High"},
		{"601+", 100, "Very High"},
	}
	for i, want := range expected {
		if bands[i].Range != want.rng || bands[i].Probability != want.probability || bands[i].Label != want.label {
			t.Errorf("band %d = %+v; want %+v", i, bands[i], want)
		}
	}
}

func TestSuccessProbabilitiesMinimumScores(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	draws := drawSeries("Rural Renewal Stream", start,
		[]*int{ip(300), ip(310), ip(320), ip(330)})

	if probs := successProbabilities(draws); len(probs) != 0 {
		t.Errorf("probabilities = %v; want no entry below five scored draws", probs)
	}
}

func TestDateRange(t *testing.T) {
	t.Parallel()

	draws := []domain.DrawRecord{
		{DrawDate: time.Date(2024, time.June, 11, 0, 0, 0, 0, time.UTC)},
		{DrawDate: time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)},
		{DrawDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
	}

	got := dateRange(draws)
	if got.Earliest != "2023-01-05" || got.Latest != "2024-06-11" {
		t.Errorf("date range = %+v", got)
	}
}

func TestBuildDeterministicJSON(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	var draws []domain.DrawRecord
	draws = append(draws, drawSeries("Alberta Opportunity Stream", start,
		[]*int{ip(310), ip(320), ip(315), ip(305), ip(300), ip(325)})...)
	draws = append(draws, drawSeries("Alberta Express Entry Stream", start,
		[]*int{ip(340), ip(335), ip(330)})...)
	draws = append(draws, drawSeries("Rural Renewal Stream", start, []*int{nil})...)

	now := time.Date(2025, time.November, 18, 12, 0, 0, 0, time.UTC)

	first, err := json.Marshal(Build(draws, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Build(draws, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("same input produced different report bytes")
	}
}

func TestCategories(t *testing.T) {
	t.Parallel()

	draws := []domain.DrawRecord{
		{StreamCategory: "Rural Renewal Stream"},
		{StreamCategory: "Alberta Opportunity Stream"},
		{StreamCategory: "Rural Renewal Stream"},
	}

	got := Categories(draws)
	want := []string{"Alberta Opportunity Stream", "Rural Renewal Stream"}
	if len(got) != len(want) {
		t.Fatalf("categories = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("categories[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}
