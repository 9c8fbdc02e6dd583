// Package analysis derives descriptive statistics from the historical draw
// table: per-category draw frequency, score direction, seasonality,
// invitation volume and a score-band success estimate.
//
// The success estimate is a heuristic over past draw cutoffs, not a model
// of the selection process; it answers "how often would this score have
// cleared the bar", nothing more.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"aaiptracker/internal/domain"
)

// Trend directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"
)

// A score move within this margin is noise, not a trend.
const trendMargin = 5.0

// Comparison windows for score direction and recent invitation volume.
const recentWindow = 5

// Minimum data per category before a section reports on it.
const (
	minDrawsForFrequency   = 2
	minScoresForTrend      = 3
	minScoresForProbReport = 5
)

const dayLayout = "2006-01-02"

// Report is one day's full analysis. Map keys serialize sorted, so the
// same draws always produce byte-identical JSON.
type Report struct {
	GeneratedAt        string                         `json:"generated_at"`
	TotalDraws         int                            `json:"total_draws"`
	DateRange          DateRange                      `json:"date_range"`
	DrawFrequency      map[string]FrequencyStats      `json:"draw_frequency"`
	ScoreTrends        map[string]ScoreTrend          `json:"score_trends"`
	Seasonality        SeasonalPatterns               `json:"seasonality"`
	Invitations        map[string]InvitationStats     `json:"invitations"`
	SuccessProbability map[string]CategoryProbability `json:"success_probability"`
}

// DateRange bounds the draws the report was computed over.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// FrequencyStats describes the gaps between one category's consecutive
// draws. Categories with fewer than two draws have no gaps to describe.
type FrequencyStats struct {
	DrawCount          int     `json:"draw_count"`
	AvgIntervalDays    float64 `json:"avg_interval_days"`
	MedianIntervalDays float64 `json:"median_interval_days"`
	MinIntervalDays    int     `json:"min_interval_days"`
	MaxIntervalDays    int     `json:"max_interval_days"`
	LastDrawDate       string  `json:"last_draw_date"`
}

// ScoreTrend compares the last five scored draws against the five before
// them. With no full preceding window the direction defaults to stable.
type ScoreTrend struct {
	RecentAvg  float64 `json:"recent_avg"`
	RecentMin  int     `json:"recent_min"`
	RecentMax  int     `json:"recent_max"`
	Direction  string  `json:"direction"`
	DataPoints int     `json:"data_points"`
	AllTimeMin int     `json:"all_time_min"`
	AllTimeMax int     `json:"all_time_max"`
}

// SeasonalPatterns counts draws per calendar month and quarter across all
// years. Month keys are zero-padded so serialized order is chronological.
type SeasonalPatterns struct {
	ByMonth           map[string]int `json:"by_month"`
	ByQuarter         map[string]int `json:"by_quarter"`
	MostActiveMonth   PeriodCount    `json:"most_active_month"`
	MostActiveQuarter PeriodCount    `json:"most_active_quarter"`
}

// PeriodCount names the busiest period and its draw count.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// InvitationStats aggregates invitation volume for one category.
type InvitationStats struct {
	RecentAvg    int `json:"recent_avg"`
	RecentTotal  int `json:"recent_total"`
	AllTimeAvg   int `json:"all_time_avg"`
	AllTimeTotal int `json:"all_time_total"`
	MinIssued    int `json:"min_issued"`
	MaxIssued    int `json:"max_issued"`
}

// CategoryProbability estimates, per score band, how often a score in the
// band would have cleared one category's historical cutoffs. Categories
// with fewer than five scored draws are omitted: the percentages would be
// dominated by single draws.
type CategoryProbability struct {
	ByRange      []ScoreBand `json:"by_range"`
	MedianCutoff float64     `json:"median_cutoff"`
	RecentCutoff int         `json:"recent_cutoff"`
}

// ScoreBand is one row of a category's success table.
type ScoreBand struct {
	Range       string  `json:"range"`
	Probability float64 `json:"probability"`
	Label       string  `json:"label"`
}

// Score bands with their upper bounds.
var scoreBands = []struct {
	label string
	upper int
}{
	{"0-300", 300},
	{"301-400", 400},
	{"401-500", 500},
	{"501-600", 600},
	{"601+", 1200},
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Build computes the full report over draws ordered by date ascending.
func Build(draws []domain.DrawRecord, now time.Time) Report {
	return Report{
		GeneratedAt:        now.UTC().Format(time.RFC3339),
		TotalDraws:         len(draws),
		DateRange:          dateRange(draws),
		DrawFrequency:      drawFrequency(draws),
		ScoreTrends:        scoreTrends(draws),
		Seasonality:        seasonality(draws),
		Invitations:        invitations(draws),
		SuccessProbability: successProbabilities(draws),
	}
}

func dateRange(draws []domain.DrawRecord) DateRange {
	if len(draws) == 0 {
		return DateRange{}
	}
	earliest, latest := draws[0].DrawDate, draws[0].DrawDate
	for _, d := range draws[1:] {
		if d.DrawDate.Before(earliest) {
			earliest = d.DrawDate
		}
		if d.DrawDate.After(latest) {
			latest = d.DrawDate
		}
	}
	return DateRange{
		Earliest: earliest.Format(dayLayout),
		Latest:   latest.Format(dayLayout),
	}
}

func drawFrequency(draws []domain.DrawRecord) map[string]FrequencyStats {
	byCategory := groupByCategory(draws)

	out := make(map[string]FrequencyStats, len(byCategory))
	for category, group := range byCategory {
		if len(group) < minDrawsForFrequency {
			continue
		}

		intervals := make([]int, 0, len(group)-1)
		for i := 1; i < len(group); i++ {
			gap := group[i].DrawDate.Sub(group[i-1].DrawDate)
			intervals = append(intervals, int(gap.Hours()/24))
		}

		out[category] = FrequencyStats{
			DrawCount:          len(group),
			AvgIntervalDays:    round1(meanInt(intervals)),
			MedianIntervalDays: medianInt(intervals),
			MinIntervalDays:    minInt(intervals),
			MaxIntervalDays:    maxInt(intervals),
			LastDrawDate:       group[len(group)-1].DrawDate.Format(dayLayout),
		}
	}
	return out
}

// scoreTrends classifies every category with at least three scored draws.
// The direction compares the last five scores with the five before them;
// with fewer than ten scores there is no preceding window and the
// direction stays stable.
func scoreTrends(draws []domain.DrawRecord) map[string]ScoreTrend {
	byCategory := groupByCategory(draws)

	out := make(map[string]ScoreTrend, len(byCategory))
	for category, group := range byCategory {
		var scores []int
		for _, d := range group {
			if d.MinScore != nil {
				scores = append(scores, *d.MinScore)
			}
		}
		if len(scores) < minScoresForTrend {
			continue
		}

		recentStart := len(scores) - recentWindow
		if recentStart < 0 {
			recentStart = 0
		}
		recent := scores[recentStart:]

		trend := ScoreTrend{
			RecentAvg:  round1(meanInt(recent)),
			RecentMin:  minInt(recent),
			RecentMax:  maxInt(recent),
			Direction:  DirectionStable,
			DataPoints: len(scores),
			AllTimeMin: minInt(scores),
			AllTimeMax: maxInt(scores),
		}

		if len(scores) >= 2*recentWindow {
			older := scores[len(scores)-2*recentWindow : recentStart]
			switch delta := meanInt(recent) - meanInt(older); {
			case delta > trendMargin:
				trend.Direction = DirectionIncreasing
			case delta < -trendMargin:
				trend.Direction = DirectionDecreasing
			}
		}

		out[category] = trend
	}
	return out
}

func seasonality(draws []domain.DrawRecord) SeasonalPatterns {
	byMonth := make(map[string]int)
	byQuarter := make(map[string]int)
	monthCounts := make([]int, 12)
	quarterCounts := make([]int, 4)

	for _, d := range draws {
		month := int(d.DrawDate.Month())
		quarter := (month-1)/3 + 1

		byMonth[fmt.Sprintf("%02d", month)]++
		byQuarter[fmt.Sprintf("Q%d", quarter)]++
		monthCounts[month-1]++
		quarterCounts[quarter-1]++
	}

	// Ties resolve to the earliest period so output stays deterministic.
	out := SeasonalPatterns{ByMonth: byMonth, ByQuarter: byQuarter}
	for i, count := range monthCounts {
		if count > out.MostActiveMonth.Count {
			out.MostActiveMonth = PeriodCount{Period: monthNames[i], Count: count}
		}
	}
	for i, count := range quarterCounts {
		if count > out.MostActiveQuarter.Count {
			out.MostActiveQuarter = PeriodCount{Period: fmt.Sprintf("Q%d", i+1), Count: count}
		}
	}
	return out
}

func invitations(draws []domain.DrawRecord) map[string]InvitationStats {
	byCategory := groupByCategory(draws)

	out := make(map[string]InvitationStats, len(byCategory))
	for category, group := range byCategory {
		var issued []int
		for _, d := range group {
			if d.InvitationsIssued != nil {
				issued = append(issued, *d.InvitationsIssued)
			}
		}
		if len(issued) == 0 {
			continue
		}

		recentStart := len(issued) - recentWindow
		if recentStart < 0 {
			recentStart = 0
		}
		recent := issued[recentStart:]

		out[category] = InvitationStats{
			RecentAvg:    int(math.Round(meanInt(recent))),
			RecentTotal:  sumInt(recent),
			AllTimeAvg:   int(math.Round(meanInt(issued))),
			AllTimeTotal: sumInt(issued),
			MinIssued:    minInt(issued),
			MaxIssued:    maxInt(issued),
		}
	}
	return out
}

// successProbabilities reports, per category with at least five scored
// draws, the share of historical cutoffs each score band clears.
func successProbabilities(draws []domain.DrawRecord) map[string]CategoryProbability {
	byCategory := groupByCategory(draws)

	out := make(map[string]CategoryProbability, len(byCategory))
	for category, group := range byCategory {
		var cutoffs []int
		for _, d := range group {
			if d.MinScore != nil {
				cutoffs = append(cutoffs, *d.MinScore)
			}
		}
		if len(cutoffs) < minScoresForProbReport {
			continue
		}

		bands := make([]ScoreBand, 0, len(scoreBands))
		for _, band := range scoreBands {
			cleared := 0
			for _, cutoff := range cutoffs {
				if cutoff <= band.upper {
					cleared++
				}
			}
			probability := round1(float64(cleared) / float64(len(cutoffs)) * 100)
			bands = append(bands, ScoreBand{
				Range:       band.label,
				Probability: probability,
				Label:       probabilityLabel(probability),
			})
		}

		out[category] = CategoryProbability{
			ByRange:      bands,
			MedianCutoff: medianInt(cutoffs),
			RecentCutoff: cutoffs[len(cutoffs)-1],
		}
	}
	return out
}

func probabilityLabel(probability float64) string {
	switch {
	case probability >= 90:
		return "Very High"
	case probability >= 70:
		return "High"
	case probability >= 50:
		return "Moderate"
	case probability >= 30:
		return "Low"
	default:
		return "Very Low"
	}
}

// groupByCategory preserves the input's date ordering within each group.
func groupByCategory(draws []domain.DrawRecord) map[string][]domain.DrawRecord {
	out := make(map[string][]domain.DrawRecord)
	for _, d := range draws {
		out[d.StreamCategory] = append(out[d.StreamCategory], d)
	}
	return out
}

// Categories returns the sorted category names present in the draws.
func Categories(draws []domain.DrawRecord) []string {
	seen := make(map[string]struct{})
	for _, d := range draws {
		seen[d.StreamCategory] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func meanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// medianInt averages the middle pair for even-length input.
func medianInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func sumInt(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum
}

func minInt(values []int) int {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxInt(values []int) int {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
