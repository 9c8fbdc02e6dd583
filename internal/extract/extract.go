// Package extract converts raw scraped cell text into typed values.
// Every function is total over arbitrary input: the page structure is not
// controlled by this system, so malformed text degrades to a missing value
// instead of an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayout matches the "Month D, YYYY" format the AAIP page uses.
const dateLayout = "January 2, 2006"

var lessThanExpr = regexp.MustCompile(`less than (\d+)`)

// Integer parses a scraped numeric cell. Thousands separators are
// stripped. "Less than N" (any case) yields N-1 as a conservative
// estimate of the redacted count; a bare "less than" with no number
// yields 5, matching the page's usual "Less than 10" redaction.
func Integer(text string) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, false
	}

	if strings.Contains(text, "less than") {
		if m := lessThanExpr.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, false
			}
			return n - 1, true
		}
		return 5, true
	}

	n, err := strconv.Atoi(strings.ReplaceAll(text, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// IntegerPtr is Integer for callers storing nullable values.
func IntegerPtr(text string) *int {
	n, ok := Integer(text)
	if !ok {
		return nil
	}
	return &n
}

// Date parses a "Month D, YYYY" cell. Any other format reports false;
// the caller is expected to log and skip, not fail the run.
func Date(text string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
