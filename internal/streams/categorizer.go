// Package streams maps free-text stream descriptions onto the fixed AAIP
// stream taxonomy. The pattern tables are data, not logic: upstream wording
// changes are handled by editing configuration, not code.
package streams

import (
	"regexp"
	"strings"
)

// CategoryOther is the fallback for descriptions no pattern matches.
const CategoryOther = "Other"

// Known category names.
const (
	CategoryOpportunity  = "Alberta Opportunity Stream"
	CategoryExpressEntry = "Alberta Express Entry Stream"
	CategoryHealthCare   = "Dedicated Health Care Pathway"
	CategoryTourism      = "Tourism and Hospitality Stream"
	CategoryRural        = "Rural Renewal Stream"
)

// Rule maps substring patterns onto one category. Rules are evaluated in
// order; the first matching pattern wins.
type Rule struct {
	Category string
	Patterns []string
}

// Categorizer resolves (category, detail) pairs from scraped stream text.
type Categorizer struct {
	rules     []Rule
	overrides []string
	fold      bool
}

var (
	parensExpr = regexp.MustCompile(`\(([^)]+)\)`)

	// Named pathways whose detail must win over the generic dash-split
	// rule, since they also appear after a dash in some wordings.
	detailOverrides = []string{
		"Accelerated Tech Pathway",
		"Law Enforcement Pathway",
	}
)

// DefaultPageRules is the pattern table for the processing-information
// page, where stream wording is stable and matched case-sensitively.
func DefaultPageRules() []Rule {
	return []Rule{
		{Category: CategoryOpportunity, Patterns: []string{"Alberta Opportunity Stream"}},
		{Category: CategoryExpressEntry, Patterns: []string{"Alberta Express Entry"}},
		{Category: CategoryHealthCare, Patterns: []string{"Dedicated Health Care Pathway"}},
		{Category: CategoryTourism, Patterns: []string{"Tourism and Hospitality Stream"}},
		{Category: CategoryRural, Patterns: []string{"Rural Renewal Stream"}},
	}
}

// DefaultPDFRules is the looser table for the draw-history PDF, whose free
// text uses abbreviations and inconsistent casing.
func DefaultPDFRules() []Rule {
	return []Rule{
		{Category: CategoryOpportunity, Patterns: []string{"Alberta Opportunity", "AOS"}},
		{Category: CategoryExpressEntry, Patterns: []string{"Alberta Express Entry", "Express Entry"}},
		{Category: CategoryHealthCare, Patterns: []string{"Health Care", "Healthcare"}},
		{Category: CategoryTourism, Patterns: []string{"Tourism", "Hospitality"}},
		{Category: CategoryRural, Patterns: []string{"Rural Renewal", "RRS"}},
	}
}

// NewCategorizer builds a categorizer over the given rule table. fold
// selects case-insensitive matching (used for PDF text).
func NewCategorizer(rules []Rule, fold bool) *Categorizer {
	return &Categorizer{rules: rules, overrides: detailOverrides, fold: fold}
}

// Categorize resolves the main category and an optional detail string.
// Detail precedence: named-pathway overrides, then text after an em-dash,
// then parenthesized text when the phrase "Priority Sectors" is present.
// An empty detail means none applies.
func (c *Categorizer) Categorize(text string) (category, detail string) {
	text = strings.TrimSpace(text)
	category = c.matchCategory(text)

	if i := strings.Index(text, "–"); i >= 0 {
		detail = strings.TrimSpace(text[i+len("–"):])
	} else if strings.Contains(text, "Priority Sectors") {
		if m := parensExpr.FindStringSubmatch(text); m != nil {
			detail = m[1]
		}
	}

	for _, o := range c.overrides {
		if strings.Contains(text, o) {
			detail = o
			break
		}
	}

	return category, detail
}

func (c *Categorizer) matchCategory(text string) string {
	probe := text
	if c.fold {
		probe = strings.ToLower(text)
	}
	for _, rule := range c.rules {
		for _, pattern := range rule.Patterns {
			if c.fold {
				pattern = strings.ToLower(pattern)
			}
			if strings.Contains(probe, pattern) {
				return rule.Category
			}
		}
	}
	return CategoryOther
}
