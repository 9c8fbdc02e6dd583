// Package scraper extracts AAIP data from the processing-information page,
// the EOI pool page, and the annual draw-history PDF.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"aaiptracker/internal/config"
	"aaiptracker/internal/domain"
	"aaiptracker/internal/extract"
	"aaiptracker/internal/ports"
	"aaiptracker/internal/streams"
)

// The upstream site rejects obviously non-browser agents.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// PageScraper turns the processing-information page into a PageSnapshot.
// A missing section degrades to zero records for that section; only an
// unreachable page is fatal.
type PageScraper struct {
	client *http.Client
	cfg    config.SourceConfig
	cat    *streams.Categorizer
	logger *slog.Logger
}

var _ ports.PageSource = (*PageScraper)(nil)

// NewPageScraper wires an HTTP client; a nil client gets the configured
// timeout applied.
func NewPageScraper(client *http.Client, cfg config.SourceConfig, cat *streams.Categorizer, logger *slog.Logger) *PageScraper {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	return &PageScraper{client: client, cfg: cfg, cat: cat, logger: logger}
}

// FetchSnapshot fetches the page once and extracts the summary, all
// configured stream sections, and the draw-history table.
func (s *PageScraper) FetchSnapshot(ctx context.Context) (*domain.PageSnapshot, error) {
	doc, err := fetchDocument(ctx, s.client, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	snap := &domain.PageSnapshot{
		Timestamp:   time.Now(),
		LastUpdated: lastUpdatedText(doc),
	}

	snap.Summary = s.scrapeSummary(doc, snap.Timestamp)
	if snap.Summary != nil {
		snap.Summary.LastUpdated = snap.LastUpdated
	}
	snap.Streams = s.scrapeStreams(doc, snap.Timestamp)
	snap.Draws = s.scrapeDraws(doc)

	s.debug("page scraped",
		"summary", snap.Summary != nil,
		"streams", len(snap.Streams),
		"draws", len(snap.Draws))

	return snap, nil
}

func (s *PageScraper) scrapeSummary(doc *goquery.Document, ts time.Time) *domain.SummarySnapshot {
	table := nextTable(findHeading(doc, s.cfg.SummaryHeading))
	if table == nil {
		s.debug("summary section missing", "heading", s.cfg.SummaryHeading)
		return nil
	}

	cells := rowCells(table.Find("tbody tr").First())
	if len(cells) < 4 {
		s.debug("summary row malformed", "cells", len(cells))
		return nil
	}

	return &domain.SummarySnapshot{
		Timestamp:             ts,
		Allocation:            extract.IntegerPtr(cells[0]),
		Issued:                extract.IntegerPtr(cells[1]),
		SpacesRemaining:       extract.IntegerPtr(cells[2]),
		ApplicationsToProcess: extract.IntegerPtr(cells[3]),
	}
}

func (s *PageScraper) scrapeStreams(doc *goquery.Document, ts time.Time) []domain.StreamSnapshot {
	var collected []domain.StreamSnapshot

	for _, heading := range s.cfg.MainSections {
		table := nextTable(findHeading(doc, heading))
		if table == nil {
			s.debug("stream section missing", "heading", heading)
			continue
		}

		cells := rowCells(table.Find("tbody tr").First())
		if len(cells) < 5 {
			s.debug("stream row malformed", "heading", heading, "cells", len(cells))
			continue
		}

		collected = append(collected, domain.StreamSnapshot{
			Timestamp:             ts,
			StreamName:            heading,
			StreamType:            domain.StreamTypeMain,
			Allocation:            extract.IntegerPtr(cells[0]),
			Issued:                extract.IntegerPtr(cells[1]),
			SpacesRemaining:       extract.IntegerPtr(cells[2]),
			ApplicationsToProcess: extract.IntegerPtr(cells[3]),
			ProcessingDate:        cells[4],
		})
	}

	collected = append(collected, s.scrapeExpressEntry(doc, ts)...)
	return collected
}

// scrapeExpressEntry reads the Express Entry table, whose rows are sibling
// sub-pathways rather than a single stream.
func (s *PageScraper) scrapeExpressEntry(doc *goquery.Document, ts time.Time) []domain.StreamSnapshot {
	table := nextTable(findHeading(doc, s.cfg.ExpressEntryHeading))
	if table == nil {
		s.debug("express entry section missing", "heading", s.cfg.ExpressEntryHeading)
		return nil
	}

	var collected []domain.StreamSnapshot
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 6 {
			return
		}

		collected = append(collected, domain.StreamSnapshot{
			Timestamp:             ts,
			StreamName:            fmt.Sprintf("Express Entry - %s", cells[0]),
			StreamType:            domain.StreamTypeSubPathway,
			ParentStream:          s.cfg.ExpressEntryParent,
			Allocation:            extract.IntegerPtr(cells[1]),
			Issued:                extract.IntegerPtr(cells[2]),
			SpacesRemaining:       extract.IntegerPtr(cells[3]),
			ApplicationsToProcess: extract.IntegerPtr(cells[4]),
			ProcessingDate:        cells[5],
		})
	})

	return collected
}

// scrapeDraws locates the draw-history table by its header text rather
// than page position, which is not guaranteed.
func (s *PageScraper) scrapeDraws(doc *goquery.Document) []domain.DrawRecord {
	table := findTableByHeaders(doc, s.cfg.DrawHeaderTokens)
	if table == nil {
		s.debug("draw table not found", "tokens", strings.Join(s.cfg.DrawHeaderTokens, ","))
		return nil
	}

	var draws []domain.DrawRecord
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 4 {
			return
		}

		drawDate, ok := extract.Date(cells[0])
		if !ok {
			s.debug("draw row skipped, bad date", "date", cells[0])
			return
		}

		category, detail := s.cat.Categorize(cells[1])
		draws = append(draws, domain.DrawRecord{
			DrawDate:          drawDate,
			StreamCategory:    category,
			StreamDetail:      detail,
			MinScore:          extract.IntegerPtr(cells[2]),
			InvitationsIssued: extract.IntegerPtr(cells[3]),
		})
	})

	return draws
}

func (s *PageScraper) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// findHeading matches a section heading by exact trimmed text.
func findHeading(doc *goquery.Document, text string) *goquery.Selection {
	heading := doc.Find("h2").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return strings.TrimSpace(sel.Text()) == text
	}).First()
	if heading.Length() == 0 {
		return nil
	}
	return heading
}

// nextTable returns the first table after the heading in document order.
// Headings and their tables are not guaranteed to be siblings on this
// page, so plain sibling traversal is not enough.
func nextTable(heading *goquery.Selection) *goquery.Selection {
	if heading == nil || len(heading.Nodes) == 0 {
		return nil
	}

	for n := successor(heading.Nodes[0]); n != nil; n = successor(n) {
		if n.Type == html.ElementNode && n.Data == "table" {
			return goquery.NewDocumentFromNode(n).Selection
		}
	}
	return nil
}

// successor walks the DOM in document order.
func successor(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for n != nil {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
	}
	return nil
}

// findTableByHeaders returns the first table whose header row contains
// every token, in any order.
func findTableByHeaders(doc *goquery.Document, tokens []string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := table.Find("thead").Text()
		for _, token := range tokens {
			if !strings.Contains(header, token) {
				return true
			}
		}
		found = table
		return false
	})
	return found
}

// rowCells collects trimmed td text in column order.
func rowCells(row *goquery.Selection) []string {
	if row == nil {
		return nil
	}
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

// lastUpdatedText pulls the text following the "Last updated" strong tag.
func lastUpdatedText(doc *goquery.Document) string {
	var updated string
	doc.Find("strong").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(sel.Text(), "Last updated") {
			return true
		}
		if node := sel.Get(0); node.NextSibling != nil && node.NextSibling.Type == html.TextNode {
			updated = strings.Trim(node.NextSibling.Data, ":  \n\t")
		}
		return false
	})
	return updated
}
