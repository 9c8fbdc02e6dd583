package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aaiptracker/internal/config"
	"aaiptracker/internal/domain"
	"aaiptracker/internal/extract"
	"aaiptracker/internal/ports"
)

// EOIScraper reads per-stream Expression of Interest pool sizes from an
// optional secondary page. With no URL configured it reports an empty pool.
type EOIScraper struct {
	client *http.Client
	cfg    config.EOIConfig
	logger *slog.Logger
}

var _ ports.EOISource = (*EOIScraper)(nil)

func NewEOIScraper(client *http.Client, cfg config.EOIConfig, logger *slog.Logger) *EOIScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EOIScraper{client: client, cfg: cfg, logger: logger}
}

// FetchPool collects stream-name/candidate-count pairs. Rows whose count
// cell does not parse are skipped rather than failing the whole pool.
func (s *EOIScraper) FetchPool(ctx context.Context) ([]domain.EOIPoolSnapshot, error) {
	if s.cfg.URL == "" {
		return nil, nil
	}

	doc, err := fetchDocument(ctx, s.client, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	table := s.poolTable(doc)
	if table == nil {
		if s.logger != nil {
			s.logger.Debug("eoi pool table not found", "heading", s.cfg.Heading)
		}
		return nil, nil
	}

	ts := time.Now()
	var pool []domain.EOIPoolSnapshot
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 2 {
			return
		}
		count, ok := extract.Integer(cells[1])
		if !ok {
			return
		}
		pool = append(pool, domain.EOIPoolSnapshot{
			Timestamp:      ts,
			StreamName:     cells[0],
			CandidateCount: count,
		})
	})

	return pool, nil
}

func (s *EOIScraper) poolTable(doc *goquery.Document) *goquery.Selection {
	if s.cfg.Heading != "" {
		return nextTable(findHeading(doc, s.cfg.Heading))
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil
	}
	return table
}
