package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"aaiptracker/internal/config"
	"aaiptracker/internal/domain"
	"aaiptracker/internal/extract"
	"aaiptracker/internal/ports"
	"aaiptracker/internal/streams"
)

// Detail text in the PDF can run long when a row wraps; anything past this
// is boilerplate, not identity.
const maxDetailLen = 200

var (
	// A draw line: date, invitation count, then the stream description.
	drawLineExpr = regexp.MustCompile(`^([A-Z][a-z]+ \d{1,2}, \d{4})\s+(\d+)\s+(.+)$`)
	// Used to tell a wrapped continuation line from the next draw.
	dateStartExpr = regexp.MustCompile(`^[A-Z][a-z]+ \d{1,2}, \d{4}`)
	// Minimum scores are always three digits in the summary PDF.
	scoreExpr = regexp.MustCompile(`(\d{3})`)
)

// PDFHistory extracts historical draw records from the annual draw-history
// summary PDF published alongside the page.
type PDFHistory struct {
	client *http.Client
	cfg    config.PDFHistoryConfig
	cat    *streams.Categorizer
	logger *slog.Logger
}

var _ ports.DrawHistorySource = (*PDFHistory)(nil)

// NewPDFHistory wires an HTTP client; the PDF is a slow multi-megabyte
// download, so a nil client gets a 60s timeout.
func NewPDFHistory(client *http.Client, cfg config.PDFHistoryConfig, cat *streams.Categorizer, logger *slog.Logger) *PDFHistory {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &PDFHistory{client: client, cfg: cfg, cat: cat, logger: logger}
}

// FetchDraws downloads the PDF, extracts its text, and parses draw records
// for the given year. A year of zero keeps every parsed row.
func (p *PDFHistory) FetchDraws(ctx context.Context, year int) ([]domain.DrawRecord, error) {
	data, err := p.download(ctx)
	if err != nil {
		return nil, err
	}

	text, err := plainText(data)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	draws := p.parseDraws(text, year)
	if p.logger != nil {
		p.logger.Debug("pdf history parsed", "year", year, "draws", len(draws))
	}
	return draws, nil
}

func (p *PDFHistory) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", p.cfg.URL, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	return data, nil
}

func plainText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// parseDraws walks the text line by line. A row can wrap onto the next
// line; a line that does not start with a date is treated as the tail of
// the previous row's stream description.
func (p *PDFHistory) parseDraws(text string, year int) []domain.DrawRecord {
	lines := strings.Split(text, "\n")

	var draws []domain.DrawRecord
	for i := 0; i < len(lines); i++ {
		m := drawLineExpr.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}

		drawDate, ok := extract.Date(m[1])
		if !ok {
			continue
		}
		if year != 0 && drawDate.Year() != year {
			continue
		}

		streamText := strings.TrimSpace(m[3])
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && !dateStartExpr.MatchString(next) {
				streamText += " " + next
				i++
			}
		}

		invitations := extract.IntegerPtr(m[2])
		var minScore *int
		if sm := scoreExpr.FindStringSubmatch(streamText); sm != nil {
			minScore = extract.IntegerPtr(sm[1])
		}

		category, _ := p.cat.Categorize(streamText)
		draws = append(draws, domain.DrawRecord{
			DrawDate:          drawDate,
			StreamCategory:    category,
			StreamDetail:      capDetail(streamText),
			MinScore:          minScore,
			InvitationsIssued: invitations,
		})
	}

	return draws
}

func capDetail(text string) string {
	runes := []rune(text)
	if len(runes) <= maxDetailLen {
		return text
	}
	return string(runes[:maxDetailLen])
}
