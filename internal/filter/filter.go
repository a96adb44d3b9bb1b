package filter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pdf"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// ErrTextUnavailable means no usable text could be pulled from the PDF.
// Callers should fall back to the unfiltered document.
var ErrTextUnavailable = errors.New("pdf text unavailable")

// PageIterator yields pages in document order.
type PageIterator interface {
	Next() bool
	Page() models.PdfPage
	Err() error
}

// PageFilter selects the pages of an RFP worth sending to an LLM.
type PageFilter struct {
	cfg    Config
	scorer *Scorer
	log    logger.Logger
}

func New(cfg Config, log logger.Logger) *PageFilter {
	cfg = cfg.withDefaults()
	return &PageFilter{cfg: cfg, scorer: NewScorer(cfg), log: log}
}

func (f *PageFilter) Config() Config {
	return f.cfg
}

// Filter scores every page and applies the retention policy.
func (f *PageFilter) Filter(pages []models.PdfPage, totalPages int) models.FilterResult {
	totalPages = max(totalPages, len(pages))

	var always, candidates []models.PdfPage
	var full strings.Builder
	for _, p := range pages {
		p = f.scorer.ScorePage(p)
		full.WriteString(p.Text)
		full.WriteString("\n")

		switch {
		case p.IsDrawing || f.scorer.IsMustKeep(p.Text):
			always = append(always, p)
		case p.Score >= f.cfg.Threshold:
			candidates = append(candidates, p)
		}
	}

	retained := f.retain(always, candidates, totalPages)
	if len(retained) == 0 {
		retained = leadingPages(pages, f.cfg.FallbackPages)
		f.log.Warn("No page reached the signal threshold; keeping the first %d pages", len(retained))
	}

	result := buildResult(retained, totalPages)
	result.FullText = full.String()
	f.log.Info("Filtered %d of %d pages (%d drawing candidates)", result.RetainedPages, totalPages, len(result.DrawingCandidates))
	return result
}

// FilterStream runs tournament selection over fixed-size chunks so that only
// chunk survivors are held in memory. Drawings and must-keep pages always survive.
func (f *PageFilter) FilterStream(ctx context.Context, it PageIterator, totalPages int) (models.FilterResult, error) {
	var always, survivors, chunk, head []models.PdfPage
	seen := 0

	flush := func() {
		sortByScore(chunk)
		if len(chunk) > f.cfg.TopPerChunk {
			chunk = chunk[:f.cfg.TopPerChunk]
		}
		survivors = append(survivors, chunk...)
		chunk = nil
	}

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return models.FilterResult{}, err
		}
		p := f.scorer.ScorePage(it.Page())
		seen++
		if len(head) < f.cfg.FallbackPages {
			head = append(head, p)
		}

		switch {
		case p.IsDrawing || f.scorer.IsMustKeep(p.Text):
			always = append(always, p)
		case p.Score >= f.cfg.Threshold:
			chunk = append(chunk, p)
		}

		if seen%f.cfg.ChunkSize == 0 {
			flush()
		}
	}
	if err := it.Err(); err != nil {
		return models.FilterResult{}, fmt.Errorf("failed reading pages: %w", err)
	}
	flush()

	totalPages = max(totalPages, seen)
	f.log.Debug("Tournament kept %d chunk survivors and %d must-keep pages", len(survivors), len(always))

	retained := f.retain(always, survivors, totalPages)
	if len(retained) == 0 {
		retained = head
		f.log.Warn("No page reached the signal threshold; keeping the first %d pages", len(retained))
	}

	result := buildResult(retained, totalPages)
	result.Streamed = true
	f.log.Info("Stream-filtered %d of %d pages (%d drawing candidates)", result.RetainedPages, totalPages, len(result.DrawingCandidates))
	return result, nil
}

// FilterDocument extracts text from a PDF and filters it, switching to the
// streaming path for large documents.
func (f *PageFilter) FilterDocument(ctx context.Context, data []byte) (models.FilterResult, error) {
	reported := 0
	if info, err := pdf.Inspect(data); err != nil {
		f.log.Warn("PDF validation failed, trying text extraction anyway: %v", err)
	} else {
		reported = info.PageCount
	}

	it, err := pdf.NewPageIterator(data)
	if err != nil {
		return models.FilterResult{}, fmt.Errorf("%w: %v", ErrTextUnavailable, err)
	}
	defer it.Close()
	total := max(reported, it.Len())

	if total > f.cfg.StreamingThreshold {
		f.log.Info("Document has %d pages, using streaming filter", total)
		result, err := f.FilterStream(ctx, it, total)
		if err != nil {
			return models.FilterResult{}, err
		}
		if strings.TrimSpace(result.FilteredText) == "" {
			return models.FilterResult{}, ErrTextUnavailable
		}
		return result, nil
	}

	pages := make([]models.PdfPage, 0, total)
	hasText := false
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return models.FilterResult{}, err
		}
		p := it.Page()
		if strings.TrimSpace(p.Text) != "" {
			hasText = true
		}
		pages = append(pages, p)
	}
	if err := it.Err(); err != nil {
		return models.FilterResult{}, fmt.Errorf("%w: %v", ErrTextUnavailable, err)
	}
	if !hasText {
		return models.FilterResult{}, ErrTextUnavailable
	}
	return f.Filter(pages, total), nil
}

// retain keeps every always-page, then fills the remaining page cap and the
// character budget with the best-scoring candidates. Output is in page order.
func (f *PageFilter) retain(always, candidates []models.PdfPage, totalPages int) []models.PdfPage {
	retained := append([]models.PdfPage(nil), always...)
	chars := 0
	for _, p := range always {
		chars += len(p.Text)
	}

	limit := f.cfg.MaxPages(totalPages)
	sortByScore(candidates)
	for _, p := range candidates {
		if len(retained) >= limit {
			break
		}
		if chars+len(p.Text) > f.cfg.MaxChars {
			continue
		}
		retained = append(retained, p)
		chars += len(p.Text)
	}

	sort.Slice(retained, func(i, j int) bool { return retained[i].Number < retained[j].Number })
	return retained
}

// sortByScore orders by score descending, page number ascending on ties.
func sortByScore(pages []models.PdfPage) {
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Score != pages[j].Score {
			return pages[i].Score > pages[j].Score
		}
		return pages[i].Number < pages[j].Number
	})
}

func leadingPages(pages []models.PdfPage, n int) []models.PdfPage {
	if n > len(pages) {
		n = len(pages)
	}
	return append([]models.PdfPage(nil), pages[:n]...)
}

func buildResult(retained []models.PdfPage, totalPages int) models.FilterResult {
	var b strings.Builder
	result := models.FilterResult{
		TotalPages:        totalPages,
		RetainedPages:     len(retained),
		DrawingCandidates: []int{},
		PageNumbers:       make([]int, 0, len(retained)),
	}
	for _, p := range retained {
		fmt.Fprintf(&b, "=== Page %d ===\n%s\n\n", p.Number, strings.TrimSpace(p.Text))
		result.PageNumbers = append(result.PageNumbers, p.Number)
		if p.IsDrawing {
			result.DrawingCandidates = append(result.DrawingCandidates, p.Number)
		}
	}
	result.FilteredText = b.String()
	return result
}
