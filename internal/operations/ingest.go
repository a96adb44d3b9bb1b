package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/documents"
	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/filter"
	"github.com/Epistemic-Technology/rfp-mcp/internal/llm"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pdf"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/internal/rfp"
	"github.com/Epistemic-Technology/rfp-mcp/internal/search"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const (
	searchPages     = 2
	defaultDPI      = 110
	defaultWorkers  = 2
	notFoundMessage = "no LED display requirements were found in the document"
)

var (
	// ErrUnsupportedDocument is returned for inputs the pipeline cannot read.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrNoStore is returned when a save is requested without a configured store.
	ErrNoStore = errors.New("proposal storage is not configured")
)

// Searcher is the web search used as a fallback and for pitch gap fill.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
	FetchText(ctx context.Context, url string) (string, error)
	LookupPitch(ctx context.Context, productType string) (models.Extracted[float64], error)
}

// Deps are the services the pipeline calls. A nil LLM, Vision, Search or
// Store switches that step off.
type Deps struct {
	Filter           *filter.PageFilter
	LLM              llm.Completer
	Vision           llm.Describer
	Search           Searcher
	Store            storage.Store
	Rates            pricing.Rates
	Priority         []extraction.Source
	InstallLookahead int
	RenderDPI        float64
	MaxWorkers       int
	Log              logger.Logger
}

func (d Deps) log() logger.Logger {
	if d.Log == nil {
		return logger.NewNoOpLogger()
	}
	return d.Log
}

// IngestOptions control a single RFP ingestion.
type IngestOptions struct {
	UseLLM            bool
	UseSearch         bool
	Save              bool
	ProposalName      string
	AttachFilteredPDF bool
}

// IngestResult is everything learned from one RFP document.
type IngestResult struct {
	ProposalID      string                  `json:"proposal_id,omitempty"`
	ClientName      string                  `json:"client_name"`
	ProjectTitle    string                  `json:"project_title"`
	DocumentType    string                  `json:"document_type"`
	Filter          *models.FilterResult    `json:"filter,omitempty"`
	Screens         []models.ScreenRecord   `json:"screens"`
	Report          models.ExtractionReport `json:"report"`
	Totals          *models.ScreenAudit     `json:"totals,omitempty"`
	RegexConfidence float64                 `json:"regex_confidence"`
	RegexMethod     string                  `json:"regex_method"`
	Sources         []string                `json:"sources"`
	Drawings        []llm.DrawingNote       `json:"drawings,omitempty"`
	Repaired        bool                    `json:"repaired,omitempty"`
	NotFound        bool                    `json:"not_found,omitempty"`
	Message         string                  `json:"message,omitempty"`
	Degraded        bool                    `json:"degraded,omitempty"`
	UnfilteredBytes int                     `json:"unfiltered_bytes,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
	FilteredPDF     []byte                  `json:"-"`
}

func (r *IngestResult) warn(log logger.Logger, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	log.Warn("%s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// IngestRFP runs the extraction chain over one RFP document: filter, LLM
// extraction with JSON repair, web search fallback, regex extraction, merge,
// pitch gap fill, report and an optional save.
func IngestRFP(ctx context.Context, deps Deps, doc models.RawDocument, opts IngestOptions) (*IngestResult, error) {
	log := deps.log().With("ingest")
	if opts.UseLLM && deps.LLM == nil {
		return nil, fmt.Errorf("%w: set LLM_API_KEY and LLM_MODEL or call with use_llm=false", llm.ErrNotConfigured)
	}
	if opts.Save && deps.Store == nil {
		return nil, ErrNoStore
	}

	res := &IngestResult{DocumentType: doc.Type, Sources: []string{}}
	text, err := documentText(ctx, deps, doc, opts, res, log)
	if err != nil {
		return nil, err
	}

	var results []extraction.SourceResult
	llmFailed := false
	if opts.UseLLM && strings.TrimSpace(text) != "" {
		got, err := llm.ExtractScreens(ctx, deps.LLM, text, log)
		switch {
		case err != nil:
			llmFailed = true
			res.warn(log, "LLM extraction failed: %v", err)
		default:
			res.ClientName, res.ProjectTitle = got.ClientName, got.ProjectTitle
			res.Repaired = got.Repaired
			results = append(results, extraction.SourceResult{Source: extraction.SourceLLM, Screens: got.Screens})
		}
	}

	parsed := rfp.ExtractRFPRequirements(text)
	res.RegexConfidence = parsed.Metadata.Confidence
	res.RegexMethod = parsed.Metadata.Method
	res.ClientName = firstNonEmpty(res.ClientName, parsed.ClientName)
	res.ProjectTitle = firstNonEmpty(res.ProjectTitle, parsed.ProjectTitle)

	if opts.UseSearch && (llmFailed || (len(results) == 0 && len(parsed.Locations) == 0)) {
		if screens := searchFallback(ctx, deps, res, log); len(screens) > 0 {
			results = append(results, extraction.SourceResult{Source: extraction.SourceSearch, Screens: screens})
		}
	}

	if len(parsed.Locations) > 0 {
		results = append(results, extraction.SourceResult{Source: extraction.SourceRegex, Screens: rfp.Screens(parsed)})
	}
	for _, r := range results {
		if len(r.Screens) > 0 {
			res.Sources = append(res.Sources, string(r.Source))
		}
	}

	priority := deps.Priority
	if len(priority) == 0 {
		priority = extraction.DefaultPriority
	}
	res.Screens = extraction.Merge(results, priority)
	if len(res.Screens) == 0 {
		res.NotFound = true
		res.Message = notFoundMessage
		log.Info("No screens found in %s", doc.Name)
	}

	if opts.UseSearch && deps.Search != nil {
		fillPitchGaps(ctx, deps.Search, res, log)
	}

	priced, totals := Reprice(res.Screens, deps.Rates)
	res.Screens = priced
	if totals.FinalTotal > 0 {
		res.Totals = &totals
	}
	res.Report = extraction.BuildReport(res.Screens)

	if opts.Save {
		proposal := &models.Proposal{
			ClientName:     res.ClientName,
			ProposalName:   firstNonEmpty(opts.ProposalName, res.ProjectTitle, doc.Name),
			Format:         "rfp",
			SourceDocument: doc.Name,
			Screens:        res.Screens,
			Totals:         totals,
		}
		id, err := deps.Store.SaveProposal(ctx, proposal)
		if err != nil {
			return nil, fmt.Errorf("failed to save proposal: %w", err)
		}
		res.ProposalID = id
	}

	log.Info("Ingested %s: %d screens from %v, completion %.0f%%", doc.Name, len(res.Screens), res.Sources, res.Report.ExtractionSummary.CompletionRate*100)
	return res, nil
}

// documentText turns the upload into the text handed to the extractors.
// Unreadable PDFs degrade rather than fail.
func documentText(ctx context.Context, deps Deps, doc models.RawDocument, opts IngestOptions, res *IngestResult, log logger.Logger) (string, error) {
	switch doc.Type {
	case documents.TypeText, documents.TypeHTML:
		return documents.PlainText(doc)
	case documents.TypePDF:
	case documents.TypeXLSX, documents.TypeXLS:
		return "", fmt.Errorf("%w: %s is a workbook, use excel-import", ErrUnsupportedDocument, doc.Type)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.Type)
	}

	pf := deps.Filter
	if pf == nil {
		pf = filter.New(filter.DefaultConfig(), deps.log())
	}

	fr, err := pf.FilterDocument(ctx, doc.Data)
	if errors.Is(err, filter.ErrTextUnavailable) {
		res.Degraded = true
		res.UnfilteredBytes = len(doc.Data)
		res.warn(log, "No text layer in %s, continuing without filtered text: %v", doc.Name, err)
		// Scanned documents can still be read by the vision model.
		notes := describeDrawings(ctx, deps, doc.Data, leadingPages(pf.Config().FallbackPages, doc.Data), res, log)
		return llm.NotesText(notes), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to filter PDF: %w", err)
	}
	res.Filter = &fr

	if opts.AttachFilteredPDF && len(fr.PageNumbers) > 0 {
		if out, err := pdf.CollectPages(doc.Data, fr.PageNumbers); err != nil {
			res.warn(log, "Could not build filtered PDF: %v", err)
		} else {
			res.FilteredPDF = out
		}
	}

	text := fr.FilteredText
	if notes := describeDrawings(ctx, deps, doc.Data, fr.DrawingCandidates, res, log); len(notes) > 0 {
		text += "\n\n" + llm.NotesText(notes)
	}
	return text, nil
}

func leadingPages(n int, data []byte) []int {
	info, err := pdf.Inspect(data)
	if err != nil || info.PageCount == 0 {
		return nil
	}
	pages := make([]int, 0, n)
	for p := 1; p <= min(n, info.PageCount); p++ {
		pages = append(pages, p)
	}
	return pages
}

func describeDrawings(ctx context.Context, deps Deps, data []byte, pages []int, res *IngestResult, log logger.Logger) []llm.DrawingNote {
	if deps.Vision == nil || len(pages) == 0 {
		return nil
	}
	dpi := deps.RenderDPI
	if dpi <= 0 {
		dpi = defaultDPI
	}
	images, err := pdf.RenderPagePNG(data, pages, dpi)
	if err != nil {
		res.warn(log, "Could not render drawing pages: %v", err)
		return nil
	}
	drawings := make([]llm.DrawingPage, len(pages))
	for i, p := range pages {
		drawings[i] = llm.DrawingPage{Number: p, PNG: images[i]}
	}
	workers := deps.MaxWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}
	notes, err := llm.DescribeDrawings(ctx, deps.Vision, drawings, workers, log)
	if err != nil {
		res.warn(log, "Drawing description failed: %v", err)
		return nil
	}
	res.Drawings = notes
	return notes
}

// searchFallback looks the project up on the web and runs the regex
// extractor over the top result pages.
func searchFallback(ctx context.Context, deps Deps, res *IngestResult, log logger.Logger) []models.ScreenRecord {
	if deps.Search == nil {
		return nil
	}
	subject := strings.TrimSpace(res.ClientName + " " + res.ProjectTitle)
	if subject == "" {
		res.warn(log, "Web search fallback skipped: no client or project title to search for")
		return nil
	}

	results, err := deps.Search.Search(ctx, subject+" LED display RFP specifications")
	if err != nil {
		res.warn(log, "Web search fallback failed: %v", err)
		return nil
	}

	var screens []models.ScreenRecord
	for _, r := range results[:min(searchPages, len(results))] {
		text, err := deps.Search.FetchText(ctx, r.Link)
		if err != nil {
			log.Debug("Skipping search result %s: %v", r.Link, err)
			continue
		}
		for _, s := range rfp.Screens(rfp.ExtractRFPRequirements(text)) {
			s.Source = models.Provenance{Kind: string(extraction.SourceSearch), Citation: r.Link}
			screens = append(screens, s)
		}
	}
	log.Info("Web search fallback found %d screens", len(screens))
	return screens
}

// fillPitchGaps looks up the pixel pitch of screens that name a product
// line but carry no pitch.
func fillPitchGaps(ctx context.Context, s Searcher, res *IngestResult, log logger.Logger) {
	cache := make(map[string]models.Extracted[float64])
	for i := range res.Screens {
		screen := &res.Screens[i]
		if screen.PixelPitchMM != nil || screen.ProductType == nil || *screen.ProductType == "" {
			continue
		}
		product := *screen.ProductType
		found, ok := cache[product]
		if !ok {
			var err error
			found, err = s.LookupPitch(ctx, product)
			if err != nil {
				res.warn(log, "Pitch lookup for %q failed: %v", product, err)
			}
			cache[product] = found
		}
		if !found.Found() {
			continue
		}
		screen.PixelPitchMM = models.Ptr(*found.Value)
		if screen.Confidence == nil {
			screen.Confidence = map[string]float64{}
		}
		screen.Confidence["pixel_pitch_mm"] = found.Confidence
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
