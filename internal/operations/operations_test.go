package operations

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Epistemic-Technology/rfp-mcp/internal/documents"
	"github.com/Epistemic-Technology/rfp-mcp/internal/excel"
	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/llm"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/internal/search"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const sampleRFP = `REQUEST FOR PROPOSALS
Client: City Arena Authority
Project Title: Arena LED Display Replacement

1 Main Videoboard
The center hung display shall be 90' x 18'.
Pixel pitch: 6mm or finer. Front service access is required.

2 Ribbon Boards
Quantity: 2
Each ribbon shall be 300' x 3'-6" with sub 10mm pitch and curved fascia.
`

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeSearcher struct {
	results  []search.Result
	pages    map[string]string
	pitch    models.Extracted[float64]
	searches int
	lookups  int
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	f.searches++
	return f.results, nil
}

func (f *fakeSearcher) FetchText(ctx context.Context, url string) (string, error) {
	text, ok := f.pages[url]
	if !ok {
		return "", errors.New("not found")
	}
	return text, nil
}

func (f *fakeSearcher) LookupPitch(ctx context.Context, productType string) (models.Extracted[float64], error) {
	f.lookups++
	return f.pitch, nil
}

func textDoc(text string) models.RawDocument {
	return models.RawDocument{Data: []byte(text), Type: documents.TypeText, Name: "rfp.txt"}
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "rfp.db"), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIngestRFP_RegexOnly(t *testing.T) {
	res, err := IngestRFP(context.Background(), Deps{}, textDoc(sampleRFP), IngestOptions{})
	if err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if res.ClientName != "City Arena Authority" || res.ProjectTitle != "Arena LED Display Replacement" {
		t.Errorf("header = %q / %q", res.ClientName, res.ProjectTitle)
	}
	if !slices.Equal(res.Sources, []string{"regex"}) {
		t.Errorf("Sources = %v, want [regex]", res.Sources)
	}
	if len(res.Screens) != 2 {
		t.Fatalf("got %d screens, want 2", len(res.Screens))
	}
	if a := res.Screens[0].AreaSqFt; a == nil || *a != 1620 {
		t.Errorf("main area = %v, want 1620", a)
	}
	if a := res.Screens[1].AreaSqFt; a == nil || *a != 2100 {
		t.Errorf("ribbon area = %v, want 2100", a)
	}
	if res.Totals != nil {
		t.Errorf("screens without cost should not be priced, got %+v", res.Totals)
	}
	if len(res.Report.Screens) != 2 || res.NotFound {
		t.Errorf("report = %+v, not found = %v", res.Report, res.NotFound)
	}
}

func TestIngestRFP_LLMTakesPriority(t *testing.T) {
	c := &fakeCompleter{reply: `{"client_name": "City Arena", "project_title": "", "screens": [
		{"name": "Main Videoboard", "pixel_pitch_mm": 4, "width_ft": null, "height_ft": null,
		 "quantity": null, "service_type": "Front", "product_type": "indoor", "is_curved": false}]}`}

	res, err := IngestRFP(context.Background(), Deps{LLM: c}, textDoc(sampleRFP), IngestOptions{UseLLM: true})
	if err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if c.calls != 1 {
		t.Errorf("LLM called %d times, want 1", c.calls)
	}
	if !slices.Equal(res.Sources, []string{"llm", "regex"}) {
		t.Errorf("Sources = %v", res.Sources)
	}
	if res.ClientName != "City Arena" {
		t.Errorf("ClientName = %q, want the LLM value", res.ClientName)
	}
	if res.ProjectTitle != "Arena LED Display Replacement" {
		t.Errorf("ProjectTitle = %q, want the regex value", res.ProjectTitle)
	}
	main := res.Screens[0]
	if *main.PixelPitchMM != 4 {
		t.Errorf("pitch = %v, want 4 from the LLM", *main.PixelPitchMM)
	}
	if main.WidthFt == nil || *main.WidthFt != 90 {
		t.Errorf("width = %v, want 90 from the regex pass", main.WidthFt)
	}
	if len(res.Screens) != 2 {
		t.Errorf("got %d screens, want 2", len(res.Screens))
	}
}

func TestIngestRFP_LLMFailureUsesSearch(t *testing.T) {
	c := &fakeCompleter{err: errors.New("upstream unavailable")}
	s := &fakeSearcher{results: []search.Result{{Title: "Arena RFP", Link: "https://example.test/rfp"}}}

	res, err := IngestRFP(context.Background(), Deps{LLM: c, Search: s}, textDoc(sampleRFP), IngestOptions{UseLLM: true, UseSearch: true})
	if err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if s.searches != 1 {
		t.Errorf("search called %d times, want 1", s.searches)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "LLM extraction failed") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if len(res.Screens) != 2 {
		t.Errorf("regex screens should survive an LLM failure, got %d", len(res.Screens))
	}
}

func TestIngestRFP_SearchDisabled(t *testing.T) {
	c := &fakeCompleter{err: errors.New("upstream unavailable")}
	s := &fakeSearcher{}

	if _, err := IngestRFP(context.Background(), Deps{LLM: c, Search: s}, textDoc(sampleRFP), IngestOptions{UseLLM: true}); err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if s.searches != 0 || s.lookups != 0 {
		t.Errorf("search used with use_search off: %d searches, %d lookups", s.searches, s.lookups)
	}
}

func TestIngestRFP_PitchGapFill(t *testing.T) {
	c := &fakeCompleter{reply: `{"client_name": "", "project_title": "", "screens": [
		{"name": "North Board", "product_type": "Acme X9"},
		{"name": "South Board", "product_type": "Acme X9"},
		{"name": "Lobby Wall", "pixel_pitch_mm": 1.5, "product_type": "Acme X9"}]}`}
	s := &fakeSearcher{pitch: models.Extracted[float64]{Value: models.Ptr(3.9), Confidence: 0.5}}

	res, err := IngestRFP(context.Background(), Deps{LLM: c, Search: s}, textDoc("Bid notes only."), IngestOptions{UseLLM: true, UseSearch: true})
	if err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if s.lookups != 1 {
		t.Errorf("LookupPitch called %d times, want 1 per product", s.lookups)
	}
	if s.searches != 0 {
		t.Errorf("search fallback should not run when the LLM found screens")
	}
	for _, screen := range res.Screens[:2] {
		if screen.PixelPitchMM == nil || *screen.PixelPitchMM != 3.9 || screen.Confidence["pixel_pitch_mm"] != 0.5 {
			t.Errorf("%s pitch = %v conf %v", screen.Name, screen.PixelPitchMM, screen.Confidence)
		}
	}
	if *res.Screens[2].PixelPitchMM != 1.5 {
		t.Errorf("stated pitch was overwritten: %v", *res.Screens[2].PixelPitchMM)
	}
}

func TestIngestRFP_NotFound(t *testing.T) {
	res, err := IngestRFP(context.Background(), Deps{}, textDoc("Hello world, thanks for reading."), IngestOptions{})
	if err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if !res.NotFound || res.Message == "" || len(res.Screens) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestIngestRFP_Errors(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		doc  models.RawDocument
		opts IngestOptions
		want error
	}{
		{"llm requested without model", Deps{}, textDoc(sampleRFP), IngestOptions{UseLLM: true}, llm.ErrNotConfigured},
		{"save without store", Deps{}, textDoc(sampleRFP), IngestOptions{Save: true}, ErrNoStore},
		{"workbook", Deps{}, models.RawDocument{Data: []byte("PK"), Type: documents.TypeXLSX}, IngestOptions{}, ErrUnsupportedDocument},
		{"unknown", Deps{}, models.RawDocument{Data: []byte{0}, Type: documents.TypeUnknown}, IngestOptions{}, ErrUnsupportedDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IngestRFP(context.Background(), tt.deps, tt.doc, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("IngestRFP() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIngestRFP_Save(t *testing.T) {
	store := newTestStore(t)
	res, err := IngestRFP(context.Background(), Deps{Store: store}, textDoc(sampleRFP), IngestOptions{Save: true, ProposalName: "Arena"})
	if err != nil {
		t.Fatalf("IngestRFP() error = %v", err)
	}
	if res.ProposalID == "" {
		t.Fatal("ProposalID not set")
	}
	p, err := store.GetProposal(context.Background(), res.ProposalID)
	if err != nil {
		t.Fatalf("GetProposal() error = %v", err)
	}
	if p.ProposalName != "Arena" || p.Format != "rfp" || p.SourceDocument != "rfp.txt" || len(p.Screens) != 2 {
		t.Errorf("stored proposal = %+v", p)
	}
}

func costSheet(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheets := map[string][][]any{
		excel.SheetCostSheet: {
			{"Client:", "Acme Arena"},
			{"Project:", "2026 Renovation"},
			{},
			{"Display", "Pitch (mm)", "Height (ft)", "Width (ft)", "Qty", "Area", "Service", "Cost/SqFt", "Shipping", "Margin", "Bond", "Final Total"},
			{"Main LED Videoboard", 6, 20, 40, 1, 800, "Front", 100, 5000, 0.3, 2500, 200000},
		},
		excel.SheetInstallInBowl: {
			{"Description", "Qty", "Unit", "Total"},
			{"Main LED Videoboard"},
			{"FABRICATE SECONDARY STEEL", 1, 15000, 15000},
			{"INSTALL LED DISPLAYS", 1, 12000, 12000},
		},
		excel.SheetInstallConcourse: {
			{"Description", "Qty", "Unit", "Total"},
		},
	}
	for name, rows := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet(%q) error = %v", name, err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			r := row
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				t.Fatalf("SetSheetRow error = %v", err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("DeleteSheet error = %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer error = %v", err)
	}
	return buf.Bytes()
}

func TestImportWorkbook_SaveAndExport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	deps := Deps{Store: store, Rates: pricing.DefaultRates()}
	doc := models.RawDocument{Data: costSheet(t), Type: documents.TypeXLSX, Name: "arena.xlsx"}

	res, err := ImportWorkbook(ctx, deps, doc, ImportOptions{Save: true})
	if err != nil {
		t.Fatalf("ImportWorkbook() error = %v", err)
	}
	if res.Proposal.ClientName != "Acme Arena" || len(res.Proposal.Screens) != 1 {
		t.Fatalf("proposal = %+v", res.Proposal)
	}
	if res.ProposalID == "" {
		t.Fatal("ProposalID not set")
	}
	want := res.Proposal.InternalAudit.Totals.FinalTotal
	if want != 200000 {
		t.Errorf("sheet final total = %v, want 200000", want)
	}

	data, p, err := ExportProposal(ctx, deps, res.ProposalID)
	if err != nil {
		t.Fatalf("ExportProposal() error = %v", err)
	}
	if p.Totals.FinalTotal != want {
		t.Errorf("stored totals = %v, want %v", p.Totals.FinalTotal, want)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("exported workbook does not open: %v", err)
	}
	defer f.Close()
	if client, _ := f.GetCellValue("Internal Audit", "B1"); client != "Acme Arena" {
		t.Errorf("exported client = %q", client)
	}
}

func TestImportWorkbook_Errors(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		doc  models.RawDocument
		opts ImportOptions
		want error
	}{
		{"legacy xls", Deps{}, models.RawDocument{Type: documents.TypeXLS}, ImportOptions{}, ErrLegacyWorkbook},
		{"not a workbook", Deps{}, models.RawDocument{Type: documents.TypePDF}, ImportOptions{}, ErrUnsupportedDocument},
		{"save without store", Deps{}, models.RawDocument{Type: documents.TypeXLSX}, ImportOptions{Save: true}, ErrNoStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportWorkbook(context.Background(), tt.deps, tt.doc, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("ImportWorkbook() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExportProposal_Missing(t *testing.T) {
	deps := Deps{Store: newTestStore(t)}
	if _, _, err := ExportProposal(context.Background(), deps, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ExportProposal() error = %v, want ErrNotFound", err)
	}
	if _, _, err := ExportProposal(context.Background(), Deps{}, "nope"); !errors.Is(err, ErrNoStore) {
		t.Errorf("ExportProposal() without store error = %v, want ErrNoStore", err)
	}
}

func TestReprice(t *testing.T) {
	rates := pricing.DefaultRates()
	sheetAudit := pricing.Compute(pricing.Costs{
		Hardware: 80000, Structure: 15000, MarginPct: 0.3,
		Bond: models.Ptr(2500.0), FinalTotal: models.Ptr(200000.0), AreaSqFt: 800,
	}, rates)
	lumpW, lumpH := 17.72, 16.60
	lumpArea := lumpW * lumpH * 2
	lumpAudit := pricing.Compute(pricing.Costs{
		Hardware: 100000, MarginPct: 0.2,
		Bond: models.Ptr(1875.0), FinalTotal: models.Ptr(126875.0), AreaSqFt: lumpArea,
	}, rates)

	tests := []struct {
		name      string
		screen    models.ScreenRecord
		wantFinal float64
		wantArea  float64
		priced    bool
	}{
		{
			name: "cost per area without audit",
			screen: models.ScreenRecord{
				Name: "A", WidthFt: models.Ptr(10.0), HeightFt: models.Ptr(10.0), CostPerSqFt: models.Ptr(100.0),
			},
			wantFinal: 18946.67, wantArea: 100, priced: true,
		},
		{
			name: "untouched sheet row keeps its totals",
			screen: models.ScreenRecord{
				Name: "B", WidthFt: models.Ptr(40.0), HeightFt: models.Ptr(20.0), Quantity: models.Ptr(1),
				CostPerSqFt: models.Ptr(100.0), MarginPct: models.Ptr(0.3), Audit: &sheetAudit,
			},
			wantFinal: 200000, wantArea: 800, priced: true,
		},
		{
			name: "edited width reprices hardware",
			screen: models.ScreenRecord{
				Name: "C", WidthFt: models.Ptr(50.0), HeightFt: models.Ptr(20.0), Quantity: models.Ptr(1),
				CostPerSqFt: models.Ptr(100.0), MarginPct: models.Ptr(0.3), Audit: &sheetAudit,
			},
			// (100000 + 15000) / 0.7 = 164285.71, bond 1.5%
			wantFinal: 166750, wantArea: 1000, priced: true,
		},
		{
			name: "edited rate on a lump-cost row reprices hardware",
			screen: models.ScreenRecord{
				Name: "E", WidthFt: models.Ptr(lumpW), HeightFt: models.Ptr(lumpH), Quantity: models.Ptr(2),
				CostPerSqFt: models.Ptr(200.0), MarginPct: models.Ptr(0.2), Audit: &lumpAudit,
			},
			// 588.304 sq ft * 200 / 0.8 = 147076.00, bond 2206.14
			wantFinal: 149282.14, wantArea: lumpArea, priced: true,
		},
		{
			name:     "area-only record keeps its area",
			screen:   models.ScreenRecord{Name: "D", AreaSqFt: models.Ptr(42.0)},
			wantArea: 42,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Reprice([]models.ScreenRecord{tt.screen}, rates)
			s := got[0]
			if s.AreaSqFt == nil || *s.AreaSqFt != tt.wantArea {
				t.Errorf("AreaSqFt = %v, want %v", s.AreaSqFt, tt.wantArea)
			}
			if !tt.priced {
				if s.Audit != nil {
					t.Errorf("Audit = %+v, want nil", s.Audit)
				}
				return
			}
			if s.Audit == nil {
				t.Fatal("Audit is nil")
			}
			if s.Audit.FinalTotal != tt.wantFinal {
				t.Errorf("FinalTotal = %v, want %v", s.Audit.FinalTotal, tt.wantFinal)
			}
		})
	}
}

// memWorkbook is an excel.Workbook backed by literal rows.
type memWorkbook map[string][][]string

func (m memWorkbook) SheetNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (m memWorkbook) Rows(sheet string) ([][]string, error) {
	return m[sheet], nil
}

func TestReprice_UnchangedSheetRows(t *testing.T) {
	tests := []struct {
		name string
		wb   memWorkbook
	}{
		{
			name: "standard",
			wb: memWorkbook{
				excel.SheetCostSheet: {
					{"Client:", "Acme Arena"},
					{"Display", "Pitch (mm)", "Height (ft)", "Width (ft)", "Qty", "Area", "Service", "Cost/SqFt", "Shipping", "Margin", "Bond", "Final Total"},
					{"Main LED Videoboard", "6", "20", "40", "1", "800", "Front", "100", "5000", "0.3", "2500", "200000"},
					{"RB.1 Ribbon Board", "10", "3", "300", "2", "1800", "Rear Service", "87.37", "3000", "25%", "", ""},
				},
				excel.SheetInstallInBowl: {
					{"Description", "Qty", "Unit", "Total"},
					{"Main LED Videoboard"},
					{"FABRICATE SECONDARY STEEL", "1", "15000", "15000"},
					{"INSTALL LED DISPLAYS", "1", "12000", "12000"},
				},
				excel.SheetInstallConcourse: {
					{"Description", "Qty", "Unit", "Total"},
				},
			},
		},
		{
			name: "moody",
			wb: memWorkbook{
				excel.SheetMoody: {
					{"Code", "Description", "Pitch", "Height", "Width", "Cost/SqFt", "Margin", "Total"},
					{"MC.1", "Center Hung LED Main (Qty 4)", "3.9", "16", "28", "120", "0.3", "300000"},
					{"MC.2", "Fascia LED (Qty 1)", "6", "3.5", "410", "64.15", "0.28", ""},
				},
			},
		},
		{
			name: "scotiabank",
			wb: memWorkbook{
				excel.SheetMarginAnalysis: {
					{"Client:", "Scotiabank Arena"},
					{"Description", "Cost", "Margin", "Sell", "Bond", "Total"},
					{"Scoreboard 5.06m h x 5.40m w 4mm (Qty 2)", "100000", "0.2", "125000", "1875", "126875"},
					{"Fascia 0.91m h x 120.4m w 10mm", "84321.17", "0.25", "112428.23", "", ""},
				},
			},
		},
	}
	rates := pricing.DefaultRates()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := excel.Parse(tt.wb, excel.Options{Rates: rates, Log: logger.NewNoOpLogger()})
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(parsed.Screens) != 2 {
				t.Fatalf("got %d screens, want 2", len(parsed.Screens))
			}
			var before []models.ScreenAudit
			for _, s := range parsed.Screens {
				before = append(before, *s.Audit)
			}

			screens, totals := Reprice(parsed.Screens, rates)
			for i, s := range screens {
				if s.Audit == nil || *s.Audit != before[i] {
					t.Errorf("screen %q audit = %+v, want %+v", s.Name, s.Audit, before[i])
				}
			}
			if want := pricing.Aggregate(before); totals != want {
				t.Errorf("totals = %+v, want %+v", totals, want)
			}

			analysis := AnalyzeScreens([]extraction.SourceResult{{Source: extraction.SourceSpreadsheet, Screens: parsed.Screens}}, nil, rates)
			if analysis.Totals.FinalTotal != totals.FinalTotal {
				t.Errorf("AnalyzeScreens FinalTotal = %v, want %v", analysis.Totals.FinalTotal, totals.FinalTotal)
			}
		})
	}
}

func TestAnalyzeScreens(t *testing.T) {
	results := []extraction.SourceResult{
		{Source: extraction.SourceSpreadsheet, Screens: []models.ScreenRecord{{
			Name: "main board", PixelPitchMM: models.Ptr(10.0), WidthFt: models.Ptr(10.0), HeightFt: models.Ptr(5.0),
			CostPerSqFt: models.Ptr(100.0),
		}}},
		{Source: extraction.SourceLLM, Screens: []models.ScreenRecord{{
			Name: "Main Board", PixelPitchMM: models.Ptr(6.0), ServiceType: models.Ptr("front"),
		}}},
	}

	got := AnalyzeScreens(results, nil, pricing.DefaultRates())
	if len(got.Screens) != 1 {
		t.Fatalf("got %d screens, want 1", len(got.Screens))
	}
	s := got.Screens[0]
	if *s.PixelPitchMM != 6 || *s.ServiceType != "front" || *s.AreaSqFt != 50 {
		t.Errorf("merged screen = pitch %v service %v area %v", *s.PixelPitchMM, *s.ServiceType, *s.AreaSqFt)
	}
	if got.Totals.Hardware != 5000 {
		t.Errorf("Totals.Hardware = %v, want 5000", got.Totals.Hardware)
	}
	missing := got.Report.Screens[0].MissingFields
	if !slices.Equal(missing, []string{extraction.LabelCurved, extraction.LabelProductType}) {
		t.Errorf("MissingFields = %v", missing)
	}

	sheetFirst := AnalyzeScreens(results, []extraction.Source{extraction.SourceSpreadsheet}, pricing.DefaultRates())
	if *sheetFirst.Screens[0].PixelPitchMM != 10 {
		t.Errorf("priority order ignored: pitch %v", *sheetFirst.Screens[0].PixelPitchMM)
	}
}

func TestLoadDocument(t *testing.T) {
	ctx := context.Background()

	doc, err := LoadDocument(ctx, "", "", []byte(sampleRFP), "rfp.txt")
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if doc.Type != documents.TypeText || doc.Name != "rfp.txt" {
		t.Errorf("doc = %q %q", doc.Type, doc.Name)
	}

	if _, err := LoadDocument(ctx, "/tmp/a.pdf", "https://example.test/a.pdf", nil, ""); !errors.Is(err, ErrAmbiguousSource) {
		t.Errorf("two sources error = %v, want ErrAmbiguousSource", err)
	}
	if _, err := LoadDocument(ctx, "", "", nil, ""); !errors.Is(err, documents.ErrNoSource) {
		t.Errorf("no source error = %v, want ErrNoSource", err)
	}
	if _, err := LoadDocument(ctx, "", "", []byte{0x00, 0x01, 0x02, 0x03}, ""); !errors.Is(err, ErrUnsupportedDocument) {
		t.Errorf("binary error = %v, want ErrUnsupportedDocument", err)
	}
}
