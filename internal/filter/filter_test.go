package filter

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

type sliceIterator struct {
	pages []models.PdfPage
	pos   int
}

func (s *sliceIterator) Next() bool {
	if s.pos >= len(s.pages) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator) Page() models.PdfPage { return s.pages[s.pos-1] }
func (s *sliceIterator) Err() error           { return nil }

func makePages(texts ...string) []models.PdfPage {
	pages := make([]models.PdfPage, len(texts))
	for i, text := range texts {
		pages[i] = models.PdfPage{Number: i + 1, Text: text}
	}
	return pages
}

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		name        string
		text        string
		wantScore   int
		wantDrawing bool
	}{
		{"empty", "", 0, false},
		{"two signal keywords", "The LED pixel pitch is important.", 12, false},
		{"signal repeated", "pricing pricing pricing", 18, false},
		{"noise only", "Indemnification and arbitration apply.", -6, false},
		{"measurement", "Cabinet depth shall be 10mm.", 6 + 8, false},
		{"feet dimensions", "Board measures 90' x 18' overall", 8, false},
		{"drawing sheet", "NORTH ELEVATION\nSHEET A-201", 15, true},
		{"long page with plan is not drawing", strings.Repeat("The plan of the owner is described. ", 60), 0, false},
		{"mixed", "Scoreboard LED display; insurance required", 18 - 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, drawing := scorer.Score(tt.text)
			if score != tt.wantScore {
				t.Errorf("Score() = %d, want %d", score, tt.wantScore)
			}
			if drawing != tt.wantDrawing {
				t.Errorf("Score() drawing = %v, want %v", drawing, tt.wantDrawing)
			}
		})
	}
}

func TestScorer_Deterministic(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	text := "SECTION 11 06 60 LED video display. Pixel pitch 6mm, 5000 nits, 208 VAC. Force majeure."

	first, firstDrawing := scorer.Score(text)
	for i := 0; i < 10; i++ {
		score, drawing := NewScorer(DefaultConfig()).Score(text)
		if score != first || drawing != firstDrawing {
			t.Fatalf("run %d: Score() = (%d, %v), want (%d, %v)", i, score, drawing, first, firstDrawing)
		}
	}
}

func TestScorer_IsMustKeep(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		text string
		want bool
	}{
		{"SECTION 11 06 60 - ENTERTAINMENT EQUIPMENT", true},
		{"section 11  06\n60", true},
		{"Section 11 06 61", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := scorer.IsMustKeep(tt.text); got != tt.want {
			t.Errorf("IsMustKeep(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFilter_RetentionPolicy(t *testing.T) {
	f := New(DefaultConfig(), logger.NewNoOpLogger())

	pages := makePages(
		"Instructions to bidders. Indemnification. Arbitration.",
		"LED display schedule with pixel pitch 10mm and brightness 6000 nits",
		"Insurance requirements and liability.",
		"DETAIL 3\nSCALE 1:50",
		"Pricing form for scoreboard",
	)

	result := f.Filter(pages, 5)

	if want := []int{2, 4, 5}; !slices.Equal(result.PageNumbers, want) {
		t.Errorf("PageNumbers = %v, want %v", result.PageNumbers, want)
	}
	if result.RetainedPages != 3 || result.TotalPages != 5 {
		t.Errorf("RetainedPages/TotalPages = %d/%d, want 3/5", result.RetainedPages, result.TotalPages)
	}
	if want := []int{4}; !slices.Equal(result.DrawingCandidates, want) {
		t.Errorf("DrawingCandidates = %v, want %v", result.DrawingCandidates, want)
	}
	if !strings.Contains(result.FilteredText, "=== Page 2 ===") || strings.Contains(result.FilteredText, "Insurance") {
		t.Errorf("FilteredText has unexpected content:\n%s", result.FilteredText)
	}
	if !strings.Contains(result.FullText, "Insurance") {
		t.Error("FullText should hold every page")
	}
}

func TestFilter_PageCap(t *testing.T) {
	cfg := DefaultConfig()
	f := New(cfg, logger.NewNoOpLogger())

	texts := make([]string, 120)
	for i := range texts {
		texts[i] = "LED display pricing"
	}
	// one page scores higher than the rest and must win a slot despite its position
	texts[110] = "LED display pricing pricing pricing"

	result := f.Filter(makePages(texts...), 120)

	if result.RetainedPages != cfg.LargeDocMaxPages {
		t.Fatalf("RetainedPages = %d, want %d", result.RetainedPages, cfg.LargeDocMaxPages)
	}
	if !slices.Contains(result.PageNumbers, 111) {
		t.Error("highest scoring page 111 should be retained")
	}
	if !slices.IsSorted(result.PageNumbers) {
		t.Errorf("PageNumbers not in document order: %v", result.PageNumbers)
	}
	if result.PageNumbers[0] != 1 {
		t.Errorf("ties should keep earlier pages first, got %v", result.PageNumbers)
	}
}

func TestFilter_CharBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChars = 100
	f := New(cfg, logger.NewNoOpLogger())

	long := "LED display pricing " + strings.Repeat("x", 200)
	pages := makePages(long, "LED display pricing", "LED pricing display")

	result := f.Filter(pages, 3)
	if want := []int{2, 3}; !slices.Equal(result.PageNumbers, want) {
		t.Errorf("PageNumbers = %v, want %v", result.PageNumbers, want)
	}
}

func TestFilter_FallbackWhenNothingQualifies(t *testing.T) {
	f := New(DefaultConfig(), logger.NewNoOpLogger())

	pages := makePages("terms", "more terms", "still terms", "arbitration", "the end")
	result := f.Filter(pages, 5)

	if want := []int{1, 2, 3}; !slices.Equal(result.PageNumbers, want) {
		t.Errorf("PageNumbers = %v, want %v", result.PageNumbers, want)
	}
}

func TestFilter_Invariants(t *testing.T) {
	vocab := []string{
		"LED", "display", "pricing", "indemnification", "arbitration", "10mm", "90' x 18'",
		"elevation", "scale", "the", "owner", "shall", "contractor", "steel", "insurance", "11 06 60",
	}
	rng := rand.New(rand.NewSource(42))
	f := New(DefaultConfig(), logger.NewNoOpLogger())

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(150)
		texts := make([]string, n)
		for i := range texts {
			words := make([]string, rng.Intn(40))
			for w := range words {
				words[w] = vocab[rng.Intn(len(vocab))]
			}
			texts[i] = strings.Join(words, " ")
		}

		result := f.Filter(makePages(texts...), n)

		if result.RetainedPages > result.TotalPages {
			t.Fatalf("trial %d: retained %d > total %d", trial, result.RetainedPages, result.TotalPages)
		}
		if result.RetainedPages != len(result.PageNumbers) {
			t.Fatalf("trial %d: RetainedPages %d != len(PageNumbers) %d", trial, result.RetainedPages, len(result.PageNumbers))
		}
		for _, d := range result.DrawingCandidates {
			if !slices.Contains(result.PageNumbers, d) {
				t.Fatalf("trial %d: drawing candidate %d not retained", trial, d)
			}
		}
		if !slices.IsSorted(result.PageNumbers) {
			t.Fatalf("trial %d: page numbers not sorted: %v", trial, result.PageNumbers)
		}
	}
}

func TestFilterStream_MustKeepSurvivesTournament(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 50
	cfg.TopPerChunk = 2
	f := New(cfg, logger.NewNoOpLogger())

	texts := make([]string, 400)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d LED display pricing schedule", i+1)
	}
	texts[349] = "SECTION 11 06 60 general requirements"

	result, err := f.FilterStream(context.Background(), &sliceIterator{pages: makePages(texts...)}, 400)
	if err != nil {
		t.Fatalf("FilterStream() error = %v", err)
	}

	if !result.Streamed {
		t.Error("expected Streamed result")
	}
	if !slices.Contains(result.PageNumbers, 350) {
		t.Errorf("must-keep page 350 missing from %v", result.PageNumbers)
	}
	// 8 chunks x 2 survivors + 1 must-keep page
	if result.RetainedPages != 17 {
		t.Errorf("RetainedPages = %d, want 17", result.RetainedPages)
	}
	if result.TotalPages != 400 {
		t.Errorf("TotalPages = %d, want 400", result.TotalPages)
	}
	if result.FullText != "" {
		t.Error("streaming mode should not accumulate full text")
	}
}

func TestFilterStream_ContextCancelled(t *testing.T) {
	f := New(DefaultConfig(), logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FilterStream(ctx, &sliceIterator{pages: makePages("LED")}, 1)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Threshold: 20}.withDefaults()
	if cfg.Threshold != 20 {
		t.Errorf("Threshold = %d, want 20", cfg.Threshold)
	}
	if cfg.SignalWeight != 6 || cfg.ChunkSize != 50 || len(cfg.SignalKeywords) == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
