package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
)

// fakeCompleter returns canned replies in order.
type fakeCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

type fakeDescriber struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDescriber) DescribeImage(ctx context.Context, prompt string, png []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	switch string(png) {
	case "blank":
		return "No display.", nil
	case "corrupt":
		return "", errors.New("image could not be decoded")
	}
	return "Center hung board, 30' x 16', 6mm", nil
}

func TestExtractScreens(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantScreens  int
		wantRepaired bool
		check        func(t *testing.T, got *ScreenExtraction)
	}{
		{
			name:        "clean json",
			reply:       `{"client_name":"City Arena","project_title":"Upgrade","screens":[{"name":"Main","pixel_pitch_mm":6,"width_ft":40,"height_ft":20,"quantity":2,"service_type":"Front Access","product_type":null,"is_curved":false}]}`,
			wantScreens: 1,
			check: func(t *testing.T, got *ScreenExtraction) {
				s := got.Screens[0]
				if got.ClientName != "City Arena" || *s.ServiceType != "front" || *s.Quantity != 2 {
					t.Errorf("screen = %+v", s)
				}
				if s.AreaSqFt == nil || *s.AreaSqFt != 1600 {
					t.Errorf("area = %v, want 1600", s.AreaSqFt)
				}
				if s.ProductType != nil {
					t.Error("null product type should stay nil")
				}
				if _, ok := s.Confidence["product_type"]; ok {
					t.Error("absent field should carry no confidence")
				}
				if s.Source.Kind != "llm" {
					t.Errorf("source = %q", s.Source.Kind)
				}
			},
		},
		{
			name:         "numbers as strings inside a fence",
			reply:        "```json\n{\"screens\":[{\"name\":\"Ribbon\",\"pixel_pitch_mm\":\"10mm\",\"width_ft\":\"300\",\"height_ft\":\"3.5 ft\",\"is_curved\":\"yes\",\"service_type\":\"unknown\"},]}\n```",
			wantScreens:  1,
			wantRepaired: true,
			check: func(t *testing.T, got *ScreenExtraction) {
				s := got.Screens[0]
				if *s.PixelPitchMM != 10 || *s.WidthFt != 300 || *s.HeightFt != 3.5 || !*s.IsCurved {
					t.Errorf("screen = %+v", s)
				}
				if s.ServiceType != nil {
					t.Errorf("\"unknown\" should be absent, got %q", *s.ServiceType)
				}
			},
		},
		{
			name:         "truncated reply",
			reply:        `Here is the data: {"screens":[{"name":"A","width_ft":10},{"name":""`,
			wantScreens:  2,
			wantRepaired: true,
			check: func(t *testing.T, got *ScreenExtraction) {
				if got.Screens[1].Name != "Screen 2" {
					t.Errorf("unnamed screen = %q", got.Screens[1].Name)
				}
			},
		},
		{
			name:        "no displays",
			reply:       `{"screens":[]}`,
			wantScreens: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCompleter{replies: []string{tt.reply}}
			got, err := ExtractScreens(context.Background(), c, "rfp text", logger.NewNoOpLogger())
			if err != nil {
				t.Fatalf("ExtractScreens() error = %v", err)
			}
			if len(got.Screens) != tt.wantScreens {
				t.Fatalf("got %d screens, want %d", len(got.Screens), tt.wantScreens)
			}
			if got.Repaired != tt.wantRepaired {
				t.Errorf("Repaired = %v, want %v", got.Repaired, tt.wantRepaired)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
			if !strings.Contains(c.prompts[0], "rfp text") {
				t.Error("prompt does not carry the document text")
			}
		})
	}
}

func TestExtractScreens_Errors(t *testing.T) {
	log := logger.NewNoOpLogger()

	_, err := ExtractScreens(context.Background(), &fakeCompleter{replies: []string{"Sorry, I cannot help."}}, "x", log)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}

	callErr := errors.New("connection refused")
	_, err = ExtractScreens(context.Background(), &fakeCompleter{err: callErr}, "x", log)
	if !errors.Is(err, callErr) {
		t.Errorf("error = %v, want wrapped call error", err)
	}

	_, err = ExtractScreens(context.Background(), nil, "x", log)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestDescribeDrawings(t *testing.T) {
	log := logger.NewNoOpLogger()
	pages := []DrawingPage{{Number: 4, PNG: []byte("png")}, {Number: 9, PNG: []byte("blank")}}

	notes, err := DescribeDrawings(context.Background(), nil, pages, 2, log)
	if err != nil || notes != nil {
		t.Fatalf("unconfigured vision should skip silently, got %v, %v", notes, err)
	}

	d := &fakeDescriber{}
	notes, err = DescribeDrawings(context.Background(), d, pages, 2, log)
	if err != nil {
		t.Fatalf("DescribeDrawings() error = %v", err)
	}
	if d.calls != 2 {
		t.Errorf("calls = %d, want 2", d.calls)
	}
	if len(notes) != 1 || notes[0].Page != 4 {
		t.Fatalf("notes = %+v, want only page 4", notes)
	}
	if text := NotesText(notes); !strings.Contains(text, "=== Drawing page 4 ===") {
		t.Errorf("NotesText() = %q", text)
	}
}

func TestDescribeDrawings_FailedPageKeepsOthers(t *testing.T) {
	pages := []DrawingPage{
		{Number: 2, PNG: []byte("png")},
		{Number: 5, PNG: []byte("corrupt")},
		{Number: 7, PNG: []byte("png")},
	}
	d := &fakeDescriber{}
	notes, err := DescribeDrawings(context.Background(), d, pages, 2, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("DescribeDrawings() error = %v", err)
	}
	if d.calls != 3 {
		t.Errorf("calls = %d, want 3", d.calls)
	}
	if len(notes) != 2 || notes[0].Page != 2 || notes[1].Page != 7 {
		t.Errorf("notes = %+v, want pages 2 and 7", notes)
	}
}

func TestNewOpenAICompleter_RequiresConfig(t *testing.T) {
	_, err := NewOpenAICompleter(Config{Model: "gpt-4o-mini"}, logger.NewNoOpLogger())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestOpenAICompleter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	apiKey := os.Getenv("LLM_API_KEY")
	model := os.Getenv("LLM_MODEL")
	if apiKey == "" || model == "" {
		t.Skip("LLM_API_KEY or LLM_MODEL not set, skipping integration test")
	}

	c, err := NewOpenAICompleter(Config{
		BaseURL: os.Getenv("LLM_BASE_URL"),
		APIKey:  apiKey,
		Model:   model,
	}, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}

	got, err := ExtractScreens(context.Background(), c, "1 Main Videoboard\nThe display shall be 40' x 20' at 6mm pixel pitch.", logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("ExtractScreens() error = %v", err)
	}
	t.Logf("extracted %d screens: %+v", len(got.Screens), got.Screens)
}
