package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

func sampleProposal() *models.Proposal {
	return &models.Proposal{
		ClientName:     "City Arena",
		ProposalName:   "Bowl Upgrade",
		Format:         "standard",
		Currency:       "USD",
		SourceDocument: "arena.xlsx",
		Screens: []models.ScreenRecord{
			{
				Name:         "Main LED Videoboard",
				PixelPitchMM: models.Ptr(6.0),
				WidthFt:      models.Ptr(40.0),
				HeightFt:     models.Ptr(20.0),
				Quantity:     models.Ptr(1),
				AreaSqFt:     models.Ptr(800.0),
				ServiceType:  models.Ptr("front"),
				IsCurved:     models.Ptr(false),
				CostPerSqFt:  models.Ptr(100.0),
				MarginPct:    models.Ptr(0.25),
				Source:       models.Provenance{Kind: "spreadsheet", Sheet: "LED Cost Sheet", Row: 5},
				Confidence:   map[string]float64{"pixel_pitch_mm": 1},
				Audit: &models.ScreenAudit{
					Hardware: 80000, Structure: 16000, Labor: 12000, PM: 4000,
					TotalCost: 112000, Margin: 37333.33, SellPrice: 149333.33,
					Bond: 2240, FinalTotal: 151573.33, AreaSqFt: 800, PricePerSqFt: 189.47,
				},
			},
			{
				Name:   "Ribbon",
				Source: models.Provenance{Kind: "regex", Citation: "location 2"},
			},
		},
	}
}

// exerciseStore runs the same round trip against any backend.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	p := sampleProposal()
	id, err := store.SaveProposal(ctx, p)
	if err != nil {
		t.Fatalf("SaveProposal() error = %v", err)
	}
	if id == "" || id != p.ID {
		t.Fatalf("SaveProposal() id = %q, proposal ID = %q", id, p.ID)
	}

	got, err := store.GetProposal(ctx, id)
	if err != nil {
		t.Fatalf("GetProposal() error = %v", err)
	}
	if got.ClientName != "City Arena" || got.Currency != "USD" || got.SourceDocument != "arena.xlsx" {
		t.Errorf("proposal fields = %+v", got)
	}
	if len(got.Screens) != 2 {
		t.Fatalf("got %d screens, want 2", len(got.Screens))
	}
	first := got.Screens[0]
	if first.Name != "Main LED Videoboard" || *first.PixelPitchMM != 6 || *first.Quantity != 1 || *first.ServiceType != "front" || *first.IsCurved {
		t.Errorf("first screen = %+v", first)
	}
	if first.Source.Sheet != "LED Cost Sheet" || first.Source.Row != 5 || first.Confidence["pixel_pitch_mm"] != 1 {
		t.Errorf("provenance/confidence = %+v %v", first.Source, first.Confidence)
	}
	if first.Audit == nil || first.Audit.FinalTotal != 151573.33 {
		t.Fatalf("audit = %+v", first.Audit)
	}

	ribbon := got.Screens[1]
	if ribbon.WidthFt != nil || ribbon.Quantity != nil || ribbon.IsCurved != nil || ribbon.Audit != nil {
		t.Errorf("absent fields should stay nil: %+v", ribbon)
	}
	if got.Totals.FinalTotal != 151573.33 || got.Totals.AreaSqFt != 800 {
		t.Errorf("totals = %+v", got.Totals)
	}

	// Saving again with the same ID replaces the screens.
	got.Screens = got.Screens[:1]
	got.ProposalName = "Bowl Upgrade rev B"
	if _, err := store.SaveProposal(ctx, got); err != nil {
		t.Fatalf("re-save error = %v", err)
	}
	again, err := store.GetProposal(ctx, id)
	if err != nil {
		t.Fatalf("GetProposal() after re-save error = %v", err)
	}
	if len(again.Screens) != 1 || again.ProposalName != "Bowl Upgrade rev B" {
		t.Errorf("re-saved proposal = %+v", again)
	}

	second := sampleProposal()
	second.ClientName = "Stadium"
	second.CreatedAt = time.Now().Add(time.Hour)
	if _, err := store.SaveProposal(ctx, second); err != nil {
		t.Fatalf("SaveProposal(second) error = %v", err)
	}

	list, err := store.ListProposals(ctx)
	if err != nil {
		t.Fatalf("ListProposals() error = %v", err)
	}
	idx := slices.IndexFunc(list, func(i models.ProposalInfo) bool { return i.ID == id })
	if idx < 0 {
		t.Fatalf("saved proposal missing from list: %+v", list)
	}
	if list[idx].ScreenCount != 1 || list[idx].FinalTotal != 151573.33 {
		t.Errorf("list entry = %+v", list[idx])
	}
	secondIdx := slices.IndexFunc(list, func(i models.ProposalInfo) bool { return i.ID == second.ID })
	if secondIdx < 0 || secondIdx > idx {
		t.Errorf("newest proposal should be listed first: %+v", list)
	}

	if err := store.DeleteProposal(ctx, id); err != nil {
		t.Fatalf("DeleteProposal() error = %v", err)
	}
	if _, err := store.GetProposal(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProposal() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteProposal(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProposal() error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteProposal(ctx, second.ID); err != nil {
		t.Errorf("cleanup error = %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rfp.db"), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfp.db")
	store, err := NewSQLiteStore(path, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	id, err := store.SaveProposal(context.Background(), sampleProposal())
	if err != nil {
		t.Fatalf("SaveProposal() error = %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetProposal(context.Background(), id); err != nil {
		t.Errorf("GetProposal() after reopen error = %v", err)
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	store, err := NewPostgresStore(context.Background(), dsn, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestResourcePaths(t *testing.T) {
	tests := []struct {
		name    string
		screens int
		want    []string
	}{
		{
			name:    "with screens",
			screens: 2,
			want: []string{
				"proposal://abc",
				"proposal://abc/screens",
				"proposal://abc/screens/0",
				"proposal://abc/screens/{index}",
				"proposal://abc/audit",
			},
		},
		{
			name:    "empty proposal",
			screens: 0,
			want:    []string{"proposal://abc", "proposal://abc/screens", "proposal://abc/audit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResourcePaths("abc", tt.screens); !slices.Equal(got, tt.want) {
				t.Errorf("ResourcePaths() = %v, want %v", got, tt.want)
			}
		})
	}
}
