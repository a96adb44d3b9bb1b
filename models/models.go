package models

import "time"

// RawDocument is an uploaded file as received. It is never modified after ingestion starts.
type RawDocument struct {
	Data []byte `json:"-"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// PdfPage is one page of extracted PDF text with its filter score.
type PdfPage struct {
	Number    int    `json:"number"`
	Text      string `json:"text,omitempty"`
	Score     int    `json:"score"`
	IsDrawing bool   `json:"is_drawing"`
}

// FilterResult is the output of the PDF signal filter for one document.
type FilterResult struct {
	FullText          string `json:"full_text,omitempty"`
	FilteredText      string `json:"filtered_text"`
	RetainedPages     int    `json:"retained_pages"`
	TotalPages        int    `json:"total_pages"`
	DrawingCandidates []int  `json:"drawing_candidates"`
	PageNumbers       []int  `json:"page_numbers"`
	Streamed          bool   `json:"streamed,omitempty"`
}

// Provenance records where a screen record came from.
type Provenance struct {
	Kind     string `json:"kind"`
	Sheet    string `json:"sheet,omitempty"`
	Row      int    `json:"row,omitempty"`
	Citation string `json:"citation,omitempty"`
}

// ScreenRecord is a single LED display unit. Nil fields were not found.
type ScreenRecord struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	PixelPitchMM *float64           `json:"pixel_pitch_mm"`
	WidthFt      *float64           `json:"width_ft"`
	HeightFt     *float64           `json:"height_ft"`
	Quantity     *int               `json:"quantity"`
	AreaSqFt     *float64           `json:"area_sq_ft"`
	ServiceType  *string            `json:"service_type"`
	ProductType  *string            `json:"product_type"`
	IsCurved     *bool              `json:"is_curved"`
	CostPerSqFt  *float64           `json:"cost_per_sq_ft"`
	MarginPct    *float64           `json:"margin_pct"`
	Source       Provenance         `json:"source"`
	Confidence   map[string]float64 `json:"confidence,omitempty"`
	Audit        *ScreenAudit       `json:"audit,omitempty"`
}

// Recompute refreshes the derived area from width, height and quantity.
// A missing quantity counts as one unit.
func (s *ScreenRecord) Recompute() {
	if s.WidthFt == nil || s.HeightFt == nil {
		s.AreaSqFt = nil
		return
	}
	qty := 1
	if s.Quantity != nil {
		qty = *s.Quantity
	}
	area := *s.WidthFt * *s.HeightFt * float64(qty)
	s.AreaSqFt = &area
}

// ScreenAudit is the computed cost and price breakdown for one screen.
type ScreenAudit struct {
	Hardware     float64 `json:"hardware"`
	Structure    float64 `json:"structure"`
	Install      float64 `json:"install"`
	Labor        float64 `json:"labor"`
	PM           float64 `json:"pm"`
	Shipping     float64 `json:"shipping"`
	TotalCost    float64 `json:"total_cost"`
	Margin       float64 `json:"margin"`
	SellPrice    float64 `json:"sell_price"`
	Bond         float64 `json:"bond"`
	FinalTotal   float64 `json:"final_total"`
	AreaSqFt     float64 `json:"area_sq_ft"`
	PricePerSqFt float64 `json:"price_per_sq_ft"`
}

// InternalAudit holds per-screen audits and their project totals.
type InternalAudit struct {
	Screens []ScreenAudit `json:"screens"`
	Totals  ScreenAudit   `json:"totals"`
}

// ParsedProposal is the result of importing a cost-sheet workbook.
type ParsedProposal struct {
	ClientName    string         `json:"client_name"`
	ProposalName  string         `json:"proposal_name"`
	Format        string         `json:"format"`
	Currency      string         `json:"currency"`
	Screens       []ScreenRecord `json:"screens"`
	InternalAudit InternalAudit  `json:"internal_audit"`
}

// Extracted is a value pulled from free text together with its confidence in [0,1].
type Extracted[T any] struct {
	Value      *T      `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Found reports whether a value was extracted.
func (e Extracted[T]) Found() bool {
	return e.Value != nil
}

type Dimensions struct {
	WidthFeet  Extracted[float64] `json:"width_feet"`
	HeightFeet Extracted[float64] `json:"height_feet"`
}

type ColorTemperature struct {
	MinKelvin int `json:"min_kelvin"`
	MaxKelvin int `json:"max_kelvin"`
}

type TechnicalRequirements struct {
	PixelPitchMM     Extracted[float64]          `json:"pixel_pitch_mm"`
	MinimumNits      Extracted[int]              `json:"minimum_nits"`
	RefreshRateHz    Extracted[int]              `json:"refresh_rate_hz"`
	ViewingAngle     Extracted[string]           `json:"viewing_angle"`
	IPRating         Extracted[string]           `json:"ip_rating"`
	ColorTemperature Extracted[ColorTemperature] `json:"color_temperature"`
	LifetimeHours    Extracted[int]              `json:"lifetime_hours"`
	ServiceAccess    Extracted[string]           `json:"service_access"`
	Transparent      Extracted[bool]             `json:"transparent"`
	Curved           Extracted[bool]             `json:"curved"`
}

type Electrical struct {
	Voltage  Extracted[int] `json:"voltage"`
	Amperage Extracted[int] `json:"amperage"`
	Phase    Extracted[int] `json:"phase"`
}

// RFPLocation is one display location described in an RFP.
type RFPLocation struct {
	Number                int                   `json:"number"`
	Name                  string                `json:"name"`
	Dimensions            Dimensions            `json:"dimensions"`
	TechnicalRequirements TechnicalRequirements `json:"technical_requirements"`
	Electrical            Electrical            `json:"electrical"`
	WeightLbs             Extracted[float64]    `json:"weight_lbs"`
	Quantity              Extracted[int]        `json:"quantity"`
}

type RFPMetadata struct {
	Confidence  float64   `json:"confidence"`
	Method      string    `json:"method"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// ParsedRFP is the regex extraction result for an RFP text.
type ParsedRFP struct {
	ClientName   string        `json:"client_name"`
	ProjectTitle string        `json:"project_title"`
	Locations    []RFPLocation `json:"locations"`
	Metadata     RFPMetadata   `json:"metadata"`
}

// ScreenGap pairs a merged screen with the required fields it still lacks.
type ScreenGap struct {
	Screen        ScreenRecord `json:"screen"`
	MissingFields []string     `json:"missing_fields"`
}

type ExtractionSummary struct {
	TotalFields     int                `json:"total_fields"`
	ExtractedFields int                `json:"extracted_fields"`
	CompletionRate  float64            `json:"completion_rate"`
	MissingFields   []string           `json:"missing_fields"`
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`
}

// ExtractionReport is the gap/confidence output for a set of merged screens.
type ExtractionReport struct {
	ExtractionAccuracy string            `json:"extraction_accuracy"`
	Screens            []ScreenGap       `json:"screens"`
	ExtractionSummary  ExtractionSummary `json:"extraction_summary"`
}

// Proposal is the persisted unit: a set of screens attached to a client project.
type Proposal struct {
	ID             string         `json:"id"`
	ClientName     string         `json:"client_name"`
	ProposalName   string         `json:"proposal_name"`
	Format         string         `json:"format,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	SourceDocument string         `json:"source_document,omitempty"`
	Screens        []ScreenRecord `json:"screens"`
	Totals         ScreenAudit    `json:"totals"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ProposalInfo is the listing view of a stored proposal.
type ProposalInfo struct {
	ID           string    `json:"id"`
	ClientName   string    `json:"client_name"`
	ProposalName string    `json:"proposal_name"`
	ScreenCount  int       `json:"screen_count"`
	FinalTotal   float64   `json:"final_total"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
