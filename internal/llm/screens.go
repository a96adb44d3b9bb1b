package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// ErrMalformedResponse is returned when a model reply cannot be turned into
// the expected JSON even after repair.
var ErrMalformedResponse = errors.New("malformed llm response")

// llmConfidence is the per-field confidence attached to model-extracted values.
const llmConfidence = 0.8

const screenSystemPrompt = `You extract LED display requirements from RFP documents for a display integrator.
Reply with a single JSON object and nothing else.`

const screenPromptTemplate = `Find every LED display (screen, board, ribbon, fascia, videoboard) this RFP asks for.

Return JSON in exactly this shape:
{
  "client_name": "",
  "project_title": "",
  "screens": [
    {
      "name": "",
      "pixel_pitch_mm": null,
      "width_ft": null,
      "height_ft": null,
      "quantity": null,
      "service_type": null,
      "product_type": null,
      "is_curved": null
    }
  ]
}

Rules:
- Use null for anything the document does not state. Do not guess.
- Convert metric dimensions to feet.
- service_type is "front" or "rear".
- product_type is "indoor", "outdoor", "transparent" or the vendor product line if named.
- If the document describes no displays, return an empty "screens" array.

RFP text:
%s`

// ScreenExtraction is the model's view of the displays in a document.
type ScreenExtraction struct {
	ClientName   string                `json:"client_name"`
	ProjectTitle string                `json:"project_title"`
	Screens      []models.ScreenRecord `json:"screens"`
	Repaired     bool                  `json:"repaired"`
}

// ExtractScreens asks the model for screen records and repairs its JSON when needed.
func ExtractScreens(ctx context.Context, c Completer, filteredText string, log logger.Logger) (*ScreenExtraction, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	raw, err := c.Complete(ctx, screenSystemPrompt, fmt.Sprintf(screenPromptTemplate, filteredText))
	if err != nil {
		return nil, fmt.Errorf("screen extraction call failed: %w", err)
	}

	result, err := decodeScreens(raw)
	if err == nil {
		return result, nil
	}

	log.Warn("Model reply is not valid JSON, attempting repair: %v", err)
	repaired, repairErr := extraction.RepairJSON(raw)
	if repairErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, repairErr)
	}
	result, err = decodeScreens(repaired)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	result.Repaired = true
	return result, nil
}

type screenReply struct {
	ClientName   string        `json:"client_name"`
	ProjectTitle string        `json:"project_title"`
	Screens      []screenEntry `json:"screens"`
}

type screenEntry struct {
	Name         string     `json:"name"`
	PixelPitchMM flexFloat  `json:"pixel_pitch_mm"`
	WidthFt      flexFloat  `json:"width_ft"`
	HeightFt     flexFloat  `json:"height_ft"`
	Quantity     flexFloat  `json:"quantity"`
	ServiceType  flexString `json:"service_type"`
	ProductType  flexString `json:"product_type"`
	IsCurved     flexBool   `json:"is_curved"`
}

func decodeScreens(raw string) (*ScreenExtraction, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	var reply screenReply
	if err := dec.Decode(&reply); err != nil {
		return nil, err
	}

	out := &ScreenExtraction{
		ClientName:   strings.TrimSpace(reply.ClientName),
		ProjectTitle: strings.TrimSpace(reply.ProjectTitle),
		Screens:      make([]models.ScreenRecord, 0, len(reply.Screens)),
	}
	for i, e := range reply.Screens {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = fmt.Sprintf("Screen %d", i+1)
		}
		s := models.ScreenRecord{
			Name:         name,
			PixelPitchMM: e.PixelPitchMM.v,
			WidthFt:      e.WidthFt.v,
			HeightFt:     e.HeightFt.v,
			ServiceType:  normalizeService(e.ServiceType.v),
			ProductType:  e.ProductType.v,
			IsCurved:     e.IsCurved.v,
			Source:       models.Provenance{Kind: string(extraction.SourceLLM)},
			Confidence:   map[string]float64{},
		}
		if e.Quantity.v != nil && *e.Quantity.v >= 1 {
			s.Quantity = models.Ptr(int(*e.Quantity.v + 0.5))
		}
		for field, present := range map[string]bool{
			"pixel_pitch_mm": s.PixelPitchMM != nil,
			"width_ft":       s.WidthFt != nil,
			"height_ft":      s.HeightFt != nil,
			"quantity":       s.Quantity != nil,
			"service_type":   s.ServiceType != nil,
			"product_type":   s.ProductType != nil,
			"is_curved":      s.IsCurved != nil,
		} {
			if present {
				s.Confidence[field] = llmConfidence
			}
		}
		s.Recompute()
		out.Screens = append(out.Screens, s)
	}
	return out, nil
}

func normalizeService(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.ToLower(*v)
	switch {
	case strings.Contains(s, "front"):
		return models.Ptr("front")
	case strings.Contains(s, "rear") || strings.Contains(s, "back"):
		return models.Ptr("rear")
	default:
		return v
	}
}

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// flexFloat accepts 6, "6", "6mm" and null. Non-positive values are absent.
type flexFloat struct{ v *float64 }

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		if n > 0 {
			f.v = &n
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// objects and arrays are treated as absent
		return nil
	}
	m := leadingNumber.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return nil
	}
	f.v = &v
	return nil
}

// flexString treats "", "null", "unknown" and "n/a" as absent.
type flexString struct{ v *string }

func (f *flexString) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "unknown", "n/a", "none", "not specified":
		return nil
	}
	f.v = &s
	return nil
}

// flexBool accepts true, "yes", "curved" and their negatives.
type flexBool struct{ v *bool }

func (f *flexBool) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		f.v = &v
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "curved":
		f.v = models.Ptr(true)
	case "false", "no", "n", "flat":
		f.v = models.Ptr(false)
	}
	return nil
}

func isNull(b []byte) bool {
	return string(bytes.TrimSpace(b)) == "null"
}
