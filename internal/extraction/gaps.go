package extraction

import (
	"fmt"
	"math"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Required field labels, in report order.
const (
	LabelPixelPitch  = "Pixel Pitch (mm)"
	LabelWidth       = "Width (ft)"
	LabelHeight      = "Height (ft)"
	LabelCurved      = "Curved Display"
	LabelServiceType = "Service Type"
	LabelProductType = "Product Type"
)

// HighAccuracyThreshold is the completion rate at which a report is "High".
const HighAccuracyThreshold = 0.85

type requiredField struct {
	label   string
	key     string
	present func(models.ScreenRecord) bool
}

var requiredFields = []requiredField{
	{LabelPixelPitch, "pixel_pitch_mm", func(s models.ScreenRecord) bool { return s.PixelPitchMM != nil }},
	{LabelWidth, "width_ft", func(s models.ScreenRecord) bool { return s.WidthFt != nil }},
	{LabelHeight, "height_ft", func(s models.ScreenRecord) bool { return s.HeightFt != nil }},
	{LabelCurved, "is_curved", func(s models.ScreenRecord) bool { return s.IsCurved != nil }},
	{LabelServiceType, "service_type", func(s models.ScreenRecord) bool { return s.ServiceType != nil && *s.ServiceType != "" }},
	{LabelProductType, "product_type", func(s models.ScreenRecord) bool { return s.ProductType != nil && *s.ProductType != "" }},
}

// MissingFields lists the required labels a screen still lacks. A fully
// populated screen yields an empty, non-nil slice.
func MissingFields(s models.ScreenRecord) []string {
	missing := []string{}
	for _, f := range requiredFields {
		if !f.present(s) {
			missing = append(missing, f.label)
		}
	}
	return missing
}

// BuildReport computes per-screen gaps and the completion summary.
func BuildReport(screens []models.ScreenRecord) models.ExtractionReport {
	report := models.ExtractionReport{
		Screens: make([]models.ScreenGap, 0, len(screens)),
		ExtractionSummary: models.ExtractionSummary{
			MissingFields:   []string{},
			FieldConfidence: map[string]float64{},
		},
	}

	confSum := map[string]float64{}
	confN := map[string]int{}
	for _, s := range screens {
		missing := MissingFields(s)
		report.Screens = append(report.Screens, models.ScreenGap{Screen: s, MissingFields: missing})
		for _, label := range missing {
			report.ExtractionSummary.MissingFields = append(report.ExtractionSummary.MissingFields, fmt.Sprintf("%s: %s", s.Name, label))
		}
		for _, f := range requiredFields {
			if c, ok := s.Confidence[f.key]; ok && f.present(s) {
				confSum[f.key] += c
				confN[f.key]++
			}
		}
	}

	total := len(screens) * len(requiredFields)
	extracted := total
	for _, g := range report.Screens {
		extracted -= len(g.MissingFields)
	}
	summary := &report.ExtractionSummary
	summary.TotalFields = total
	summary.ExtractedFields = extracted
	if total > 0 {
		summary.CompletionRate = math.Round(float64(extracted)/float64(total)*10000) / 10000
	}
	for k, sum := range confSum {
		summary.FieldConfidence[k] = math.Round(sum/float64(confN[k])*100) / 100
	}

	report.ExtractionAccuracy = "Standard"
	if total > 0 && summary.CompletionRate >= HighAccuracyThreshold {
		report.ExtractionAccuracy = "High"
	}
	return report
}
