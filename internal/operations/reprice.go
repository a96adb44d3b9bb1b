package operations

import (
	"math"

	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Reprice recomputes area and audits after screens were edited. Screens
// that came with a sheet cost breakdown keep their non-hardware lines;
// hardware follows the current area and cost per square foot once either
// of them changes. Screens
// without a cost per square foot and without a prior audit stay unpriced.
func Reprice(screens []models.ScreenRecord, rates pricing.Rates) ([]models.ScreenRecord, models.ScreenAudit) {
	if rates == (pricing.Rates{}) {
		rates = pricing.DefaultRates()
	}
	out := make([]models.ScreenRecord, len(screens))
	var audits []models.ScreenAudit
	for i, s := range screens {
		// area-only records from cost sheets keep their stated area
		if s.WidthFt != nil && s.HeightFt != nil {
			s.Recompute()
		}
		switch {
		case s.Audit != nil:
			s.Audit = repriceAudit(s, *s.Audit, rates)
		case s.CostPerSqFt != nil:
			s.Audit = pricing.ForScreen(s, rates)
		}
		if s.Audit != nil {
			audits = append(audits, *s.Audit)
		}
		out[i] = s
	}
	return out, pricing.Aggregate(audits)
}

func repriceAudit(s models.ScreenRecord, prev models.ScreenAudit, rates pricing.Rates) *models.ScreenAudit {
	area := prev.AreaSqFt
	if s.AreaSqFt != nil {
		area = *s.AreaSqFt
	}
	hardware := prev.Hardware
	if s.CostPerSqFt != nil && area > 0 && (area != prev.AreaSqFt || !sameRate(prev, *s.CostPerSqFt)) {
		hardware = area * *s.CostPerSqFt
	}
	margin := rates.DefaultMargin
	if s.MarginPct != nil {
		margin = *s.MarginPct
	}
	// untouched sheet rows keep their stated bond and final total
	if math.Abs(hardware-prev.Hardware) < 0.005 && area == prev.AreaSqFt && sameMargin(prev, margin, rates) {
		return &prev
	}
	audit := pricing.Compute(pricing.Costs{
		Hardware:  hardware,
		Structure: prev.Structure,
		Install:   prev.Install,
		Labor:     prev.Labor,
		PM:        prev.PM,
		Shipping:  prev.Shipping,
		MarginPct: margin,
		AreaSqFt:  area,
	}, rates)
	return &audit
}

// sameRate reports whether costPerSqFt is the cent-rounded rate the audit's
// hardware was built from. Sheets that state a lump hardware cost carry a
// rounded rate that does not multiply back to it.
func sameRate(prev models.ScreenAudit, costPerSqFt float64) bool {
	if prev.AreaSqFt <= 0 {
		return false
	}
	rate := math.Round(prev.Hardware/prev.AreaSqFt*100) / 100
	return math.Abs(rate-costPerSqFt) < 0.005
}

func sameMargin(prev models.ScreenAudit, margin float64, rates pricing.Rates) bool {
	if prev.SellPrice == 0 {
		return true
	}
	implied := prev.Margin / prev.SellPrice
	return math.Abs(implied-pricing.NormalizeMargin(margin, rates.DefaultMargin)) < 0.001
}

// AnalyzeResult is the merged, repriced view of screens from several sources.
type AnalyzeResult struct {
	Screens []models.ScreenRecord   `json:"screens"`
	Totals  models.ScreenAudit      `json:"totals"`
	Report  models.ExtractionReport `json:"report"`
}

// AnalyzeScreens merges screens from several sources, reprices them and
// reports what is still missing.
func AnalyzeScreens(results []extraction.SourceResult, priority []extraction.Source, rates pricing.Rates) AnalyzeResult {
	if len(priority) == 0 {
		priority = extraction.DefaultPriority
	}
	merged := extraction.Merge(results, priority)
	screens, totals := Reprice(merged, rates)
	return AnalyzeResult{
		Screens: screens,
		Totals:  totals,
		Report:  extraction.BuildReport(screens),
	}
}
