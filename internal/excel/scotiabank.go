package excel

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Column offsets on the "Margin Analysis (CAD)" sheet.
const (
	scotiaColDescription = iota
	scotiaColCost
	scotiaColMargin
	scotiaColSell
	scotiaColBond
	scotiaColTotal
)

const feetPerMetre = 3.28084

// metricDims matches "5.06m h x 5.40m w".
var metricDims = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*m\s*h\s*[x×]\s*(\d+(?:\.\d+)?)\s*m\s*w`)

// ScotiaBankParser reads the Canadian margin analysis layout, where dimensions
// are metric and embedded in the description text.
type ScotiaBankParser struct {
	opts Options
}

func (p *ScotiaBankParser) Parse(wb Workbook) (*models.ParsedProposal, error) {
	names := wb.SheetNames()
	rec := DetectFormat(names)
	sheet := rec.SheetName
	if rec.Format != FormatScotiaBank {
		name, ok := findSheet(names, SheetMarginAnalysis)
		if !ok {
			return nil, &SheetNotFoundError{Required: []string{SheetMarginAnalysis}, Found: names}
		}
		sheet = name
	}
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, err
	}

	client, project := headerLabels(rows, 10)
	proposal := &models.ParsedProposal{
		ClientName:   client,
		ProposalName: project,
		Format:       FormatScotiaBank.String(),
		Currency:     "CAD",
	}

	for r, row := range rows {
		desc := cell(row, scotiaColDescription)
		if desc == "" {
			continue
		}
		if !metricDims.MatchString(desc) && !isProjectMarker(desc) {
			continue
		}
		if _, ok := pricing.ParseAmount(cell(row, scotiaColCost)); !ok {
			continue
		}
		proposal.Screens = append(proposal.Screens, p.parseRow(sheet, r, row))
	}

	p.opts.Log.Info("Parsed %d screens from %q", len(proposal.Screens), sheet)
	return finish(proposal), nil
}

// ParseMetricDimensions returns height and width in feet from a description
// like "Scoreboard 5.06m h x 5.40m w".
func ParseMetricDimensions(desc string) (heightFt, widthFt *float64) {
	m := metricDims.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	h, errH := strconv.ParseFloat(m[1], 64)
	w, errW := strconv.ParseFloat(m[2], 64)
	if errH != nil || errW != nil {
		return nil, nil
	}
	return models.Ptr(toFeet(h)), models.Ptr(toFeet(w))
}

func toFeet(m float64) float64 {
	return math.Round(m*feetPerMetre*100) / 100
}

// screenName is the description with dimensions, pitch and quantity removed.
func screenName(desc string) string {
	name, _ := splitQty(desc)
	if loc := metricDims.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + name[loc[1]:]
	}
	name = pitchInText.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, " -,")
	if name == "" {
		return strings.TrimSpace(desc)
	}
	return name
}

func (p *ScotiaBankParser) parseRow(sheet string, r int, row []string) models.ScreenRecord {
	desc := cell(row, scotiaColDescription)
	height, width := ParseMetricDimensions(desc)
	_, qty := splitQty(desc)
	name := screenName(desc)

	screen := models.ScreenRecord{
		Name:         name,
		PixelPitchMM: pitchFromText(desc),
		HeightFt:     height,
		WidthFt:      width,
		Quantity:     qty,
		IsCurved:     curvedFromName(desc),
		Source:       models.Provenance{Kind: "spreadsheet", Sheet: sheet, Row: r + 1},
	}
	margin := p.opts.Rates.DefaultMargin
	if m, ok := pricing.ParseAmount(cell(row, scotiaColMargin)); ok {
		margin = pricing.NormalizeMargin(m, p.opts.Rates.DefaultMargin)
		screen.MarginPct = &margin
	}
	screen.Recompute()

	area := 0.0
	if screen.AreaSqFt != nil {
		area = *screen.AreaSqFt
	}
	cost := amount(row, scotiaColCost)
	if area > 0 {
		screen.CostPerSqFt = models.Ptr(math.Round(cost/area*100) / 100)
	}

	costs := pricing.Costs{Hardware: cost, MarginPct: margin, AreaSqFt: area}
	if v, ok := pricing.ParseAmount(cell(row, scotiaColBond)); ok {
		costs.Bond = &v
	}
	if v, ok := pricing.ParseAmount(cell(row, scotiaColTotal)); ok && v > 0 {
		costs.FinalTotal = &v
	}
	audit := pricing.Compute(costs, p.opts.Rates)

	if sell, ok := pricing.ParseAmount(cell(row, scotiaColSell)); ok && math.Abs(sell-audit.SellPrice) > 1 {
		p.opts.Log.Warn("Row %d %q: sheet sell price %.2f differs from computed %.2f", r+1, name, sell, audit.SellPrice)
	}
	screen.Audit = &audit
	return screen
}
