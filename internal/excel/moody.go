package excel

import (
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Column offsets on the Moody Center sheet.
const (
	moodyColCode = iota
	moodyColDescription
	moodyColPitch
	moodyColHeight
	moodyColWidth
	moodyColCostPerSqFt
	moodyColMargin
	moodyColTotal
)

// MoodyParser reads the Moody Center pricing layout, where quantities ride
// on the description as a "(Qty N)" suffix.
type MoodyParser struct {
	opts Options
}

func (p *MoodyParser) Parse(wb Workbook) (*models.ParsedProposal, error) {
	names := wb.SheetNames()
	rec := DetectFormat(names)
	if rec.Format != FormatMoody {
		return nil, &SheetNotFoundError{Required: []string{SheetMoody}, Found: names}
	}
	rows, err := wb.Rows(rec.SheetName)
	if err != nil {
		return nil, err
	}

	client, project := headerLabels(rows, 10)
	if client == "" {
		client = SheetMoody
	}
	proposal := &models.ParsedProposal{
		ClientName:   client,
		ProposalName: project,
		Format:       FormatMoody.String(),
		Currency:     "USD",
	}

	for r, row := range rows {
		desc := cell(row, moodyColDescription)
		code := cell(row, moodyColCode)
		if desc == "" || !(isProjectMarker(code) || isProjectMarker(desc)) || !moodyHasNumbers(row) {
			continue
		}
		proposal.Screens = append(proposal.Screens, p.parseRow(rec.SheetName, r, row))
	}

	p.opts.Log.Info("Parsed %d screens from %q", len(proposal.Screens), rec.SheetName)
	return finish(proposal), nil
}

func moodyHasNumbers(row []string) bool {
	for _, idx := range []int{moodyColPitch, moodyColHeight, moodyColWidth, moodyColTotal} {
		if _, ok := pricing.ParseAmount(cell(row, idx)); ok {
			return true
		}
	}
	return false
}

// splitQty strips a "(Qty N)" suffix from a description.
func splitQty(desc string) (string, *int) {
	m := qtySuffix.FindStringSubmatchIndex(desc)
	if m == nil {
		return strings.TrimSpace(desc), nil
	}
	qty := 0
	for _, ch := range desc[m[2]:m[3]] {
		qty = qty*10 + int(ch-'0')
	}
	name := strings.TrimSpace(desc[:m[0]] + desc[m[1]:])
	name = strings.TrimRight(name, " -,")
	return name, &qty
}

func (p *MoodyParser) parseRow(sheet string, r int, row []string) models.ScreenRecord {
	name, qty := splitQty(cell(row, moodyColDescription))
	screen := models.ScreenRecord{
		Name:         name,
		PixelPitchMM: optPitch(row, moodyColPitch),
		HeightFt:     optFloat(row, moodyColHeight),
		WidthFt:      optFloat(row, moodyColWidth),
		Quantity:     qty,
		CostPerSqFt:  optFloat(row, moodyColCostPerSqFt),
		IsCurved:     curvedFromName(name),
		Source:       models.Provenance{Kind: "spreadsheet", Sheet: sheet, Row: r + 1},
	}
	if screen.PixelPitchMM == nil {
		screen.PixelPitchMM = pitchFromText(name)
	}
	margin := p.opts.Rates.DefaultMargin
	if m, ok := pricing.ParseAmount(cell(row, moodyColMargin)); ok {
		margin = pricing.NormalizeMargin(m, p.opts.Rates.DefaultMargin)
		screen.MarginPct = &margin
	}
	screen.Recompute()

	area := 0.0
	if screen.AreaSqFt != nil {
		area = *screen.AreaSqFt
	}
	hardware := 0.0
	if screen.CostPerSqFt != nil {
		hardware = area * *screen.CostPerSqFt
	}
	structure, labor, pm := pricing.EstimateInstall(hardware, p.opts.Rates)

	costs := pricing.Costs{
		Hardware:  hardware,
		Structure: structure,
		Labor:     labor,
		PM:        pm,
		MarginPct: margin,
		AreaSqFt:  area,
	}
	if v, ok := pricing.ParseAmount(cell(row, moodyColTotal)); ok && v > 0 {
		costs.FinalTotal = &v
	}
	audit := pricing.Compute(costs, p.opts.Rates)
	screen.Audit = &audit
	return screen
}
