package excel

import (
	"math"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Column offsets on the "LED Cost Sheet".
const (
	colName = iota
	colPitch
	colHeight
	colWidth
	colQty
	colArea
	colService
	colCostPerSqFt
	colShipping
	colMargin
	colBond
	colFinal
)

// installCostCol holds the extended cost on the install sheets.
const installCostCol = 3

type installCategory int

const (
	categoryNone installCategory = iota
	categoryStructure
	categoryLabor
	categoryInstall
	categoryPM
)

// classifyInstallLine buckets an install sub-row label.
func classifyInstallLine(label string) installCategory {
	l := strings.ToUpper(strings.Join(strings.Fields(label), " "))
	switch {
	case l == "":
		return categoryNone
	case strings.Contains(l, "PROJECT MANAGEMENT") || strings.Contains(l, "ENGINEERING") || l == "PM" || strings.HasPrefix(l, "PM "):
		return categoryPM
	case strings.Contains(l, "INSTALL") || strings.Contains(l, "LABOR") || strings.Contains(l, "LABOUR"):
		return categoryLabor
	case strings.Contains(l, "ELECTRICAL") || strings.Contains(l, "POWER") || strings.Contains(l, "DATA") || strings.Contains(l, "CONDUIT"):
		return categoryInstall
	case strings.Contains(l, "STEEL") || strings.Contains(l, "FABRICAT") || strings.Contains(l, "STRUCTUR"):
		return categoryStructure
	default:
		return categoryNone
	}
}

type installBreakdown struct {
	Structure float64
	Labor     float64
	Install   float64
	PM        float64
	Sheet     string
}

type installSheet struct {
	name string
	rows [][]string
}

// StandardParser reads the "LED Cost Sheet" layout with its install sheets.
type StandardParser struct {
	opts Options
}

func (p *StandardParser) Parse(wb Workbook) (*models.ParsedProposal, error) {
	names := wb.SheetNames()
	costName, ok := findSheet(names, SheetCostSheet)
	if !ok {
		return nil, &SheetNotFoundError{Required: []string{SheetCostSheet}, Found: names}
	}
	rows, err := wb.Rows(costName)
	if err != nil {
		return nil, err
	}

	var installs []installSheet
	for _, want := range []string{SheetInstallInBowl, SheetInstallConcourse} {
		name, ok := findSheet(names, want)
		if !ok {
			continue
		}
		installRows, err := wb.Rows(name)
		if err != nil {
			return nil, err
		}
		installs = append(installs, installSheet{name: name, rows: installRows})
	}

	client, project := headerLabels(rows, 10)
	proposal := &models.ParsedProposal{
		ClientName:   client,
		ProposalName: project,
		Format:       FormatStandard.String(),
		Currency:     "USD",
	}

	screens := map[string]bool{}
	for _, row := range rows {
		if name := cell(row, colName); isProjectMarker(name) && hasNumericColumns(row) {
			screens[name] = true
		}
	}

	for r, row := range rows {
		name := cell(row, colName)
		if !screens[name] || !hasNumericColumns(row) {
			continue
		}
		screen := p.parseRow(costName, r, row, installs, screens)
		proposal.Screens = append(proposal.Screens, screen)
	}

	p.opts.Log.Info("Parsed %d screens from %q", len(proposal.Screens), costName)
	return finish(proposal), nil
}

// hasNumericColumns filters out header and label rows that happen to mention LED.
func hasNumericColumns(row []string) bool {
	for _, idx := range []int{colPitch, colHeight, colWidth, colQty, colCostPerSqFt, colFinal} {
		if _, ok := pricing.ParseAmount(cell(row, idx)); ok {
			return true
		}
	}
	return false
}

func (p *StandardParser) parseRow(sheet string, r int, row []string, installs []installSheet, screens map[string]bool) models.ScreenRecord {
	name := cell(row, colName)
	screen := models.ScreenRecord{
		Name:         name,
		PixelPitchMM: optPitch(row, colPitch),
		HeightFt:     optFloat(row, colHeight),
		WidthFt:      optFloat(row, colWidth),
		Quantity:     optInt(row, colQty),
		ServiceType:  serviceType(cell(row, colService)),
		CostPerSqFt:  optFloat(row, colCostPerSqFt),
		IsCurved:     curvedFromName(name),
		Source:       models.Provenance{Kind: "spreadsheet", Sheet: sheet, Row: r + 1},
	}
	if m, ok := pricing.ParseAmount(cell(row, colMargin)); ok {
		m = pricing.NormalizeMargin(m, p.opts.Rates.DefaultMargin)
		screen.MarginPct = &m
	}
	screen.Recompute()

	area := amount(row, colArea)
	if screen.AreaSqFt != nil {
		if area > 0 && math.Abs(area-*screen.AreaSqFt) > 0.01*area {
			p.opts.Log.Warn("Row %d %q: sheet area %.2f differs from computed %.2f, using computed", r+1, name, area, *screen.AreaSqFt)
		}
		area = *screen.AreaSqFt
	}

	costPerSqFt := 0.0
	if screen.CostPerSqFt != nil {
		costPerSqFt = *screen.CostPerSqFt
	}
	hardware := area * costPerSqFt

	breakdown, found := lookupInstall(name, installs, screens, p.opts.InstallLookahead)
	if !found {
		breakdown.Structure, breakdown.Labor, breakdown.PM = pricing.EstimateInstall(hardware, p.opts.Rates)
		p.opts.Log.Debug("No install rows for %q, using percentage estimates", name)
	}

	costs := pricing.Costs{
		Hardware:  hardware,
		Structure: breakdown.Structure,
		Install:   breakdown.Install,
		Labor:     breakdown.Labor,
		PM:        breakdown.PM,
		Shipping:  amount(row, colShipping),
		AreaSqFt:  area,
	}
	if screen.MarginPct != nil {
		costs.MarginPct = *screen.MarginPct
	} else {
		costs.MarginPct = p.opts.Rates.DefaultMargin
	}
	if v, ok := pricing.ParseAmount(cell(row, colBond)); ok {
		costs.Bond = &v
	}
	if v, ok := pricing.ParseAmount(cell(row, colFinal)); ok && v > 0 {
		costs.FinalTotal = &v
	}

	audit := pricing.Compute(costs, p.opts.Rates)
	screen.Audit = &audit
	return screen
}

// lookupInstall finds the screen by exact name on the install sheets and
// accumulates its labelled sub-rows until the next screen. An LED label
// starts the next screen only when it names a cost sheet screen or carries
// no cost of its own.
func lookupInstall(name string, sheets []installSheet, screens map[string]bool, lookahead int) (installBreakdown, bool) {
	for _, sheet := range sheets {
		for r, row := range sheet.rows {
			if cell(row, 0) != name {
				continue
			}
			b := installBreakdown{Sheet: sheet.name}
			end := min(len(sheet.rows), r+1+lookahead)
			for _, sub := range sheet.rows[r+1 : end] {
				label := cell(sub, 0)
				category := classifyInstallLine(label)
				_, hasCost := pricing.ParseAmount(cell(sub, installCostCol))
				// "INSTALL LED DISPLAYS" mentions LED but is a sub-row, not the next screen
				if category == categoryNone && isProjectMarker(label) && (screens[label] || !hasCost) {
					break
				}
				cost := amount(sub, installCostCol)
				switch category {
				case categoryStructure:
					b.Structure += cost
				case categoryLabor:
					b.Labor += cost
				case categoryInstall:
					b.Install += cost
				case categoryPM:
					b.PM += cost
				}
			}
			return b, true
		}
	}
	return installBreakdown{}, false
}
