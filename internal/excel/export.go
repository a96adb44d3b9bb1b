package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const auditSheet = "Internal Audit"

var auditHeader = []any{
	"Screen", "Pitch (mm)", "Height (ft)", "Width (ft)", "Qty", "Area (sq ft)",
	"Hardware", "Structure", "Install", "Labor", "PM", "Shipping",
	"Total Cost", "Margin", "Sell Price", "Bond", "Final Total", "Price / sq ft",
}

// columns summed on the totals row (1-based): F through Q
const (
	firstSumCol = 6
	lastSumCol  = 17
	finalCol    = 17
	areaCol     = 6
	perAreaCol  = 18
)

// WriteAuditWorkbook exports the internal audit as an xlsx workbook. Totals are
// SUM formulas and the per-area price is a formula over the totals row.
func WriteAuditWorkbook(p *models.ParsedProposal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return nil, fmt.Errorf("failed to name audit sheet: %w", err)
	}

	if err := f.SetSheetRow(auditSheet, "A1", &[]any{"Client", p.ClientName, "Proposal", p.ProposalName, "Currency", p.Currency}); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(auditSheet, "A3", &auditHeader); err != nil {
		return nil, err
	}

	const firstRow = 4
	row := firstRow
	for _, s := range p.Screens {
		a := models.ScreenAudit{}
		if s.Audit != nil {
			a = *s.Audit
		}
		values := []any{
			s.Name, deref(s.PixelPitchMM), deref(s.HeightFt), deref(s.WidthFt), derefInt(s.Quantity), a.AreaSqFt,
			a.Hardware, a.Structure, a.Install, a.Labor, a.PM, a.Shipping,
			a.TotalCost, a.Margin, a.SellPrice, a.Bond, a.FinalTotal, a.PricePerSqFt,
		}
		cellName, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(auditSheet, cellName, &values); err != nil {
			return nil, fmt.Errorf("failed to write screen %q: %w", s.Name, err)
		}
		row++
	}
	lastRow := row - 1
	totalsRow := row

	if err := f.SetCellValue(auditSheet, fmt.Sprintf("A%d", totalsRow), "TOTAL"); err != nil {
		return nil, err
	}
	for col := firstSumCol; col <= lastSumCol; col++ {
		colName, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return nil, err
		}
		formula := "0"
		if lastRow >= firstRow {
			formula = fmt.Sprintf("SUM(%s%d:%s%d)", colName, firstRow, colName, lastRow)
		}
		if err := f.SetCellFormula(auditSheet, fmt.Sprintf("%s%d", colName, totalsRow), formula); err != nil {
			return nil, err
		}
	}

	finalName, _ := excelize.ColumnNumberToName(finalCol)
	areaName, _ := excelize.ColumnNumberToName(areaCol)
	perAreaName, _ := excelize.ColumnNumberToName(perAreaCol)
	perArea := fmt.Sprintf("IF(%s%d>0,%s%d/%s%d,0)", areaName, totalsRow, finalName, totalsRow, areaName, totalsRow)
	if err := f.SetCellFormula(auditSheet, fmt.Sprintf("%s%d", perAreaName, totalsRow), perArea); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write audit workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
