package excel

import (
	"fmt"
	"strings"
)

// Format is the closed set of workbook layouts the importer understands.
type Format int

const (
	FormatUnknown Format = iota
	FormatStandard
	FormatMoody
	FormatScotiaBank
)

func (f Format) String() string {
	switch f {
	case FormatStandard:
		return "standard"
	case FormatMoody:
		return "moody"
	case FormatScotiaBank:
		return "scotiabank"
	default:
		return "unknown"
	}
}

const (
	SheetCostSheet        = "LED Cost Sheet"
	SheetInstallInBowl    = "Install (In-Bowl)"
	SheetInstallConcourse = "Install (Concourse)"
	SheetMarginAnalysis   = "Margin Analysis (CAD)"
	SheetMoody            = "Moody Center"
)

// SheetRecognition is the result of sniffing a workbook's sheet names.
type SheetRecognition struct {
	Format        Format   `json:"format"`
	SheetName     string   `json:"sheet_name,omitempty"`
	Score         int      `json:"score"`
	MissingSheets []string `json:"missing_sheets,omitempty"`
}

// DetectFormat classifies a workbook by its sheet names alone.
func DetectFormat(sheetNames []string) SheetRecognition {
	for _, name := range sheetNames {
		if strings.Contains(normalizeName(name), "moody") {
			return SheetRecognition{Format: FormatMoody, SheetName: name, Score: 1}
		}
	}

	if name, ok := findSheet(sheetNames, SheetCostSheet); ok {
		rec := SheetRecognition{Format: FormatStandard, SheetName: name, Score: 1}
		for _, install := range []string{SheetInstallInBowl, SheetInstallConcourse} {
			if _, ok := findSheet(sheetNames, install); ok {
				rec.Score++
			} else {
				rec.MissingSheets = append(rec.MissingSheets, install)
			}
		}
		return rec
	}

	for _, name := range sheetNames {
		if strings.Contains(normalizeName(name), "margin analysis") {
			return SheetRecognition{Format: FormatScotiaBank, SheetName: name, Score: 1}
		}
	}

	return SheetRecognition{Format: FormatUnknown}
}

// SheetNotFoundError is returned when a workbook lacks the sheets a layout needs.
type SheetNotFoundError struct {
	Required []string
	Found    []string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("required sheet %s not found; workbook contains: %s",
		strings.Join(quoteAll(e.Required), " or "), strings.Join(quoteAll(e.Found), ", "))
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return quoted
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// findSheet matches a sheet name ignoring case and extra whitespace.
func findSheet(names []string, want string) (string, bool) {
	target := normalizeName(want)
	for _, n := range names {
		if normalizeName(n) == target {
			return n, true
		}
	}
	return "", false
}
