package excel

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Workbook is the read surface the layout parsers need.
type Workbook interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
}

// File is an xlsx workbook opened from memory.
type File struct {
	f *excelize.File
}

func Open(data []byte) (*File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &File{f: f}, nil
}

func (w *File) SheetNames() []string {
	return w.f.GetSheetList()
}

// Rows returns raw cell values so currency and percent formats do not leak into numbers.
func (w *File) Rows(sheet string) ([][]string, error) {
	rows, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (w *File) Close() error {
	return w.f.Close()
}

var (
	codedPrefix = regexp.MustCompile(`^[A-Z]{2,4}\.\s*\S`)
	qtySuffix   = regexp.MustCompile(`(?i)\(\s*qty\.?\s*:?\s*(\d+)\s*\)`)
	pitchInText = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mm\b`)
	labelPrefix = regexp.MustCompile(`(?i)^\s*(client|customer|owner|project|proposal|venue)\s*(?:name)?\s*:\s*(.*)$`)
)

// isProjectMarker reports whether a first-column value starts a screen block.
func isProjectMarker(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "TOTAL") || strings.HasPrefix(upper, "SUBTOTAL") {
		return false
	}
	return strings.Contains(upper, "LED") || codedPrefix.MatchString(s)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// amount reads a money cell, defaulting to 0.
func amount(row []string, idx int) float64 {
	v, _ := pricing.ParseAmount(cell(row, idx))
	return v
}

// optFloat reads a measurement cell; unparseable or non-positive values are nil.
func optFloat(row []string, idx int) *float64 {
	v, ok := pricing.ParseAmount(cell(row, idx))
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

func optInt(row []string, idx int) *int {
	v := optFloat(row, idx)
	if v == nil {
		return nil
	}
	n := int(*v + 0.5)
	return &n
}

func optString(row []string, idx int) *string {
	s := cell(row, idx)
	if s == "" {
		return nil
	}
	return &s
}

// serviceType maps free-form service access text to "front" or "rear".
func serviceType(raw string) *string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return nil
	case strings.Contains(s, "front"):
		return models.Ptr("front")
	case strings.Contains(s, "rear") || strings.Contains(s, "back"):
		return models.Ptr("rear")
	default:
		return &s
	}
}

// curvedFromName infers curvature from a screen name when it says so.
func curvedFromName(name string) *bool {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "curved") || strings.Contains(lower, "radius"):
		return models.Ptr(true)
	case strings.Contains(lower, "flat"):
		return models.Ptr(false)
	default:
		return nil
	}
}

// headerLabels scans the first rows of a sheet for "Client:" and "Project:" style labels.
func headerLabels(rows [][]string, maxRows int) (client, project string) {
	for r := 0; r < len(rows) && r < maxRows; r++ {
		for c := 0; c < len(rows[r]); c++ {
			m := labelPrefix.FindStringSubmatch(rows[r][c])
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[2])
			if value == "" {
				value = cell(rows[r], c+1)
			}
			if value == "" {
				continue
			}
			switch strings.ToLower(m[1]) {
			case "client", "customer", "owner":
				if client == "" {
					client = value
				}
			default:
				if project == "" {
					project = value
				}
			}
		}
	}
	return client, project
}

// optPitch reads a pixel pitch given either as a number or as text like "6mm".
func optPitch(row []string, idx int) *float64 {
	if v := optFloat(row, idx); v != nil {
		return v
	}
	return pitchFromText(cell(row, idx))
}

func pitchFromText(s string) *float64 {
	m := pitchInText.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, ok := pricing.ParseAmount(m[1])
	if !ok || v <= 0 {
		return nil
	}
	return &v
}
