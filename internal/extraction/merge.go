package extraction

import (
	"fmt"
	"maps"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Source names where a set of screen records came from.
type Source string

const (
	SourceLLM         Source = "llm"
	SourceSpreadsheet Source = "spreadsheet"
	SourceRegex       Source = "regex"
	SourceSearch      Source = "search"
)

// DefaultPriority is the conventional conflict order: the first source in the
// list that has a value for a field wins.
var DefaultPriority = []Source{SourceLLM, SourceSpreadsheet, SourceRegex, SourceSearch}

// ParsePriority reads a priority list such as "llm,regex". Unknown names are
// an error; sources left out keep their default relative order after the named ones.
func ParsePriority(names []string) ([]Source, error) {
	var out []Source
	seen := map[Source]bool{}
	for _, n := range names {
		s := Source(strings.ToLower(strings.TrimSpace(n)))
		if !isKnown(s) {
			return nil, &UnknownSourceError{Name: n}
		}
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	for _, s := range DefaultPriority {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

type UnknownSourceError struct {
	Name string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown extraction source %q", e.Name)
}

func isKnown(s Source) bool {
	for _, k := range DefaultPriority {
		if k == s {
			return true
		}
	}
	return false
}

// SourceResult is one source's partial view of the screens in a document.
type SourceResult struct {
	Source  Source
	Screens []models.ScreenRecord
}

// Merge reconciles partial results into one record per screen. Records are
// matched by normalised name. For every field the first non-null value in
// priority order wins; sources missing from priority rank after it in the
// order given. Output order follows first appearance in priority order.
func Merge(results []SourceResult, priority []Source) []models.ScreenRecord {
	if len(priority) == 0 {
		priority = DefaultPriority
	}

	var merged []models.ScreenRecord
	index := map[string]int{}

	for _, r := range ordered(results, priority) {
		for _, s := range r.Screens {
			key := NormalizeName(s.Name)
			i, ok := index[key]
			if !ok || key == "" {
				rec := models.ScreenRecord{ID: s.ID, Name: s.Name, Source: s.Source, Confidence: maps.Clone(s.Confidence)}
				fill(&rec, s)
				if rec.Source.Kind == "" {
					rec.Source.Kind = string(r.Source)
				}
				merged = append(merged, rec)
				if key != "" {
					index[key] = len(merged) - 1
				}
				continue
			}
			fill(&merged[i], s)
		}
	}

	for i := range merged {
		if merged[i].ID == "" {
			merged[i].ID = uuid.NewString()
		}
		merged[i].Recompute()
	}
	return merged
}

// ordered returns results by their source's rank in priority. Results of equal
// rank keep caller order.
func ordered(results []SourceResult, priority []Source) []SourceResult {
	rank := func(s Source) int {
		for i, p := range priority {
			if p == s {
				return i
			}
		}
		return len(priority)
	}
	out := make([]SourceResult, 0, len(results))
	for r := 0; r <= len(priority); r++ {
		for _, res := range results {
			if rank(res.Source) == r {
				out = append(out, res)
			}
		}
	}
	return out
}

// fill copies into dst every field that dst lacks and src has.
func fill(dst *models.ScreenRecord, src models.ScreenRecord) {
	take := func(field string, filled bool) {
		if !filled {
			return
		}
		if c, ok := src.Confidence[field]; ok {
			if dst.Confidence == nil {
				dst.Confidence = map[string]float64{}
			}
			dst.Confidence[field] = c
		}
	}
	take("pixel_pitch_mm", pick(&dst.PixelPitchMM, src.PixelPitchMM))
	take("width_ft", pick(&dst.WidthFt, src.WidthFt))
	take("height_ft", pick(&dst.HeightFt, src.HeightFt))
	take("quantity", pick(&dst.Quantity, src.Quantity))
	take("service_type", pick(&dst.ServiceType, src.ServiceType))
	take("product_type", pick(&dst.ProductType, src.ProductType))
	take("is_curved", pick(&dst.IsCurved, src.IsCurved))
	take("cost_per_sq_ft", pick(&dst.CostPerSqFt, src.CostPerSqFt))
	take("margin_pct", pick(&dst.MarginPct, src.MarginPct))
	pick(&dst.Audit, src.Audit)
	if dst.ID == "" {
		dst.ID = src.ID
	}
}

func pick[T any](dst **T, src *T) bool {
	if *dst != nil || src == nil {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// NormalizeName folds case, punctuation and spacing so "Main LED Board" and
// "main led-board" match.
func NormalizeName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
		default:
			space = true
		}
	}
	return b.String()
}
