package filter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

var (
	// unit-suffixed numbers: 10mm, 5,000 nits, 208 VAC, 1200 lbs, 60 Hz
	unitPattern = regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s*(?:mm|millimeters?|ft|feet|inches|nits|cd/m2|hz|lbs?|pounds|vac|vdc|volts?|v|amps?|kw|kva)\b`)
	// feet-and-inches dimensions: 90' x 18', 12'-6" x 40'
	dimensionPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s*['’]\s*(?:-?\s*\d+(?:\.\d+)?\s*["”])?\s*[xX×]\s*\d+(?:\.\d+)?\s*['’]`)
	spaceRun         = regexp.MustCompile(`\s+`)
)

// Scorer assigns signal scores to page text. Scoring is a pure function of
// the text and the keyword tables it was built with.
type Scorer struct {
	cfg      Config
	signal   *regexp.Regexp
	noise    *regexp.Regexp
	drawing  *regexp.Regexp
	mustKeep []string
}

func NewScorer(cfg Config) *Scorer {
	cfg = cfg.withDefaults()
	s := &Scorer{
		cfg:     cfg,
		signal:  keywordPattern(cfg.SignalKeywords),
		noise:   keywordPattern(cfg.NoiseKeywords),
		drawing: keywordPattern(cfg.DrawingKeywords),
	}
	for _, phrase := range cfg.MustKeepPhrases {
		if p := normalizeSpace(phrase); p != "" {
			s.mustKeep = append(s.mustKeep, p)
		}
	}
	return s
}

// keywordPattern builds a case-insensitive whole-word alternation, longest keyword first.
func keywordPattern(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	sorted := append([]string(nil), keywords...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	quoted := make([]string, 0, len(sorted))
	for _, kw := range sorted {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(kw), " ", `\s+`))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func countMatches(re *regexp.Regexp, text string) int {
	if re == nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

// Score returns the page score and whether the page looks like a drawing sheet.
func (s *Scorer) Score(text string) (int, bool) {
	score := s.cfg.SignalWeight*countMatches(s.signal, text) - s.cfg.NoisePenalty*countMatches(s.noise, text)

	if unitPattern.MatchString(text) || dimensionPattern.MatchString(text) {
		score += s.cfg.MeasurementBonus
	}

	drawing := s.looksLikeDrawing(text)
	if drawing {
		score += s.cfg.DrawingBonus
	}
	return score, drawing
}

func (s *Scorer) looksLikeDrawing(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > s.cfg.DrawingMaxChars {
		return false
	}
	return s.drawing != nil && s.drawing.MatchString(trimmed)
}

// IsMustKeep reports whether the page mentions one of the must-keep section phrases.
func (s *Scorer) IsMustKeep(text string) bool {
	if len(s.mustKeep) == 0 {
		return false
	}
	normalized := normalizeSpace(text)
	for _, phrase := range s.mustKeep {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// ScorePage fills in Score and IsDrawing.
func (s *Scorer) ScorePage(p models.PdfPage) models.PdfPage {
	p.Score, p.IsDrawing = s.Score(p.Text)
	return p
}

func normalizeSpace(s string) string {
	return strings.ToLower(strings.TrimSpace(spaceRun.ReplaceAllString(s, " ")))
}
