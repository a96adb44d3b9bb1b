package rfp

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const (
	MethodNumbered   = "numbered-sections"
	MethodDimensions = "dimension-anchors"
	MethodNone       = "none"
)

// trackedFields is the number of per-location slots counted toward confidence.
const trackedFields = 17

var (
	// locationMarker is a numbered list entry on its own line: "1 Main Videoboard", "2. Ribbon Boards".
	locationMarker = regexp.MustCompile(`(?m)^[ \t]*(\d{1,2})[.)]?[ \t]+([A-Z][A-Za-z0-9&'/,\- ]{2,60}?)[ \t]*:?[ \t]*$`)
	capitalised    = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:[ \t]+[A-Z][a-zA-Z]+){0,4}\b`)
	clientLine     = regexp.MustCompile(`(?im)^[ \t]*(?:client|owner|issued\s+by|agency)[ \t]*:[ \t]*(.+?)[ \t]*$`)
	titleLine      = regexp.MustCompile(`(?im)^[ \t]*(?:project(?:[ \t]+(?:title|name))?|rfp[ \t]+title)[ \t]*:[ \t]*(.+?)[ \t]*$`)
	titlePhrase    = regexp.MustCompile(`(?i)request\s+for\s+proposals?\s+(?:for|to)\s+([^\n.]{3,120})`)
)

// ExtractRFPRequirements pulls per-location display requirements from RFP
// text. Locations come from numbered section markers; when there are none,
// dimension matches anchor the locations instead.
func ExtractRFPRequirements(text string) models.ParsedRFP {
	parsed := models.ParsedRFP{
		ClientName:   firstGroup(clientLine, text),
		ProjectTitle: firstGroup(titleLine, text),
		Metadata: models.RFPMetadata{
			Method:      MethodNone,
			ExtractedAt: time.Now().UTC(),
		},
	}
	if parsed.ProjectTitle == "" {
		parsed.ProjectTitle = firstGroup(titlePhrase, text)
	}

	if locs := numberedLocations(text); len(locs) > 0 {
		parsed.Locations = locs
		parsed.Metadata.Method = MethodNumbered
	} else if locs := anchoredLocations(text); len(locs) > 0 {
		parsed.Locations = locs
		parsed.Metadata.Method = MethodDimensions
	}

	parsed.Metadata.Confidence = Confidence(parsed.Locations)
	return parsed
}

type section struct {
	number int
	name   string
	body   string
}

func numberedLocations(text string) []models.RFPLocation {
	matches := locationMarker.FindAllStringSubmatchIndex(text, -1)
	var sections []section
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		n, _ := strconv.Atoi(text[m[2]:m[3]])
		sections = append(sections, section{
			number: n,
			name:   strings.TrimSpace(text[m[4]:m[5]]),
			body:   text[m[1]:end],
		})
	}

	var locations []models.RFPLocation
	for _, s := range sections {
		loc := extractLocation(s)
		// numbered lines that describe no display at all are ordinary list items
		if filledSlots(loc) == 0 {
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}

// anchoredLocations treats each dimension match as a location. Its section runs
// from the previous anchor to the next one and its name is the nearest run of
// capitalised words before the match.
func anchoredLocations(text string) []models.RFPLocation {
	anchors := dimensionPair.FindAllStringIndex(text, -1)
	var locations []models.RFPLocation
	prevEnd := 0
	for i, a := range anchors {
		next := len(text)
		if i+1 < len(anchors) {
			next = anchors[i+1][0]
		}
		s := section{
			number: i + 1,
			name:   nameBefore(text[prevEnd:a[0]], i+1),
			body:   text[prevEnd:next],
		}
		locations = append(locations, extractLocation(s))
		prevEnd = a[1]
	}
	return locations
}

func nameBefore(prefix string, n int) string {
	window := prefix
	if len(window) > 200 {
		window = window[len(window)-200:]
	}
	names := capitalised.FindAllString(window, -1)
	for i := len(names) - 1; i >= 0; i-- {
		name := strings.TrimPrefix(strings.TrimSpace(names[i]), "The ")
		if !isStopWord(name) {
			return name
		}
	}
	return fmt.Sprintf("Location %d", n)
}

func isStopWord(s string) bool {
	switch strings.ToLower(s) {
	case "the", "size", "dimensions", "display", "approximately", "minimum", "maximum", "width", "height":
		return true
	}
	return false
}

func extractLocation(s section) models.RFPLocation {
	return models.RFPLocation{
		Number:     s.number,
		Name:       s.name,
		Dimensions: ExtractDimensions(s.body),
		TechnicalRequirements: models.TechnicalRequirements{
			PixelPitchMM:     ExtractPixelPitch(s.body),
			MinimumNits:      ExtractMinimumNits(s.body),
			RefreshRateHz:    ExtractRefreshRate(s.body),
			ViewingAngle:     ExtractViewingAngle(s.body),
			IPRating:         ExtractIPRating(s.body),
			ColorTemperature: ExtractColorTemperature(s.body),
			LifetimeHours:    ExtractLifetimeHours(s.body),
			ServiceAccess:    ExtractServiceAccess(s.body),
			Transparent:      ExtractTransparent(s.body),
			Curved:           ExtractCurvature(s.body),
		},
		Electrical: ExtractElectrical(s.body),
		WeightLbs:  ExtractWeight(s.body),
		Quantity:   ExtractQuantity(s.body),
	}
}

func filledSlots(l models.RFPLocation) int {
	t := l.TechnicalRequirements
	e := l.Electrical
	slots := []bool{
		l.Dimensions.WidthFeet.Found(), l.Dimensions.HeightFeet.Found(),
		t.PixelPitchMM.Found(), t.MinimumNits.Found(), t.RefreshRateHz.Found(),
		t.ViewingAngle.Found(), t.IPRating.Found(), t.ColorTemperature.Found(),
		t.LifetimeHours.Found(), t.ServiceAccess.Found(), t.Transparent.Found(), t.Curved.Found(),
		e.Voltage.Found(), e.Amperage.Found(), e.Phase.Found(),
		l.WeightLbs.Found(), l.Quantity.Found(),
	}
	n := 0
	for _, ok := range slots {
		if ok {
			n++
		}
	}
	return n
}

// Confidence is the percentage of non-null tracked slots across all
// locations, within [0, 100].
func Confidence(locations []models.RFPLocation) float64 {
	if len(locations) == 0 {
		return 0
	}
	filled := 0
	for _, l := range locations {
		filled += filledSlots(l)
	}
	pct := float64(filled) / float64(len(locations)*trackedFields) * 100
	return math.Max(0, math.Min(100, roundTo(pct, 1)))
}

// Screens converts located requirements into screen records.
func Screens(parsed models.ParsedRFP) []models.ScreenRecord {
	screens := make([]models.ScreenRecord, 0, len(parsed.Locations))
	for _, l := range parsed.Locations {
		t := l.TechnicalRequirements
		s := models.ScreenRecord{
			Name:         l.Name,
			PixelPitchMM: t.PixelPitchMM.Value,
			WidthFt:      l.Dimensions.WidthFeet.Value,
			HeightFt:     l.Dimensions.HeightFeet.Value,
			Quantity:     l.Quantity.Value,
			ServiceType:  t.ServiceAccess.Value,
			IsCurved:     t.Curved.Value,
			Source: models.Provenance{
				Kind:     "regex",
				Citation: fmt.Sprintf("location %d", l.Number),
			},
			Confidence: map[string]float64{},
		}
		setConfidence(s.Confidence, "pixel_pitch_mm", t.PixelPitchMM.Confidence)
		setConfidence(s.Confidence, "width_ft", l.Dimensions.WidthFeet.Confidence)
		setConfidence(s.Confidence, "height_ft", l.Dimensions.HeightFeet.Confidence)
		setConfidence(s.Confidence, "quantity", l.Quantity.Confidence)
		setConfidence(s.Confidence, "service_type", t.ServiceAccess.Confidence)
		setConfidence(s.Confidence, "is_curved", t.Curved.Confidence)
		s.Recompute()
		screens = append(screens, s)
	}
	return screens
}

func setConfidence(m map[string]float64, field string, c float64) {
	if c > 0 {
		m[field] = c
	}
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
