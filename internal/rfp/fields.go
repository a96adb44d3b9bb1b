package rfp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Each extractor is a pure function of the section text. None depends on
// another having matched.

const (
	feetUnit   = `(?:'|’|ft\.?|feet|foot)`
	inchUnit   = `(?:"|”|''|in\.?|inches)`
	numPattern = `(\d+(?:\.\d+)?)`
)

var (
	dimensionPair = regexp.MustCompile(`(?i)` + numPattern + `\s*` + feetUnit + `(?:\s*-?\s*` + numPattern + `\s*` + inchUnit + `)?` +
		`\s*[x×]\s*` + numPattern + `\s*` + feetUnit + `(?:\s*-?\s*` + numPattern + `\s*` + inchUnit + `)?`)

	widthLabel  = regexp.MustCompile(`(?i)\bwidth\s*[:\-]?\s*` + numPattern + `\s*` + feetUnit)
	heightLabel = regexp.MustCompile(`(?i)\bheight\s*[:\-]?\s*` + numPattern + `\s*` + feetUnit)

	pitchLabelled = regexp.MustCompile(`(?i)pixel\s*pitch[^0-9\n]{0,25}` + numPattern + `\s*mm`)
	pitchSub      = regexp.MustCompile(`(?i)\bsub[\s-]*` + numPattern + `\s*mm`)
	pitchBare     = regexp.MustCompile(`(?i)\b` + numPattern + `\s*mm\b`)

	nitsLabelled = regexp.MustCompile(`(?i)minimum\s+(?:brightness|nits)[^0-9\n]{0,25}([\d,]+)`)
	nitsBare     = regexp.MustCompile(`(?i)([\d,]+)\s*(?:nits|cd/m(?:2|²))`)

	refreshLabelled = regexp.MustCompile(`(?i)refresh\s*rate[^0-9\n]{0,25}([\d,]+)\s*hz`)
	refreshBare     = regexp.MustCompile(`(?i)\b([\d,]+)\s*hz\b`)

	viewingAngle = regexp.MustCompile(`(?i)viewing\s*angles?\s*[:\-]?\s*([^\n;]{1,40}?)\s*(?:[.;\n]|$)`)
	ipRating     = regexp.MustCompile(`(?i)\bIP\s?-?(\d{2})\b`)

	colorTempRange  = regexp.MustCompile(`(?i)([\d,]{4,6})\s*k?\s*(?:-|–|to)\s*([\d,]{4,6})\s*k\b`)
	colorTempSingle = regexp.MustCompile(`(?i)colou?r\s*temperature[^0-9\n]{0,25}([\d,]{4,6})\s*k\b`)

	lifetimeLabelled = regexp.MustCompile(`(?i)(?:lifetime|life\s*span|lifespan|half[\s-]?life|led\s+life)[^0-9\n]{0,40}([\d,]{4,7})\s*\+?\s*(?:hours|hrs)`)
	lifetimeBare     = regexp.MustCompile(`(?i)\b([\d,]{5,7})\s*\+?\s*(?:hours|hrs)\b`)

	serviceBefore = regexp.MustCompile(`(?i)\b(front|rear|back)[\s-]*(?:serviceable|service|access|maintenance)`)
	serviceAfter  = regexp.MustCompile(`(?i)(?:service|maintenance)\s*access[^.\n]{0,30}?\b(front|rear|back)\b`)

	transparentWord = regexp.MustCompile(`(?i)\btransparent\b`)
	curvedWord      = regexp.MustCompile(`(?i)\b(curved|convex|concave|radius)\b`)
	flatWord        = regexp.MustCompile(`(?i)\bflat\s+(?:panel|display|face|screen)\b`)

	weightLabelled = regexp.MustCompile(`(?i)(?:weight|weigh|not\s+exceed)[^0-9\n]{0,30}([\d,]+(?:\.\d+)?)\s*(?:lbs?|pounds)\b`)
	weightBare     = regexp.MustCompile(`(?i)\b([\d,]+(?:\.\d+)?)\s*(?:lbs?|pounds)\b`)

	voltagePattern  = regexp.MustCompile(`(?i)\b(\d{3})\s*(?:v|volts?|vac)\b`)
	amperageWords   = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:amps?|amperes?)\b`)
	amperageLetter  = regexp.MustCompile(`\b(\d{1,4})\s*A\b`)
	phasePattern    = regexp.MustCompile(`(?i)\b(single|three|1|3)[\s-]*(?:ph|phase)\b`)
	quantityRange   = regexp.MustCompile(`(?i)(?:quantity|qty)[^0-9\n]{0,15}(\d+)\s*(?:-|–|to)\s*(\d+)`)
	quantityLabel   = regexp.MustCompile(`(?i)(?:quantity|qty)\.?\s*(?:of)?\s*[:\-]?\s*(\d+)`)
	quantityParens  = regexp.MustCompile(`(?i)\((\d+)\)\s+(?:displays?|screens?|boards?|units?)`)
	quantityCounted = regexp.MustCompile(`(?i)\b(\d+)\s+(?:identical\s+)?(?:displays|screens|boards|units)\b`)
)

func found[T any](v T, confidence float64) models.Extracted[T] {
	return models.Extracted[T]{Value: &v, Confidence: confidence}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v, err == nil
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	return v, err == nil
}

func feetInches(feet, inches string) float64 {
	f, _ := parseFloat(feet)
	if inches != "" {
		if in, ok := parseFloat(inches); ok {
			f += in / 12
		}
	}
	return roundTo(f, 2)
}

// ExtractDimensions reads "W' x H'" with optional inches, width first.
func ExtractDimensions(section string) models.Dimensions {
	if m := dimensionPair.FindStringSubmatch(section); m != nil {
		return models.Dimensions{
			WidthFeet:  found(feetInches(m[1], m[2]), 0.9),
			HeightFeet: found(feetInches(m[3], m[4]), 0.9),
		}
	}
	var d models.Dimensions
	if m := widthLabel.FindStringSubmatch(section); m != nil {
		d.WidthFeet = found(feetInches(m[1], ""), 0.75)
	}
	if m := heightLabel.FindStringSubmatch(section); m != nil {
		d.HeightFeet = found(feetInches(m[1], ""), 0.75)
	}
	return d
}

// ExtractPixelPitch matches "Pixel pitch: 6mm", "sub 4mm" and bare "10mm".
// Bare values outside a plausible pitch range are ignored.
func ExtractPixelPitch(section string) models.Extracted[float64] {
	tries := []struct {
		re         *regexp.Regexp
		confidence float64
	}{
		{pitchLabelled, 0.95},
		{pitchSub, 0.7},
		{pitchBare, 0.6},
	}
	for _, try := range tries {
		for _, m := range try.re.FindAllStringSubmatch(section, -1) {
			v, ok := parseFloat(m[1])
			if ok && v >= 0.5 && v <= 50 {
				return found(v, try.confidence)
			}
		}
	}
	return models.Extracted[float64]{}
}

func ExtractMinimumNits(section string) models.Extracted[int] {
	return firstInt(section, []*regexp.Regexp{nitsLabelled, nitsBare}, []float64{0.95, 0.7}, 100, 20000)
}

func ExtractRefreshRate(section string) models.Extracted[int] {
	return firstInt(section, []*regexp.Regexp{refreshLabelled, refreshBare}, []float64{0.9, 0.6}, 30, 10000)
}

func ExtractViewingAngle(section string) models.Extracted[string] {
	m := viewingAngle.FindStringSubmatch(section)
	if m == nil {
		return models.Extracted[string]{}
	}
	v := strings.TrimSpace(m[1])
	if v == "" || !strings.ContainsAny(v, "0123456789") {
		return models.Extracted[string]{}
	}
	return found(v, 0.85)
}

// ExtractIPRating returns the rating normalised as "IP65".
func ExtractIPRating(section string) models.Extracted[string] {
	m := ipRating.FindStringSubmatch(section)
	if m == nil {
		return models.Extracted[string]{}
	}
	return found("IP"+m[1], 0.95)
}

// ExtractColorTemperature reads a kelvin range such as "5000K - 9300K". A
// single labelled value yields a degenerate range.
func ExtractColorTemperature(section string) models.Extracted[models.ColorTemperature] {
	if m := colorTempRange.FindStringSubmatch(section); m != nil {
		lo, okLo := parseInt(m[1])
		hi, okHi := parseInt(m[2])
		if okLo && okHi && lo >= 1000 && hi >= 1000 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return found(models.ColorTemperature{MinKelvin: lo, MaxKelvin: hi}, 0.9)
		}
	}
	if m := colorTempSingle.FindStringSubmatch(section); m != nil {
		if k, ok := parseInt(m[1]); ok && k >= 1000 {
			return found(models.ColorTemperature{MinKelvin: k, MaxKelvin: k}, 0.7)
		}
	}
	return models.Extracted[models.ColorTemperature]{}
}

func ExtractLifetimeHours(section string) models.Extracted[int] {
	return firstInt(section, []*regexp.Regexp{lifetimeLabelled, lifetimeBare}, []float64{0.9, 0.6}, 1000, 1000000)
}

// ExtractServiceAccess returns "front" or "rear".
func ExtractServiceAccess(section string) models.Extracted[string] {
	if m := serviceBefore.FindStringSubmatch(section); m != nil {
		return found(accessSide(m[1]), 0.9)
	}
	if m := serviceAfter.FindStringSubmatch(section); m != nil {
		return found(accessSide(m[1]), 0.8)
	}
	return models.Extracted[string]{}
}

func accessSide(s string) string {
	if strings.EqualFold(s, "front") {
		return "front"
	}
	return "rear"
}

// ExtractTransparent only reports a positive mention; absence is not false.
func ExtractTransparent(section string) models.Extracted[bool] {
	if transparentWord.MatchString(section) {
		return found(true, 0.8)
	}
	return models.Extracted[bool]{}
}

func ExtractCurvature(section string) models.Extracted[bool] {
	if curvedWord.MatchString(section) {
		return found(true, 0.8)
	}
	if flatWord.MatchString(section) {
		return found(false, 0.7)
	}
	return models.Extracted[bool]{}
}

func ExtractWeight(section string) models.Extracted[float64] {
	if m := weightLabelled.FindStringSubmatch(section); m != nil {
		if v, ok := parseFloat(m[1]); ok && v > 0 {
			return found(v, 0.9)
		}
	}
	if m := weightBare.FindStringSubmatch(section); m != nil {
		if v, ok := parseFloat(m[1]); ok && v > 0 {
			return found(v, 0.6)
		}
	}
	return models.Extracted[float64]{}
}

func ExtractElectrical(section string) models.Electrical {
	var e models.Electrical
	for _, m := range voltagePattern.FindAllStringSubmatch(section, -1) {
		if v, ok := parseInt(m[1]); ok && v >= 100 && v <= 600 {
			e.Voltage = found(v, 0.85)
			break
		}
	}
	if m := amperageWords.FindStringSubmatch(section); m != nil {
		if v, ok := parseInt(m[1]); ok && v > 0 {
			e.Amperage = found(v, 0.85)
		}
	} else if m := amperageLetter.FindStringSubmatch(section); m != nil {
		if v, ok := parseInt(m[1]); ok && v > 0 {
			e.Amperage = found(v, 0.6)
		}
	}
	if m := phasePattern.FindStringSubmatch(section); m != nil {
		phase := 3
		if strings.EqualFold(m[1], "single") || m[1] == "1" {
			phase = 1
		}
		e.Phase = found(phase, 0.85)
	}
	return e
}

// ExtractQuantity checks for a range such as "Qty 2-4" first and yields its
// upper bound at lower confidence. Without a range it falls back to a
// labelled, parenthesised or counted quantity.
func ExtractQuantity(section string) models.Extracted[int] {
	if m := quantityRange.FindStringSubmatch(section); m != nil {
		lo, okLo := parseInt(m[1])
		hi, okHi := parseInt(m[2])
		if okLo && okHi && hi > 0 {
			return found(max(lo, hi), 0.6)
		}
	}
	tries := []struct {
		re         *regexp.Regexp
		confidence float64
	}{
		{quantityLabel, 0.9},
		{quantityParens, 0.8},
		{quantityCounted, 0.7},
	}
	for _, try := range tries {
		if m := try.re.FindStringSubmatch(section); m != nil {
			if v, ok := parseInt(m[1]); ok && v > 0 && v < 1000 {
				return found(v, try.confidence)
			}
		}
	}
	return models.Extracted[int]{}
}

// firstInt tries each pattern in order and returns the first value within [lo, hi].
func firstInt(section string, patterns []*regexp.Regexp, confidence []float64, lo, hi int) models.Extracted[int] {
	for i, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(section, -1) {
			if v, ok := parseInt(m[1]); ok && v >= lo && v <= hi {
				return found(v, confidence[i])
			}
		}
	}
	return models.Extracted[int]{}
}
