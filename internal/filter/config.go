package filter

// Config holds the keyword tables and thresholds for page scoring and retention.
type Config struct {
	SignalKeywords  []string `yaml:"signal_keywords"`
	NoiseKeywords   []string `yaml:"noise_keywords"`
	DrawingKeywords []string `yaml:"drawing_keywords"`
	MustKeepPhrases []string `yaml:"must_keep_phrases"`

	SignalWeight     int `yaml:"signal_weight"`
	NoisePenalty     int `yaml:"noise_penalty"`
	MeasurementBonus int `yaml:"measurement_bonus"`
	DrawingBonus     int `yaml:"drawing_bonus"`
	// DrawingMaxChars is the longest page text still considered a drawing sheet.
	DrawingMaxChars int `yaml:"drawing_max_chars"`
	Threshold       int `yaml:"threshold"`

	SmallDocPages    int `yaml:"small_doc_pages"`
	SmallDocMaxPages int `yaml:"small_doc_max_pages"`
	LargeDocMaxPages int `yaml:"large_doc_max_pages"`
	MaxChars         int `yaml:"max_chars"`

	StreamingThreshold int `yaml:"streaming_threshold"`
	ChunkSize          int `yaml:"chunk_size"`
	TopPerChunk        int `yaml:"top_per_chunk"`

	// FallbackPages are kept from the front of the document when no page qualifies.
	FallbackPages int `yaml:"fallback_pages"`
}

func DefaultConfig() Config {
	return Config{
		SignalKeywords: []string{
			"schedule", "pricing", "price", "bid form", "LED", "pixel pitch", "brightness", "nits",
			"structural", "display", "videoboard", "scoreboard", "ribbon board", "fascia",
			"resolution", "refresh rate", "viewing angle", "cabinet", "module", "specification",
			"dimensions", "power", "voltage", "steel", "install", "warranty", "spare parts",
		},
		NoiseKeywords: []string{
			"indemnification", "indemnify", "arbitration", "force majeure", "governing law",
			"insurance", "liability", "termination", "confidentiality", "severability",
			"hereinafter", "jurisdiction", "equal opportunity", "non-discrimination",
		},
		DrawingKeywords: []string{"scale", "detail", "elevation", "plan", "dwg"},
		MustKeepPhrases: []string{"11 06 60", "11 63 00", "27 41 16", "26 56 00"},

		SignalWeight:     6,
		NoisePenalty:     3,
		MeasurementBonus: 8,
		DrawingBonus:     15,
		DrawingMaxChars:  1200,
		Threshold:        8,

		SmallDocPages:    100,
		SmallDocMaxPages: 50,
		LargeDocMaxPages: 30,
		MaxChars:         150000,

		StreamingThreshold: 300,
		ChunkSize:          50,
		TopPerChunk:        10,

		FallbackPages: 3,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig so partial
// configs from yaml still behave.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.SignalKeywords) == 0 {
		c.SignalKeywords = d.SignalKeywords
	}
	if len(c.NoiseKeywords) == 0 {
		c.NoiseKeywords = d.NoiseKeywords
	}
	if len(c.DrawingKeywords) == 0 {
		c.DrawingKeywords = d.DrawingKeywords
	}
	if c.MustKeepPhrases == nil {
		c.MustKeepPhrases = d.MustKeepPhrases
	}
	setInt(&c.SignalWeight, d.SignalWeight)
	setInt(&c.NoisePenalty, d.NoisePenalty)
	setInt(&c.MeasurementBonus, d.MeasurementBonus)
	setInt(&c.DrawingBonus, d.DrawingBonus)
	setInt(&c.DrawingMaxChars, d.DrawingMaxChars)
	setInt(&c.Threshold, d.Threshold)
	setInt(&c.SmallDocPages, d.SmallDocPages)
	setInt(&c.SmallDocMaxPages, d.SmallDocMaxPages)
	setInt(&c.LargeDocMaxPages, d.LargeDocMaxPages)
	setInt(&c.MaxChars, d.MaxChars)
	setInt(&c.StreamingThreshold, d.StreamingThreshold)
	setInt(&c.ChunkSize, d.ChunkSize)
	setInt(&c.TopPerChunk, d.TopPerChunk)
	setInt(&c.FallbackPages, d.FallbackPages)
	return c
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// MaxPages is the retention cap for a document of the given size.
func (c Config) MaxPages(totalPages int) int {
	if totalPages <= c.SmallDocPages {
		return c.SmallDocMaxPages
	}
	return c.LargeDocMaxPages
}
