package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/filter"
	"github.com/Epistemic-Technology/rfp-mcp/internal/llm"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
)

const (
	configPathEnv    = "RFP_MCP_CONFIG"
	llmBaseURLEnv    = "LLM_BASE_URL"
	llmAPIKeyEnv     = "LLM_API_KEY"
	llmModelEnv      = "LLM_MODEL"
	llmVisionEnv     = "LLM_VISION_MODEL"
	serperAPIKeyEnv  = "SERPER_API_KEY"
	databaseURLEnv   = "DATABASE_URL"
	sqlitePathEnv    = "RFP_MCP_DB_PATH"
	logLevelEnv      = "LOG_LEVEL"
	DriverSQLite     = "sqlite"
	DriverPostgres   = "postgres"
	defaultRenderDPI = 110
)

// Config holds every setting the server reads at startup.
type Config struct {
	Log        logger.LogConfig `yaml:"log"`
	Filter     filter.Config    `yaml:"filter"`
	Pricing    pricing.Rates    `yaml:"pricing"`
	LLM        llm.Config       `yaml:"llm"`
	Search     SearchConfig     `yaml:"search"`
	Storage    StorageConfig    `yaml:"storage"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// SearchConfig configures the web search fallback.
type SearchConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// StorageConfig selects the proposal store. Path is used by sqlite, DSN by postgres.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// ExtractionConfig tunes the ingestion pipeline.
type ExtractionConfig struct {
	// Priority orders sources when merged screens disagree.
	Priority         []string `yaml:"priority"`
	InstallLookahead int      `yaml:"install_lookahead"`
	RenderDPI        float64  `yaml:"render_dpi"`
}

// Default returns the built-in configuration.
func Default() Config {
	priority := make([]string, len(extraction.DefaultPriority))
	for i, s := range extraction.DefaultPriority {
		priority[i] = string(s)
	}
	return Config{
		Log:     logger.LogConfig{Level: "info"},
		Filter:  filter.DefaultConfig(),
		Pricing: pricing.DefaultRates(),
		LLM: llm.Config{
			TokensPerSecond: 5000,
			BurstTokens:     60000,
			MaxRetries:      5,
			MaxWorkers:      2,
		},
		Storage: StorageConfig{Driver: DriverSQLite},
		Extraction: ExtractionConfig{
			Priority:         priority,
			InstallLookahead: 25,
			RenderDPI:        defaultRenderDPI,
		},
	}
}

// Load reads the YAML file named by RFP_MCP_CONFIG (if set) over the
// defaults and applies environment overrides. Unreadable files are logged
// and skipped.
func Load(log logger.Logger) Config {
	cfg := Default()
	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			log.Warn("Cannot load config %s, using defaults: %v", path, err)
		} else {
			cfg = fileCfg
		}
	}
	cfg.applyEnvOverrides()
	return cfg
}

// LoadFile decodes a YAML file on top of Default. Keys absent from the file
// keep their default values.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmVisionEnv); v != "" {
		c.LLM.VisionModel = v
	}
	if v := os.Getenv(serperAPIKeyEnv); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv(databaseURLEnv); v != "" {
		c.Storage.Driver = DriverPostgres
		c.Storage.DSN = v
	}
	if v := os.Getenv(sqlitePathEnv); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	if _, err := c.MergePriority(); err != nil {
		errs = append(errs, fmt.Errorf("extraction: %w", err))
	}
	if m := c.Pricing.DefaultMargin; m < 0 || m >= 1 {
		errs = append(errs, fmt.Errorf("pricing: default_margin %v must be in [0,1)", m))
	}
	return errors.Join(errs...)
}

// MergePriority parses the configured source order.
func (c Config) MergePriority() ([]extraction.Source, error) {
	if len(c.Extraction.Priority) == 0 {
		return extraction.DefaultPriority, nil
	}
	return extraction.ParsePriority(c.Extraction.Priority)
}

// SQLitePath resolves the database file, defaulting to ~/.rfp-mcp/rfp.db.
func (s StorageConfig) SQLitePath() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dbDir := filepath.Join(homeDir, ".rfp-mcp")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return filepath.Join(dbDir, "rfp.db"), nil
}
