package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rfp-mcp.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Filter.Threshold != 8 || cfg.Filter.StreamingThreshold != 300 {
		t.Errorf("filter defaults = %+v", cfg.Filter)
	}
	if cfg.Pricing.BondRate != 0.015 {
		t.Errorf("bond rate = %v", cfg.Pricing.BondRate)
	}
	priority, err := cfg.MergePriority()
	if err != nil || len(priority) != 4 || priority[0] != extraction.SourceLLM {
		t.Errorf("priority = %v, %v", priority, err)
	}
}

func TestLoadFile_KeepsUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
filter:
  threshold: 12
  max_chars: 90000
pricing:
  bond_rate: 0.02
storage:
  driver: sqlite
  path: /tmp/rfp-test.db
extraction:
  priority: [spreadsheet, llm, regex, search]
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Filter.Threshold != 12 || cfg.Filter.MaxChars != 90000 {
		t.Errorf("filter overrides not applied: %+v", cfg.Filter)
	}
	if cfg.Filter.SignalWeight != 6 || len(cfg.Filter.SignalKeywords) == 0 {
		t.Error("unset filter keys should keep defaults")
	}
	if cfg.Pricing.BondRate != 0.02 || cfg.Pricing.StructurePct != 0.20 {
		t.Errorf("pricing = %+v", cfg.Pricing)
	}
	if cfg.LLM.MaxWorkers != 2 {
		t.Errorf("llm max workers = %d, want default 2", cfg.LLM.MaxWorkers)
	}
	priority, err := cfg.MergePriority()
	if err != nil || priority[0] != extraction.SourceSpreadsheet {
		t.Errorf("priority = %v, %v", priority, err)
	}
	if got, _ := cfg.Storage.SQLitePath(); got != "/tmp/rfp-test.db" {
		t.Errorf("sqlite path = %q", got)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeConfig(t, "filter: [not, a, map]")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, "llm:\n  model: file-model\n  base_url: http://file\n"))
	t.Setenv(llmModelEnv, "env-model")
	t.Setenv(llmAPIKeyEnv, "sk-test")
	t.Setenv(serperAPIKeyEnv, "serper-key")
	t.Setenv(databaseURLEnv, "postgres://u:p@localhost/rfp")
	t.Setenv(logLevelEnv, "debug")

	cfg := Load(logger.NewNoOpLogger())
	if cfg.LLM.Model != "env-model" || cfg.LLM.BaseURL != "http://file" || !cfg.LLM.Enabled() {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Search.APIKey != "serper-key" {
		t.Errorf("search key = %q", cfg.Search.APIKey)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.Storage.DSN == "" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_BadFileFallsBackToDefaults(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "nope.yaml"))
	cfg := Load(logger.NewNoOpLogger())
	if cfg.Filter.Threshold != 8 {
		t.Errorf("threshold = %d, want default", cfg.Filter.Threshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, true},
		{"postgres with dsn", func(c *Config) { c.Storage.Driver = DriverPostgres; c.Storage.DSN = "postgres://x" }, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, true},
		{"unknown source", func(c *Config) { c.Extraction.Priority = []string{"llm", "oracle"} }, true},
		{"margin out of range", func(c *Config) { c.Pricing.DefaultMargin = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
