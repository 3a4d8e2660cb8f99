package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenRouter {
		t.Errorf("expected default provider %q, got %q", ProviderOpenRouter, cfg.Provider)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %q", cfg.EmbeddingModel)
	}
	if cfg.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.TopK)
	}
	if cfg.ScoreChunk != 4096 {
		t.Errorf("expected default score_chunk 4096, got %d", cfg.ScoreChunk)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.advisor.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o-mini"
	original.MetadataPath = "data/meta.csv"
	original.TopK = 8
	original.Prices = Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60}

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify round-trip.
	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.MetadataPath != original.MetadataPath {
		t.Errorf("metadata_path: got %q, want %q", loaded.MetadataPath, original.MetadataPath)
	}
	if loaded.TopK != original.TopK {
		t.Errorf("top_k: got %d, want %d", loaded.TopK, original.TopK)
	}
	if loaded.Prices.OutputPerMillion != original.Prices.OutputPerMillion {
		t.Errorf("output price: got %f, want %f", loaded.Prices.OutputPerMillion, original.Prices.OutputPerMillion)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != DefaultConfig().Model {
		t.Errorf("expected default model, got %q", cfg.Model)
	}
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("ADVISOR_MODEL", "override-model")
	defer os.Unsetenv("ADVISOR_MODEL")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "override-model" {
		t.Errorf("env override not applied: got %q", cfg.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing provider", func(c *Config) { c.Provider = "" }, true},
		{"unknown provider", func(c *Config) { c.Provider = "cohere" }, true},
		{"missing model", func(c *Config) { c.Model = "" }, true},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, true},
		{"missing metadata path", func(c *Config) { c.MetadataPath = "" }, true},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, true},
		{"negative timeout", func(c *Config) { c.TimeoutSecs = -1 }, true},
		{"negative price", func(c *Config) { c.Prices.InputPerMillion = -0.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderOpenRouter); got != "OPENROUTER_API_KEY" {
		t.Errorf("openrouter env var: got %q", got)
	}
	if got := APIKeyEnvVar(ProviderOpenAI); got != "OPENAI_API_KEY" {
		t.Errorf("openai env var: got %q", got)
	}
	if got := APIKeyEnvVar("other"); got != "" {
		t.Errorf("unknown provider should return empty, got %q", got)
	}
}
