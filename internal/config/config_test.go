package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "postgres" {
		t.Fatalf("backend = %q", cfg.Store.Backend)
	}
	if cfg.Store.Dimension != 1536 {
		t.Fatalf("dimension = %d", cfg.Store.Dimension)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 120 {
		t.Fatalf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.K != 5 {
		t.Fatalf("k = %d", cfg.Retrieval.K)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragline.yaml")
	body := `
store:
  backend: memory
  metric: l2
  dimension: 8
chunking:
  policy: paragraph
  budget: 400
retrieval:
  k: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "memory" || cfg.Store.Metric != "l2" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Chunking.Policy != "paragraph" || cfg.Chunking.Budget != 400 {
		t.Fatalf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.K != 3 {
		t.Fatalf("k = %d", cfg.Retrieval.K)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAGLINE_STORE_BACKEND", "qdrant")
	t.Setenv("RAGLINE_RETRIEVAL_K", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "qdrant" {
		t.Fatalf("backend = %q", cfg.Store.Backend)
	}
	if cfg.Retrieval.K != 7 {
		t.Fatalf("k = %d", cfg.Retrieval.K)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "unknown store backend"},
		{"bad dimension", func(c *Config) { c.Store.Dimension = 0 }, "dimension"},
		{"bad k", func(c *Config) { c.Retrieval.K = 0 }, "retrieval.k"},
		{"bad chunk policy", func(c *Config) { c.Chunking.Policy = "sentences" }, "unknown policy"},
		{"overlap too large", func(c *Config) { c.Chunking.Overlap = 900 }, "overlap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = ""
	cfg.Tracing.SampleRate = 3

	warnings := cfg.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v", warnings)
	}

	cfg.LLM.Provider = "ollama"
	cfg.Tracing.SampleRate = 0.5
	if got := cfg.Warnings(); len(got) != 0 {
		t.Fatalf("expected no warnings, got %v", got)
	}
}
