package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrefersAzureGroupWhenBothComplete(t *testing.T) {
	t.Setenv("AZURE_OPENAI_API_KEY", "azure-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_VERSION", "2024-02-01")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("OPENAI_MODEL_NAME", "gpt-4o")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != ProviderAzureOpenAI {
		t.Fatalf("expected azure to win when both groups are complete, got %v", cfg.Provider)
	}
}

func TestLoadFallsBackToOpenAIGroup(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("OPENAI_MODEL_NAME", "gpt-4o")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %v", cfg.Provider)
	}
}

func TestLoadRejectsIncompleteGroups(t *testing.T) {
	t.Setenv("AZURE_OPENAI_API_KEY", "azure-key")

	if _, err := Load(""); err != ErrNoProviderConfigured {
		t.Fatalf("expected ErrNoProviderConfigured, got %v", err)
	}
}

func TestLoadRunOptionsFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	contents := "base_url: https://api.example.com\nmax_workers: 4\nfunctional: false\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	opts, err := LoadRunOptionsFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.BaseURL != "https://api.example.com" || opts.MaxWorkers != 4 || opts.Functional {
		t.Fatalf("unexpected overlay result: %+v", opts)
	}
	if !opts.Structural || opts.MaxCapturedArrayLen != 10 {
		t.Fatalf("expected untouched fields to keep defaults: %+v", opts)
	}
}

func TestLoadRunOptionsFileMissingPathReturnsDefaults(t *testing.T) {
	opts, err := LoadRunOptionsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts != DefaultRunOptions() {
		t.Fatalf("expected defaults for missing file, got %+v", opts)
	}
}
