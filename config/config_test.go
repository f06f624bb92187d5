package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
service:
  name: geetanjali
  environment: staging
llm:
  provider: openai
  model: gpt-4o
pipeline:
  multipass_enabled: true
  fallback_to_single_pass: false
  max_retries: 3
retrieval:
  top_k: 8
comparison:
  enabled: true
  sample_rate: 0.25
  primary_pipeline: multipass
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GEETANJALI_TOP_K", "3")
	t.Setenv("GEETANJALI_FALLBACK_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Environment != "staging" {
		t.Errorf("environment = %q, want staging", cfg.Service.Environment)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.LLM.Provider)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("top_k = %d, want env override 3", cfg.Retrieval.TopK)
	}
	if !cfg.Pipeline.FallbackToSinglePass {
		t.Error("fallback = false, want env override true")
	}
	if cfg.Comparison.SampleRate != 0.25 {
		t.Errorf("sample rate = %v, want 0.25", cfg.Comparison.SampleRate)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  provider: mystery
comparison:
  sample_rate: 1.5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want validation failure")
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MultipassEnabled = false
	cfg.Pipeline.MaxRetries = 4
	cfg.Pipeline.DraftTimeout = 90 * time.Second
	cfg.Retrieval.TopK = 7
	cfg.Comparison.Enabled = true
	cfg.Comparison.PrimaryPipeline = consult.PipelineSinglepass

	pc := cfg.ToPipelineConfig()
	if pc.MultipassEnabled {
		t.Error("multipass should be disabled")
	}
	if pc.MaxRetries != 4 {
		t.Errorf("max retries = %d, want 4", pc.MaxRetries)
	}
	if pc.Timeouts.Draft != 90*time.Second {
		t.Errorf("draft timeout = %v, want 90s", pc.Timeouts.Draft)
	}
	if pc.TopK != 7 {
		t.Errorf("top_k = %d, want 7", pc.TopK)
	}
	if pc.PrimaryPipeline != consult.PipelineSinglepass {
		t.Errorf("primary = %q, want singlepass", pc.PrimaryPipeline)
	}
}

func TestValidatorAccumulatesErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("a", "").
		RequirePositive("b", 0).
		ValidateFloatRange("c", 2.0, 0, 1).
		ValidateOneOf("d", "nope", "yes", "no")
	if len(v.Errors()) != 4 {
		t.Fatalf("errors = %d, want 4", len(v.Errors()))
	}
	if v.Error() == nil {
		t.Fatal("Error() = nil, want combined error")
	}
}
