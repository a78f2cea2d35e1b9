// internal/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Threshold != 15 {
		t.Errorf("Threshold = %d, want 15", cfg.Threshold)
	}
	if cfg.ContextLines != 20 {
		t.Errorf("ContextLines = %d, want 20", cfg.ContextLines)
	}
	if cfg.Model.ModelID != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("ModelID = %q", cfg.Model.ModelID)
	}
	if cfg.Model.Region != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", cfg.Model.Region)
	}
	if cfg.Model.MaxTokens != 1000 {
		t.Errorf("MaxTokens = %d, want 1000", cfg.Model.MaxTokens)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ipaugur.yaml")
	content := []byte(`
suspicious_request_threshold: 50
log_context_lines: 5
scratch_dir: /var/tmp/ipaugur
archive_path: /var/lib/ipaugur/reports.db
model:
  region: eu-west-1
  endpoint: "https://gateway.internal/v1"
  api_key_env: "GATEWAY_KEY"
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GATEWAY_KEY", "gateway-secret")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Threshold != 50 {
		t.Errorf("Threshold = %d, want 50", cfg.Threshold)
	}
	if cfg.ContextLines != 5 {
		t.Errorf("ContextLines = %d, want 5", cfg.ContextLines)
	}
	if cfg.Model.Region != "eu-west-1" {
		t.Errorf("Region = %q, want eu-west-1", cfg.Model.Region)
	}
	// Unset keys keep their defaults
	if cfg.Model.ModelID != DefaultModelID {
		t.Errorf("ModelID = %q, want default", cfg.Model.ModelID)
	}
	if cfg.Model.APIKey != "gateway-secret" {
		t.Errorf("APIKey = %q, want %q", cfg.Model.APIKey, "gateway-secret")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SUSPICIOUS_REQUEST_THRESHOLD", "3")
	t.Setenv("LOG_CONTEXT_LINES", "7")
	t.Setenv("BEDROCK_MODEL_ID", "anthropic.other-model")
	t.Setenv("IPAUGUR_API_KEY", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Threshold != 3 {
		t.Errorf("Threshold = %d, want 3", cfg.Threshold)
	}
	if cfg.ContextLines != 7 {
		t.Errorf("ContextLines = %d, want 7", cfg.ContextLines)
	}
	if cfg.Model.ModelID != "anthropic.other-model" {
		t.Errorf("ModelID = %q", cfg.Model.ModelID)
	}
	if cfg.APIKey != "test-secret" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "test-secret")
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("SUSPICIOUS_REQUEST_THRESHOLD", "many")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric threshold")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ContextLines = 0

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate error = %v, want *ValidationError", err)
	}
	if verr.Field != "log_context_lines" {
		t.Errorf("Field = %q, want log_context_lines", verr.Field)
	}
}
