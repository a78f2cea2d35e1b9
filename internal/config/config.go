// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultThreshold        = 15
	DefaultContextLines     = 20
	DefaultRegion           = "us-east-1"
	DefaultModelID          = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultAnthropicVersion = "bedrock-2023-05-31"
	DefaultMaxTokens        = 1000
	DefaultScratchDir       = "/tmp"
	DefaultNATSSubject      = "ipaugur.findings"
)

// ModelConfig selects and parameterizes the hosted model
type ModelConfig struct {
	Region           string `yaml:"region"`
	ModelID          string `yaml:"model_id"`
	AnthropicVersion string `yaml:"anthropic_version"`
	MaxTokens        int    `yaml:"max_tokens"`
	// Endpoint switches from Bedrock to a Messages-API compatible HTTP endpoint
	Endpoint  string `yaml:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"` // resolved at load time
}

// Config for the analyst
type Config struct {
	Threshold    int         `yaml:"suspicious_request_threshold"`
	ContextLines int         `yaml:"log_context_lines"`
	ScratchDir   string      `yaml:"scratch_dir"`
	LogLevel     string      `yaml:"log_level"`
	Model        ModelConfig `yaml:"model"`

	// Optional sinks, disabled when empty
	ArchivePath string `yaml:"archive_path"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	// Local HTTP emulation
	ListenAddr      string `yaml:"listen_addr"`
	MaxPayloadBytes int64  `yaml:"max_payload_bytes"`
	APIKey          string `yaml:"-"` // from env only
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Threshold:    DefaultThreshold,
		ContextLines: DefaultContextLines,
		ScratchDir:   DefaultScratchDir,
		LogLevel:     "info",
		Model: ModelConfig{
			Region:           DefaultRegion,
			ModelID:          DefaultModelID,
			AnthropicVersion: DefaultAnthropicVersion,
			MaxTokens:        DefaultMaxTokens,
		},
		NATSSubject:     DefaultNATSSubject,
		ListenAddr:      ":9311",
		MaxPayloadBytes: 1 << 20,
	}
}

// Load reads config from an optional YAML file on top of the defaults,
// then applies env overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Model.APIKeyEnv != "" {
		cfg.Model.APIKey = os.Getenv(cfg.Model.APIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SUSPICIOUS_REQUEST_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUSPICIOUS_REQUEST_THRESHOLD: %w", err)
		}
		c.Threshold = n
	}
	if v := os.Getenv("LOG_CONTEXT_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOG_CONTEXT_LINES: %w", err)
		}
		c.ContextLines = n
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		c.Model.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		c.Model.ModelID = v
	}
	if v := os.Getenv("IPAUGUR_SCRATCH_DIR"); v != "" {
		c.ScratchDir = v
	}
	if v := os.Getenv("IPAUGUR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("IPAUGUR_ARCHIVE_PATH"); v != "" {
		c.ArchivePath = v
	}
	if v := os.Getenv("IPAUGUR_NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if key := os.Getenv("IPAUGUR_API_KEY"); key != "" {
		c.APIKey = key
	}
	return nil
}

// Validate rejects values the analysis cannot run with
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return &ValidationError{Field: "suspicious_request_threshold", Value: c.Threshold, Reason: "must not be negative"}
	}
	if c.ContextLines < 1 {
		return &ValidationError{Field: "log_context_lines", Value: c.ContextLines, Reason: "must be positive"}
	}
	if c.Model.ModelID == "" {
		return &ValidationError{Field: "model.model_id", Value: c.Model.ModelID, Reason: "must be set"}
	}
	if c.Model.MaxTokens < 1 {
		return &ValidationError{Field: "model.max_tokens", Value: c.Model.MaxTokens, Reason: "must be positive"}
	}
	return nil
}

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}
