package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/omervk/ditherworks/pkg/manifest"
	"github.com/omervk/ditherworks/pkg/runner"
	"github.com/omervk/ditherworks/pkg/suggest"
)

// Config holds the application configuration
type Config struct {
	Limits    LimitsConfig    `json:"limits"`
	Runner    RunnerConfig    `json:"runner"`
	Quantizer QuantizerConfig `json:"quantizer"`
	Detector  DetectorConfig  `json:"detector"`
}

// LimitsConfig holds batch admission limits
type LimitsConfig struct {
	MaxSources     int `json:"max_sources"`
	MaxSourceBytes int `json:"max_source_bytes"`
}

// RunnerConfig holds configuration for batch execution
type RunnerConfig struct {
	Concurrency int `json:"concurrency"`
}

// QuantizerConfig selects and configures the quantization backend
type QuantizerConfig struct {
	Backend string `json:"backend"` // "native" or "magick"
	Binary  string `json:"binary,omitempty"`
}

// DetectorConfig holds configuration for face detection
type DetectorConfig struct {
	Backend       string  `json:"backend"` // "ollama" or "llamacpp"
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	MinConfidence float64 `json:"min_confidence"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxSources:     manifest.MaxSources,
			MaxSourceBytes: manifest.MaxSourceBytes,
		},
		Runner: RunnerConfig{
			Concurrency: runner.DefaultConcurrency,
		},
		Quantizer: QuantizerConfig{
			Backend: "native",
		},
		Detector: DetectorConfig{
			Backend:       "ollama",
			URL:           "http://localhost:11434",
			Model:         "qwen2.5vl:7b",
			MinConfidence: suggest.DefaultMinConfidence,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Limits.MaxSources < 1 || c.Limits.MaxSources > manifest.MaxSources {
		return fmt.Errorf("limits.max_sources must be between 1 and %d", manifest.MaxSources)
	}

	if c.Limits.MaxSourceBytes < 1 || c.Limits.MaxSourceBytes > manifest.MaxSourceBytes {
		return fmt.Errorf("limits.max_source_bytes must be between 1 and %d", manifest.MaxSourceBytes)
	}

	if c.Runner.Concurrency < 1 {
		return fmt.Errorf("runner.concurrency must be positive")
	}

	switch c.Quantizer.Backend {
	case "native", "magick":
	default:
		return fmt.Errorf("quantizer.backend must be \"native\" or \"magick\"")
	}

	switch c.Detector.Backend {
	case "", "ollama", "llamacpp":
	default:
		return fmt.Errorf("detector.backend must be \"ollama\" or \"llamacpp\"")
	}

	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "ditherworks", "config.json")
}
