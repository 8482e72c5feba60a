// Package config loads the trustplane configuration surface from YAML.
// Missing file falls back to defaults; invalid content fails at startup.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LedgerConfig configures the audit ledger.
type LedgerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	LocalPath      string `yaml:"local_path"`
	RemoteEndpoint string `yaml:"remote_endpoint"`
	RemoteKey      string `yaml:"remote_key"`
	QueueSize      int    `yaml:"queue_size"`
}

// CustomPattern is an operator-defined vault detector.
type CustomPattern struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// VaultConfig configures the tokenization vault.
type VaultConfig struct {
	Enabled          bool            `yaml:"enabled"`
	CustomPatterns   []CustomPattern `yaml:"custom_patterns"`
	KeyStoreEndpoint string          `yaml:"key_store_endpoint"`
	KeyStoreKey      string          `yaml:"key_store_key"`
}

// PolicyRule is one tool-name pattern to risk level mapping.
type PolicyRule struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
}

// ConsentGateConfig configures risk classification and the consent gate.
type ConsentGateConfig struct {
	Enabled        bool         `yaml:"enabled"`
	Rules          []PolicyRule `yaml:"rules"`
	DefaultLevel   string       `yaml:"default_level"`
	Threshold      string       `yaml:"threshold"`
	Mode           string       `yaml:"mode"`
	TimeoutSeconds int          `yaml:"timeout_seconds"`
}

// ConsentTimeout returns the configured Interactive wait bound.
func (c ConsentGateConfig) ConsentTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InjectionConfig configures the injection scanner.
type InjectionConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Sensitivity   string `yaml:"sensitivity"`
	LogDetections bool   `yaml:"log_detections"`
}

// Config is the full trustplane configuration surface.
type Config struct {
	Enabled     bool              `yaml:"enabled"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Vault       VaultConfig       `yaml:"vault"`
	ConsentGate ConsentGateConfig `yaml:"consent_gate"`
	Injection   InjectionConfig   `yaml:"injection_detection"`
}

// Default returns the built-in configuration: everything enabled, in-memory
// ledger, auto-deny consent at high risk, medium scanner sensitivity.
func Default() *Config {
	return &Config{
		Enabled: true,
		Ledger:  LedgerConfig{Enabled: true},
		Vault:   VaultConfig{Enabled: true},
		ConsentGate: ConsentGateConfig{
			Enabled:      true,
			DefaultLevel: "low",
			Threshold:    "high",
			Mode:         "auto_deny",
		},
		Injection: InjectionConfig{
			Enabled:       true,
			Sensitivity:   "medium",
			LogDetections: true,
		},
	}
}

// DefaultPath returns ~/.trustplane/config.yaml, or a temp-dir fallback when
// the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trustplane", "config.yaml")
	}
	return filepath.Join(home, ".trustplane", "config.yaml")
}

// Load reads configuration from a YAML file. Empty path falls back to
// DefaultPath. Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw bytes
// on disk, for recording which policy was in force. When no file exists the
// hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("config: read %s: %w", path, err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Defaults first; YAML overwrites only specified fields.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, hash, nil
}

// Write marshals cfg to path, creating parent directories.
func Write(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
