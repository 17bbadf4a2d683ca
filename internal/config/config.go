// Package config loads service configuration from a YAML file with
// environment-variable overrides (TAXINTEL_*).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080"
	Listen string `yaml:"listen"`

	// DatabasePath is the SQLite database file path
	DatabasePath string `yaml:"database_path"`

	// DefaultTaxYear is used when a calculation request omits the year
	DefaultTaxYear int `yaml:"default_tax_year"`

	// SupportedLanguages are the assistant languages, first is the default
	SupportedLanguages []string `yaml:"supported_languages"`

	// SessionTTL is how long a chat session stays live without activity,
	// e.g. "2h"
	SessionTTL Duration `yaml:"session_ttl"`

	Assistant AssistantConfig `yaml:"assistant"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Safety    SafetyConfig    `yaml:"safety"`
	Admin     AdminConfig     `yaml:"admin"`
}

// AssistantConfig configures the Anthropic-backed assistant
type AssistantConfig struct {
	// APIKey for the Anthropic API; falls back to ANTHROPIC_API_KEY
	APIKey string `yaml:"api_key"`

	// Model name; empty selects the package default
	Model string `yaml:"model"`

	// MaxConcurrent caps in-flight assistant calls
	MaxConcurrent int `yaml:"max_concurrent"`
}

// RateLimitConfig holds per-IP token-bucket limits by endpoint class,
// in requests per minute with a burst allowance.
type RateLimitConfig struct {
	Enabled    bool `yaml:"enabled"`
	ChatPerMin int  `yaml:"chat_per_min"`
	CalcPerMin int  `yaml:"calc_per_min"`
	ReadPerMin int  `yaml:"read_per_min"`
	Burst      int  `yaml:"burst"`
}

// SafetyConfig toggles content moderation layers
type SafetyConfig struct {
	Enabled      bool `yaml:"enabled"`
	PIIDetection bool `yaml:"pii_detection"`
}

// AdminConfig holds dashboard credentials. Tokens issued on login are stored
// hashed in the database with an 8 hour expiry.
type AdminConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Default returns the development defaults
func Default() *Config {
	return &Config{
		Listen:             ":8080",
		DatabasePath:       "taxintel.db",
		DefaultTaxYear:     2023,
		SupportedLanguages: []string{"en", "es"},
		SessionTTL:         Duration(2 * time.Hour),
		Assistant: AssistantConfig{
			MaxConcurrent: 4,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			ChatPerMin: 30,
			CalcPerMin: 20,
			ReadPerMin: 60,
			Burst:      5,
		},
		Safety: SafetyConfig{
			Enabled:      true,
			PIIDetection: true,
		},
		Admin: AdminConfig{
			Enabled: true,
			Email:   "admin@taxintel.local",
		},
	}
}

// Load reads configuration from a YAML file, then applies environment
// overrides. A missing file is not an error: defaults plus environment are
// used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from TAXINTEL_* environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("TAXINTEL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("TAXINTEL_DB"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("TAXINTEL_TAX_YEAR"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			c.DefaultTaxYear = year
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid TAXINTEL_TAX_YEAR %q, keeping %d\n", v, c.DefaultTaxYear)
		}
	}
	if v := os.Getenv("TAXINTEL_SESSION_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.SessionTTL = Duration(ttl)
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid TAXINTEL_SESSION_TTL %q, keeping %v\n", v, c.SessionTTL)
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.Assistant.APIKey == "" {
		c.Assistant.APIKey = v
	}
	if v := os.Getenv("TAXINTEL_MODEL"); v != "" {
		c.Assistant.Model = v
	}
	if v := os.Getenv("TAXINTEL_ADMIN_EMAIL"); v != "" {
		c.Admin.Email = v
	}
	if v := os.Getenv("TAXINTEL_ADMIN_PASSWORD"); v != "" {
		c.Admin.Password = v
	}
	if v := os.Getenv("TAXINTEL_SAFETY_ENABLED"); v != "" {
		c.Safety.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TAXINTEL_RATELIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
}

// Validate checks for configuration errors that should stop startup
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.DefaultTaxYear <= 0 {
		return fmt.Errorf("default tax year must be positive (got %d)", c.DefaultTaxYear)
	}
	if len(c.SupportedLanguages) == 0 {
		return fmt.Errorf("at least one supported language is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive (got %v)", time.Duration(c.SessionTTL))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.ChatPerMin <= 0 || c.RateLimit.CalcPerMin <= 0 || c.RateLimit.ReadPerMin <= 0 {
			return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit burst must be positive")
		}
	}
	if c.Admin.Enabled && c.Admin.Email == "" {
		return fmt.Errorf("admin email is required when the admin dashboard is enabled")
	}
	return nil
}

// DefaultLanguage returns the first supported language
func (c *Config) DefaultLanguage() string {
	return c.SupportedLanguages[0]
}

// LanguageSupported reports whether lang is one of the configured languages
func (c *Config) LanguageSupported(lang string) bool {
	for _, l := range c.SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
