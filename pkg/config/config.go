// Package config loads the scriptura configuration file and applies
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/scriptura/pkg/linkcheck"
	"github.com/coolbeans/scriptura/pkg/locale"
)

// Environment variables read by ApplyEnv.
const (
	EnvLocale    = "SCRIPTURA_LOCALE"
	EnvSite      = "SCRIPTURA_SITE"
	EnvLocaleDir = "SCRIPTURA_LOCALE_DIR"
)

// Config is the single-file configuration.
type Config struct {
	Locale    string `yaml:"locale" json:"locale"`
	Site      string `yaml:"site" json:"site"`
	LocaleDir string `yaml:"locale_dir" json:"locale_dir"`
	Watch     bool   `yaml:"watch" json:"watch"`
	Verbose   bool   `yaml:"verbose" json:"verbose"`

	Surround struct {
		Prefix  string `yaml:"prefix" json:"prefix"`
		Postfix string `yaml:"postfix" json:"postfix"`
	} `yaml:"surround" json:"surround"`

	LinkCheck linkcheck.Config `yaml:"linkcheck" json:"linkcheck"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Locale = locale.DefaultLocale
	cfg.Site = locale.DefaultSite
	cfg.Surround.Prefix = "**"
	cfg.Surround.Postfix = "**"
	cfg.LinkCheck = linkcheck.DefaultConfig()
	return cfg
}

// Load reads a YAML or JSON file over the defaults. Keys missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides fields from SCRIPTURA_* environment variables when they
// are set.
func (cfg *Config) ApplyEnv() {
	if value := strings.TrimSpace(os.Getenv(EnvLocale)); value != "" {
		cfg.Locale = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvSite)); value != "" {
		cfg.Site = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvLocaleDir)); value != "" {
		cfg.LocaleDir = value
	}
}

// Validate checks the values that cannot be defaulted later.
func (cfg *Config) Validate() error {
	var problems []string

	if cfg.Locale == "" {
		problems = append(problems, "locale is required")
	}
	if cfg.Site == "" {
		problems = append(problems, "site is required")
	}
	if cfg.Watch && cfg.LocaleDir == "" {
		problems = append(problems, "watch needs locale_dir")
	}
	if cfg.LinkCheck.Timeout < 0 {
		problems = append(problems, "linkcheck.timeout must not be negative")
	}
	if cfg.LinkCheck.RateLimit < 0 {
		problems = append(problems, "linkcheck.rate_limit must not be negative")
	}
	if cfg.LinkCheck.MaxRetries < 0 {
		problems = append(problems, "linkcheck.max_retries must not be negative")
	}
	if cfg.LinkCheck.Concurrency < 0 {
		problems = append(problems, "linkcheck.concurrency must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
