// Package config resolves server configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (DECISION_MATRIX_* and provider keys)
//  2. Config file
//  3. Built-in defaults
//
// Provider credentials are resolved here, once, at startup; the analysis
// pipeline receives them as explicit inputs and never reads process-wide
// state on its own.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider holds configuration for one model provider.
type Provider struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Config holds all decision-matrix backend configuration.
type Config struct {
	Port           string   `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	DisableAI      bool     `yaml:"disable_ai"`

	Gemini Provider `yaml:"gemini"`
	OpenAI Provider `yaml:"openai"`

	RequestTimeout string `yaml:"request_timeout"` // Go duration string, e.g. "60s"

	// Parsed after loading, not read from YAML.
	RequestTimeoutDuration time.Duration `yaml:"-"`

	// ConfigFile is the path of the file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Port:           "2000",
		DBPath:         filepath.Join("data", "decision-matrix.db"),
		RequestTimeout: "60s",
		Gemini: Provider{
			Model:       "gemini-2.0-flash",
			Temperature: 0.3,
			MaxTokens:   4096,
		},
		OpenAI: Provider{
			Model:       "gpt-4.1-mini",
			Temperature: 0.3,
			MaxTokens:   4096,
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	timeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid request timeout %q: %w", cfg.RequestTimeout, err)
	}
	cfg.RequestTimeoutDuration = timeout

	return cfg, nil
}

func findConfigFile() (string, []byte, error) {
	if override := os.Getenv("DECISION_MATRIX_CONFIG"); override != "" {
		data, err := os.ReadFile(override)
		if err != nil {
			return "", nil, err
		}
		return override, data, nil
	}
	if data, err := os.ReadFile(".decision-matrix.yaml"); err == nil {
		return ".decision-matrix.yaml", data, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "decision-matrix", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Port != "" {
		cfg.Port = file.Port
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	if len(file.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = file.AllowedOrigins
	}
	if file.DisableAI {
		cfg.DisableAI = true
	}
	if file.RequestTimeout != "" {
		cfg.RequestTimeout = file.RequestTimeout
	}
	mergeProvider(&cfg.Gemini, &file.Gemini)
	mergeProvider(&cfg.OpenAI, &file.OpenAI)
}

func mergeProvider(dst, src *Provider) {
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Temperature > 0 {
		dst.Temperature = src.Temperature
	}
	if src.MaxTokens > 0 {
		dst.MaxTokens = src.MaxTokens
	}
}

// mergeEnv applies environment overrides onto cfg.
func mergeEnv(cfg *Config) {
	if value := os.Getenv("PORT"); value != "" {
		cfg.Port = value
	}
	if value := os.Getenv("DECISION_MATRIX_DB_PATH"); value != "" {
		cfg.DBPath = value
	}
	if value := os.Getenv("DECISION_MATRIX_DISABLE_AI"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.DisableAI = parsed
		}
	}
	if value := os.Getenv("DECISION_MATRIX_REQUEST_TIMEOUT"); value != "" {
		cfg.RequestTimeout = value
	}

	if value := os.Getenv("GEMINI_API_KEY"); value != "" {
		cfg.Gemini.APIKey = value
	}
	if value := os.Getenv("GEMINI_MODEL"); value != "" {
		cfg.Gemini.Model = value
	}
	if value := os.Getenv("GEMINI_BASE_URL"); value != "" {
		cfg.Gemini.BaseURL = value
	}
	if value := os.Getenv("GEMINI_TEMPERATURE"); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			cfg.Gemini.Temperature = parsed
		}
	}
	if value := os.Getenv("GEMINI_MAX_TOKENS"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Gemini.MaxTokens = parsed
		}
	}

	if value := os.Getenv("OPENAI_API_KEY"); value != "" {
		cfg.OpenAI.APIKey = value
	}
	if value := os.Getenv("OPENAI_MODEL"); value != "" {
		cfg.OpenAI.Model = value
	}
	if value := os.Getenv("OPENAI_BASE_URL"); value != "" {
		cfg.OpenAI.BaseURL = value
	}
	if value := os.Getenv("OPENAI_TEMPERATURE"); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			cfg.OpenAI.Temperature = parsed
		}
	}
	if value := os.Getenv("OPENAI_MAX_TOKENS"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.OpenAI.MaxTokens = parsed
		}
	}
}
