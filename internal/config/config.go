package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// OracleProvider selects the verdict backend: "gemini" (default),
	// "ollama" or "openai-compat". OracleBaseURL targets the self-hosted
	// providers and is ignored for gemini.
	OracleProvider string `yaml:"oracleProvider"`
	OracleModel    string `yaml:"oracleModel"`
	OracleBaseURL  string `yaml:"oracleBaseURL"`
	OracleAPIKey   string `yaml:"oracleAPIKey"`
	GeminiAPIKey   string `yaml:"geminiAPIKey"`

	SessionTokenSecret string `yaml:"sessionTokenSecret"`
	SessionTokenTTL    string `yaml:"sessionTokenTTL"`

	// AdminKeyHash is a bcrypt hash of the key required by story-management
	// endpoints. Empty disables those endpoints.
	AdminKeyHash string `yaml:"adminKeyHash"`

	QuestionRateLimit  int    `yaml:"questionRateLimit"`
	QuestionRateWindow string `yaml:"questionRateWindow"`

	MaxQuestionLen   int `yaml:"maxQuestionLen"`
	MinQuestionWords int `yaml:"minQuestionWords"`

	TrustedProxies []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.OracleAPIKey = v
	}
	if v := os.Getenv("SESSION_TOKEN_SECRET"); v != "" {
		cfg.SessionTokenSecret = v
	}
	if v := os.Getenv("ADMIN_KEY_HASH"); v != "" {
		cfg.AdminKeyHash = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.OracleModel == "" {
		return errors.New("config: oracleModel is required (set in config.yaml)")
	}
	switch cfg.OracleProvider {
	case "", "gemini":
		if cfg.GeminiAPIKey == "" {
			return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
		}
	case "ollama":
		// Base URL optional, defaults to the local daemon.
	case "openai-compat":
		if cfg.OracleBaseURL == "" {
			return errors.New("config: oracleBaseURL is required for the openai-compat provider")
		}
	default:
		return errors.New("config: unknown oracleProvider: " + cfg.OracleProvider)
	}
	if cfg.SessionTokenSecret == "" {
		return errors.New("config: sessionTokenSecret is required (set in config.yaml or SESSION_TOKEN_SECRET)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	return nil
}

// ParseSessionTokenTTL parses the TTL field; empty means zero (library default).
func ParseSessionTokenTTL(raw string) (time.Duration, error) {
	return parseDuration(raw, "sessionTokenTTL")
}

// ParseQuestionRateWindow parses the rate window; empty means zero.
func ParseQuestionRateWindow(raw string) (time.Duration, error) {
	return parseDuration(raw, "questionRateWindow")
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", field)
	}
	return d, nil
}
