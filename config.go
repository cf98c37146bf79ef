package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfig marks a problem with credentials or the config document
var ErrConfig = errors.New("invalid configuration")

const (
	DefaultConfigPath        = "config/config.yaml"
	DefaultDurationDays      = 14
	DefaultOutputDir         = "summaries"
	DefaultCacheDir          = "cache"
	DefaultModel             = "gpt-4-0125-preview"
	DefaultMaxTokens         = 4000
	DefaultTemperature       = 0.7
	DefaultRequestsPerMinute = 50
	DefaultLogLevel          = "info"
	DefaultLogFile           = "logs/slack_summarizer.log"

	envSlackToken   = "SLACK_TOKEN"
	envOpenAIAPIKey = "OPENAI_API_KEY"
)

// SlackConfig holds the retrieval settings
type SlackConfig struct {
	Channels          []string `yaml:"channels"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

// SummaryConfig holds the digest window and output location
type SummaryConfig struct {
	DurationDays int    `yaml:"duration_days"`
	OutputDir    string `yaml:"output_dir"`
}

// OpenAIConfig holds the generation model parameters
type OpenAIConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
}

// CacheConfig holds the identity cache location and freshness window
type CacheConfig struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig holds the log level and optional log file
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the validated application configuration
type Config struct {
	SlackToken   string        `yaml:"-"`
	OpenAIAPIKey string        `yaml:"-"`
	Slack        SlackConfig   `yaml:"slack"`
	Summary      SummaryConfig `yaml:"summary"`
	OpenAI       OpenAIConfig  `yaml:"openai"`
	Cache        CacheConfig   `yaml:"cache"`
	Logging      LoggingConfig `yaml:"logging"`
}

func defaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		Summary: SummaryConfig{
			DurationDays: DefaultDurationDays,
			OutputDir:    DefaultOutputDir,
		},
		OpenAI: OpenAIConfig{
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Cache: CacheConfig{
			Dir: DefaultCacheDir,
			TTL: DefaultCacheTTL,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
			File:  DefaultLogFile,
		},
	}
}

// LoadConfig reads .env (if any), the environment and the YAML document at path
func LoadConfig(path string) (*Config, error) {
	// A missing .env is fine, the variables may already be exported
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := loadFromYAML(path, cfg); err != nil {
		return nil, err
	}

	cfg.SlackToken = strings.TrimSpace(os.Getenv(envSlackToken))
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv(envOpenAIAPIKey))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromYAML overlays the document at path onto cfg
func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: config file not found at %s: %v", ErrConfig, path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrConfig, path, err)
	}
	return nil
}

// Validate checks that credentials are present and values are in range
func (c *Config) Validate() error {
	var missing []string
	if c.SlackToken == "" {
		missing = append(missing, envSlackToken)
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, envOpenAIAPIKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required environment variables: %s", ErrConfig, strings.Join(missing, ", "))
	}

	channels := make([]string, 0, len(c.Slack.Channels))
	for _, ch := range c.Slack.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return fmt.Errorf("%w: slack.channels must list at least one channel id", ErrConfig)
	}
	c.Slack.Channels = channels

	if c.Slack.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: slack.requests_per_minute must not be negative", ErrConfig)
	}
	if c.Summary.DurationDays <= 0 {
		return fmt.Errorf("%w: summary.duration_days must be positive", ErrConfig)
	}
	if c.Summary.OutputDir == "" {
		return fmt.Errorf("%w: summary.output_dir must not be empty", ErrConfig)
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir must not be empty", ErrConfig)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", ErrConfig)
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("%w: openai.model must not be empty", ErrConfig)
	}
	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("%w: openai.max_tokens must be positive", ErrConfig)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of: trace, debug, info, warn, error", ErrConfig)
	}

	return nil
}

// looksLikeSlackToken reports whether the token carries a known Slack prefix
func looksLikeSlackToken(token string) bool {
	for _, prefix := range []string{"xoxp-", "xoxb-", "xoxe.", "xoxe-"} {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}
