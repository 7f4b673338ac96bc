// Package config loads harvester configuration from defaults, an optional
// YAML file, a .env file, and BILILOT_* environment variables, in that
// order of precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the harvester.
type Config struct {
	API      APIConfig      `yaml:"api" json:"api"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Harvest  HarvestConfig  `yaml:"harvest" json:"harvest"`
	Throttle ThrottleConfig `yaml:"throttle" json:"throttle"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// APIConfig holds transport-level settings.
type APIConfig struct {
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int           `yaml:"burst" json:"burst"`
}

// SessionConfig holds the bilibili session cookies. Login itself is out of
// scope: these are lifted from an already authenticated browser session.
type SessionConfig struct {
	SessData string `yaml:"sessdata" json:"sessdata"`
	BiliJct  string `yaml:"bili_jct" json:"bili_jct"`
	Buvid3   string `yaml:"buvid3" json:"buvid3"`
}

// HarvestConfig holds pagination and retry settings.
type HarvestConfig struct {
	PageSize       int           `yaml:"page_size" json:"page_size"`
	PageDelay      time.Duration `yaml:"page_delay" json:"page_delay"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
}

// ThrottleRule pairs a cumulative request threshold with a pause duration.
type ThrottleRule struct {
	Threshold int64         `yaml:"threshold" json:"threshold"`
	Pause     time.Duration `yaml:"pause" json:"pause"`
}

// ThrottleConfig holds the proactive backpressure rules, evaluated largest
// threshold first.
type ThrottleConfig struct {
	Rules []ThrottleRule `yaml:"rules" json:"rules"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns the built-in defaults: the crawl cadence and
// throttle rules the platform is known to tolerate.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Harvest: HarvestConfig{
			PageSize:       30,
			PageDelay:      800 * time.Millisecond,
			MaxAttempts:    3,
			RetryBaseDelay: 800 * time.Millisecond,
		},
		Throttle: ThrottleConfig{
			Rules: []ThrottleRule{
				{Threshold: 1000, Pause: 30 * time.Second},
				{Threshold: 100, Pause: 5 * time.Second},
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration. path may be empty, in which case
// only defaults, .env and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is fine; explicit cookies in the environment win over
	// the file either way.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BILILOT_SESSDATA"); v != "" {
		c.Session.SessData = v
	}
	if v := os.Getenv("BILILOT_BILI_JCT"); v != "" {
		c.Session.BiliJct = v
	}
	if v := os.Getenv("BILILOT_BUVID3"); v != "" {
		c.Session.Buvid3 = v
	}
	if v := os.Getenv("BILILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BILILOT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("BILILOT_USER_AGENT"); v != "" {
		c.API.UserAgent = v
	}
	if v := os.Getenv("BILILOT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.API.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("BILILOT_PAGE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Harvest.PageDelay = time.Duration(n) * time.Millisecond
		}
	}
}

// Validate checks the configuration for values the crawl loop cannot work
// with.
func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %v", c.API.Timeout)
	}
	if c.API.RequestsPerMinute <= 0 {
		return fmt.Errorf("api.requests_per_minute must be positive, got %d", c.API.RequestsPerMinute)
	}
	if c.Harvest.PageSize <= 0 || c.Harvest.PageSize > 49 {
		return fmt.Errorf("harvest.page_size must be in 1..49, got %d", c.Harvest.PageSize)
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest.max_attempts must be positive, got %d", c.Harvest.MaxAttempts)
	}
	if c.Harvest.RetryBaseDelay < 0 || c.Harvest.PageDelay < 0 {
		return fmt.Errorf("harvest delays must not be negative")
	}
	for i, rule := range c.Throttle.Rules {
		if rule.Threshold <= 0 {
			return fmt.Errorf("throttle.rules[%d].threshold must be positive, got %d", i, rule.Threshold)
		}
		if rule.Pause <= 0 {
			return fmt.Errorf("throttle.rules[%d].pause must be positive, got %v", i, rule.Pause)
		}
	}
	return nil
}
