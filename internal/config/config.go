// Package config provides YAML-based configuration loading for the helpline bot.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from config.yaml.
// Secrets (tokens, API keys) are read from the environment, not the file.
type Config struct {
	Channel ChannelConfig `yaml:"channel"`
	DB      DBConfig      `yaml:"db"`
	NLU     NLUConfig     `yaml:"nlu"`
	Report  ReportConfig  `yaml:"report"`
	Slack   SlackConfig   `yaml:"slack"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// ChannelConfig holds WhatsApp Cloud API settings.
type ChannelConfig struct {
	GraphVersion  string `yaml:"graph_version"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
	TokenEnv      string `yaml:"token_env"` // env var holding the bearer token
}

// DBConfig selects the persistence backend.
type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // mysql DSN
}

// NLUConfig holds Gemini intent-detection settings.
type NLUConfig struct {
	Model     string  `yaml:"model"`
	APIKeyEnv string  `yaml:"api_key_env"`
	Threshold float64 `yaml:"threshold"` // minimum confidence to auto-route
}

// ReportConfig holds report/media artifact locations and the render sweep.
type ReportConfig struct {
	Dir       string `yaml:"dir"`
	MediaDir  string `yaml:"media_dir"`
	SweepCron string `yaml:"sweep_cron"` // 5-field cron expression
}

// SlackConfig holds the ops-notification channel. Empty channel disables it.
type SlackConfig struct {
	Channel  string `yaml:"channel"`
	TokenEnv string `yaml:"token_env"`
}

// HTTPConfig holds the webhook server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Channel.GraphVersion == "" {
		c.Channel.GraphVersion = "v21.0"
	}
	if c.Channel.VerifyToken == "" {
		c.Channel.VerifyToken = "cyberbot123"
	}
	if c.Channel.TokenEnv == "" {
		c.Channel.TokenEnv = "WHATSAPP_TOKEN"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "helpline.db"
	}
	if c.NLU.Model == "" {
		c.NLU.Model = "gemini-1.5-flash"
	}
	if c.NLU.APIKeyEnv == "" {
		c.NLU.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.NLU.Threshold == 0 {
		c.NLU.Threshold = 0.55
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "reports"
	}
	if c.Report.MediaDir == "" {
		c.Report.MediaDir = "media"
	}
	if c.Report.SweepCron == "" {
		c.Report.SweepCron = "*/15 * * * *"
	}
	if c.Slack.TokenEnv == "" {
		c.Slack.TokenEnv = "SLACK_BOT_TOKEN"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			errs = append(errs, "db.path is required for sqlite")
		}
	case "mysql":
		if c.DB.DSN == "" {
			errs = append(errs, "db.dsn is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite, mysql)", c.DB.Driver))
	}
	if c.NLU.Threshold < 0 || c.NLU.Threshold > 1 {
		errs = append(errs, "nlu.threshold must be between 0 and 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ChannelToken returns the WhatsApp bearer token from the environment,
// or empty string when unset (the gateway then runs in dry-run mode).
func (c *Config) ChannelToken() string {
	return os.Getenv(c.Channel.TokenEnv)
}

// GeminiAPIKey returns the Gemini API key from the environment.
func (c *Config) GeminiAPIKey() string {
	return os.Getenv(c.NLU.APIKeyEnv)
}

// SlackToken returns the Slack bot token from the environment.
func (c *Config) SlackToken() string {
	return os.Getenv(c.Slack.TokenEnv)
}
