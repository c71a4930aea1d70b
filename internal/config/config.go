// Package config provides YAML-based configuration loading for Trendyard.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Trendyard configuration, loaded from trendyard.yaml.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Sources  SourcesConfig  `yaml:"sources"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Notify   NotifyConfig   `yaml:"notify"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Logging  LoggingConfig  `yaml:"logging"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// LLMConfig selects and configures the text-generation backend.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SourcesConfig configures the candidate sources.
type SourcesConfig struct {
	WebSearch    WebSearchConfig     `yaml:"web_search"`
	Community    CommunityConfig     `yaml:"community"`
	GitHub       GitHubConfig        `yaml:"github"`
	Timeout      time.Duration       `yaml:"timeout"`
	EnrichLimit  int                 `yaml:"enrich_limit"`
	ReportLimit  int                 `yaml:"report_limit"`
	TrendDomains map[string][]string `yaml:"trend_domains"`
}

// WebSearchConfig holds the web-search credential. An empty key means the
// source runs in simulation mode.
type WebSearchConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	MaxResults int    `yaml:"max_results"`
}

// CommunityConfig holds the community-discussion credential pair.
type CommunityConfig struct {
	APIKey     string   `yaml:"api_key"`
	UserID     string   `yaml:"user_id"`
	Endpoint   string   `yaml:"endpoint"`
	Subreddits []string `yaml:"subreddits"`
}

// GitHubConfig enables the code-hosting source when Token is set.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// NotifyConfig holds chat notification targets. Each target is enabled when
// both its token and channel are set.
type NotifyConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a bot token and the channel it posts to.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are set.
func (c ChannelConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// SweeperConfig controls expiry of stale pending approvals.
type SweeperConfig struct {
	Schedule    string        `yaml:"schedule"`
	ApprovalTTL time.Duration `yaml:"approval_ttl"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultsConfig holds values used when a caller omits them.
type DefaultsConfig struct {
	Platforms []string `yaml:"platforms"`
	Mode      string   `yaml:"mode"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Parse(nil)
	}
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

// ApplyEnv overlays credentials from the environment. Values present in the
// environment win over the file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.LLM.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	set(&c.Sources.WebSearch.APIKey, "TAVILY_API_KEY")
	set(&c.Sources.Community.APIKey, "COMPOSIO_API_KEY")
	set(&c.Sources.Community.UserID, "COMPOSIO_USER_ID")
	set(&c.Sources.GitHub.Token, "GITHUB_TOKEN")
	set(&c.Notify.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&c.Notify.Discord.BotToken, "DISCORD_BOT_TOKEN")
	set(&c.Database.Driver, "TRENDYARD_DB_DRIVER")
	set(&c.Database.Path, "TRENDYARD_DB_PATH")
	set(&c.Database.Password, "TRENDYARD_DB_PASSWORD")
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.Sources.WebSearch.Endpoint == "" {
		c.Sources.WebSearch.Endpoint = "https://api.tavily.com/search"
	}
	if c.Sources.WebSearch.MaxResults == 0 {
		c.Sources.WebSearch.MaxResults = 10
	}
	if c.Sources.Community.Endpoint == "" {
		c.Sources.Community.Endpoint = "https://backend.composio.dev/v3/mcp"
	}
	if len(c.Sources.Community.Subreddits) == 0 {
		c.Sources.Community.Subreddits = []string{"marketing", "entrepreneur", "startups"}
	}
	if c.Sources.Timeout == 0 {
		c.Sources.Timeout = 30 * time.Second
	}
	if c.Sources.EnrichLimit == 0 {
		c.Sources.EnrichLimit = 15
	}
	if c.Sources.ReportLimit == 0 {
		c.Sources.ReportLimit = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "trendyard.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Database == "" {
		c.Database.Database = "trendyard"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.Sweeper.Schedule == "" {
		c.Sweeper.Schedule = "0 * * * *"
	}
	if c.Sweeper.ApprovalTTL == 0 {
		c.Sweeper.ApprovalTTL = 72 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if len(c.Defaults.Platforms) == 0 {
		c.Defaults.Platforms = []string{"LinkedIn", "X"}
	}
	if c.Defaults.Mode == "" {
		c.Defaults.Mode = "deep"
	}
}

// validate checks that all fields hold supported values.
func (c *Config) validate() error {
	var errs []string
	switch c.LLM.Provider {
	case "gemini", "mock":
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not supported (gemini, mock)", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Sources.EnrichLimit < 0 {
		errs = append(errs, "sources.enrich_limit must not be negative")
	}
	if c.Sources.ReportLimit < 0 {
		errs = append(errs, "sources.report_limit must not be negative")
	}
	if c.Sweeper.ApprovalTTL < 0 {
		errs = append(errs, "sweeper.approval_ttl must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not supported (json, console)", c.Logging.Format))
	}
	switch c.Defaults.Mode {
	case "fast", "deep":
	default:
		errs = append(errs, fmt.Sprintf("defaults.mode %q is not supported (fast, deep)", c.Defaults.Mode))
	}
	for platform, domains := range c.Sources.TrendDomains {
		if strings.TrimSpace(platform) == "" {
			errs = append(errs, "sources.trend_domains has an empty platform name")
		}
		if len(domains) == 0 {
			errs = append(errs, fmt.Sprintf("sources.trend_domains.%s needs at least one domain", platform))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
