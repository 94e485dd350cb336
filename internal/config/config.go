package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type MarketplaceConfig struct {
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	PageSize int    `yaml:"page_size"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "claude" or "openai"
	Model    string `yaml:"model"`
}

type PoolConfig struct {
	MinPoolSize     int     `yaml:"min_pool_size"`
	MinQualified    int     `yaml:"min_qualified"`
	DesiredSize     int     `yaml:"desired_size"`
	BatchSize       int     `yaml:"batch_size"`
	MaxKeywords     int     `yaml:"max_keywords"`
	OverfetchFactor float64 `yaml:"overfetch_factor"`
	RawOnEmptyAI    bool    `yaml:"raw_on_empty_ai"`
}

type CacheConfig struct {
	CuratedTTL       string `yaml:"curated_ttl"`
	SearchedTTL      string `yaml:"searched_ttl"`
	SoftRefreshAfter string `yaml:"soft_refresh_after"`
	Retention        string `yaml:"retention"`
}

type Config struct {
	Marketplace  MarketplaceConfig `yaml:"marketplace"`
	AI           *AIConfig         `yaml:"ai,omitempty"`
	Pool         PoolConfig        `yaml:"pool"`
	Cache        CacheConfig       `yaml:"cache"`
	TrendingFeed string            `yaml:"trending_feed,omitempty"`
	LogLevel     string            `yaml:"log_level,omitempty"`
}

// MarketClientID returns the marketplace credential from the environment.
func (c *Config) MarketClientID() string {
	return os.Getenv("DEALRADAR_MARKET_CLIENT_ID")
}

// MarketClientSecret returns the marketplace secret from the environment.
func (c *Config) MarketClientSecret() string {
	return os.Getenv("DEALRADAR_MARKET_CLIENT_SECRET")
}

// AIEnabled returns true if AI is configured with an API key.
func (c *Config) AIEnabled() bool {
	return c.AI != nil && os.Getenv("DEALRADAR_AI_KEY") != ""
}

// AIKey returns the AI API key from the environment.
func (c *Config) AIKey() string {
	return os.Getenv("DEALRADAR_AI_KEY")
}

// parseDuration handles Go duration syntax plus a "Nd" day shorthand,
// falling back when the value is empty or malformed.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// TimeoutDuration is the per-request marketplace timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return parseDuration(c.Marketplace.Timeout, 15*time.Second)
}

// CuratedTTLDuration is how long a curated pool stays servable.
func (c *Config) CuratedTTLDuration() time.Duration {
	return parseDuration(c.Cache.CuratedTTL, time.Hour)
}

// SearchedTTLDuration is how long a searched pool stays servable.
func (c *Config) SearchedTTLDuration() time.Duration {
	return parseDuration(c.Cache.SearchedTTL, 5*time.Minute)
}

// SoftRefreshDuration is the deal-cache age that triggers a quiet top-up.
func (c *Config) SoftRefreshDuration() time.Duration {
	return parseDuration(c.Cache.SoftRefreshAfter, 30*time.Minute)
}

// RetentionDuration is how long pruning keeps cache entries around.
func (c *Config) RetentionDuration() time.Duration {
	return parseDuration(c.Cache.Retention, 7*24*time.Hour)
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "dealradar", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "dealradar", "dealradar.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the default XDG location), writing
// the embedded defaults there on first run. A .env file in the working
// directory is picked up for credentials; absence is fine.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.Marketplace.BaseURL == "" {
		return fmt.Errorf("marketplace: base_url is required")
	}
	u, err := url.Parse(cfg.Marketplace.BaseURL)
	if err != nil {
		return fmt.Errorf("marketplace: invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("marketplace: base_url scheme must be http or https, got %q", u.Scheme)
	}

	if cfg.AI != nil && cfg.AI.Provider != "" {
		if cfg.AI.Provider != "claude" && cfg.AI.Provider != "openai" {
			return fmt.Errorf("ai: unknown provider %q (valid: claude, openai)", cfg.AI.Provider)
		}
	}

	if cfg.Pool.OverfetchFactor != 0 && cfg.Pool.OverfetchFactor < 1 {
		return fmt.Errorf("pool: overfetch_factor must be >= 1, got %v", cfg.Pool.OverfetchFactor)
	}

	if cfg.TrendingFeed != "" {
		u, err := url.Parse(cfg.TrendingFeed)
		if err != nil {
			return fmt.Errorf("trending_feed: invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("trending_feed: url scheme must be http or https, got %q", u.Scheme)
		}
	}
	return nil
}
