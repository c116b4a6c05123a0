// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob the pipeline reads, loaded via Viper.
type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Document DocumentConfig `mapstructure:"document"`
	DB       DBConfig       `mapstructure:"db"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Bluesky  BlueskyConfig  `mapstructure:"bluesky"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScraperConfig governs the listing scrape.
type ScraperConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	ListingPath      string   `mapstructure:"listing_path"`
	RateLimitSeconds float64  `mapstructure:"rate_limit_seconds"`
	MaxPages         int      `mapstructure:"max_pages"`
	DaysBack         int      `mapstructure:"days_back"`
	UserAgents       []string `mapstructure:"user_agents"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	ThrottleWaitSecs int `mapstructure:"throttle_wait_seconds"`
}

// DocumentConfig bounds PDF download and text extraction.
type DocumentConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
	MaxPages      int `mapstructure:"max_pages"`
	MaxChars      int `mapstructure:"max_chars"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LLMConfig defines how to contact an OpenAI-compatible chat API.
type LLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// BlueskyConfig wires the posting client. Posting is disabled when Handle
// or AppPassword is empty.
type BlueskyConfig struct {
	Host        string `mapstructure:"host"`
	Handle      string `mapstructure:"handle"`
	AppPassword string `mapstructure:"app_password"`
}

// PipelineConfig sets per-phase batch limits.
type PipelineConfig struct {
	FilterLimit  int `mapstructure:"filter_limit"`
	SummaryLimit int `mapstructure:"summary_limit"`
	PostLimit    int `mapstructure:"post_limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// IGBOT_ prefix with dots replaced by underscores (e.g. IGBOT_DB_DSN).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.base_url", "https://www.oversight.gov")
	v.SetDefault("scraper.listing_path", "/reports/federal")
	v.SetDefault("scraper.rate_limit_seconds", 2.0)
	v.SetDefault("scraper.max_pages", 10)
	v.SetDefault("scraper.days_back", 1)
	v.SetDefault("scraper.user_agents", []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.throttle_wait_seconds", 5)
	v.SetDefault("document.max_file_size_mb", 10)
	v.SetDefault("document.max_pages", 20)
	v.SetDefault("document.max_chars", 50000)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("llm.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("bluesky.host", "https://bsky.social")
	v.SetDefault("pipeline.filter_limit", 100)
	v.SetDefault("pipeline.summary_limit", 20)
	v.SetDefault("pipeline.post_limit", 5)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if c.Scraper.RateLimitSeconds < 0 {
		return fmt.Errorf("scraper.rate_limit_seconds must be >= 0")
	}
	if c.Scraper.MaxPages <= 0 {
		return fmt.Errorf("scraper.max_pages must be > 0")
	}
	if len(c.Scraper.UserAgents) == 0 {
		return fmt.Errorf("scraper.user_agents must not be empty")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Document.MaxPages <= 0 || c.Document.MaxChars <= 0 {
		return fmt.Errorf("document limits must be > 0")
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay; it doubles per attempt.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// ThrottleWait is the base pause after a rate-limit response.
func (c HTTPConfig) ThrottleWait() time.Duration {
	return time.Duration(c.ThrottleWaitSecs) * time.Second
}

// RateInterval is the minimum spacing between listing fetches.
func (c ScraperConfig) RateInterval() time.Duration {
	return time.Duration(c.RateLimitSeconds * float64(time.Second))
}

// Timeout converts the LLM request timeout into a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
