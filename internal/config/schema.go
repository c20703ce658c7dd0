package config

import (
	"time"

	"github.com/jackzampolin/paperpulse/internal/arxiv"
)

// Config holds paperpulse configuration.
// Stored at: ~/.paperpulse/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Arxiv        ArxivCfg                  `mapstructure:"arxiv" yaml:"arxiv"`
	Store        StoreCfg                  `mapstructure:"store" yaml:"store"`
	Mail         MailCfg                   `mapstructure:"mail" yaml:"mail"`
	Digest       DigestCfg                 `mapstructure:"digest" yaml:"digest"`
	Analysis     AnalysisCfg               `mapstructure:"analysis" yaml:"analysis"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	LogLevel     string                    `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // openrouter, openai, groq, together, ollama, mock
	Model     string `mapstructure:"model" yaml:"model"`           // Default model
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`     // Optional endpoint override
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ArxivCfg configures paper search.
type ArxivCfg struct {
	BaseURL             string              `mapstructure:"base_url" yaml:"base_url"`
	DaysBack            int                 `mapstructure:"days_back" yaml:"days_back"`
	MaxPapersPerKeyword int                 `mapstructure:"max_papers_per_keyword" yaml:"max_papers_per_keyword"`
	DelaySeconds        float64             `mapstructure:"delay_seconds" yaml:"delay_seconds"` // Pause between keyword searches
	QueryOverrides      map[string][]string `mapstructure:"query_overrides" yaml:"query_overrides"`
}

// StoreCfg selects the persistent store.
type StoreCfg struct {
	Driver          string `mapstructure:"driver" yaml:"driver"` // postgres, sqlite, or empty for none
	DSN             string `mapstructure:"dsn" yaml:"dsn"`       // supports ${ENV_VAR}; empty sqlite DSN uses the home data dir
	SubscribersFile string `mapstructure:"subscribers_file" yaml:"subscribers_file"`
}

// MailCfg configures digest delivery.
type MailCfg struct {
	ResendAPIKey string `mapstructure:"resend_api_key" yaml:"resend_api_key"` // supports ${ENV_VAR}
	FromEmail    string `mapstructure:"from_email" yaml:"from_email"`
	FromName     string `mapstructure:"from_name" yaml:"from_name"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"` // unsubscribe/settings links
}

// DigestCfg tunes the daily run.
type DigestCfg struct {
	DailyLimit int `mapstructure:"daily_limit" yaml:"daily_limit"` // papers kept in the daily record
}

// AnalysisCfg configures the detailed paper analyzer.
type AnalysisCfg struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"groq": {
				Type:      "groq",
				Model:     "llama-3.1-8b-instant",
				APIKey:    "${GROQ_API_KEY}",
				RateLimit: 30,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"openrouter": {
				Type:      "openrouter",
				Model:     "anthropic/claude-3-haiku",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 150,
				Enabled:   true,
			},
			"together": {
				Type:      "together",
				APIKey:    "${TOGETHER_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"ollama": {
				Type:    "ollama",
				BaseURL: "http://localhost:11434/v1",
				Enabled: false,
			},
		},
		Arxiv: ArxivCfg{
			BaseURL:             arxiv.DefaultBaseURL,
			DaysBack:            7,
			MaxPapersPerKeyword: arxiv.DefaultMaxResults,
			DelaySeconds:        1,
			QueryOverrides:      arxiv.DefaultOverrides(),
		},
		Store: StoreCfg{
			Driver: "sqlite",
		},
		Mail: MailCfg{
			ResendAPIKey: "${RESEND_API_KEY}",
			FromEmail:    "digest@paperpulse.ai",
			FromName:     "PaperPulse",
			BaseURL:      "https://paperpulse.ai",
		},
		Digest: DigestCfg{
			DailyLimit: 50,
		},
		Analysis: AnalysisCfg{
			Model:     "gpt-4o-mini",
			MaxTokens: 2000,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		LogLevel: "info",
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// SearchDelay returns the pause between keyword searches. Zero or
// negative seconds disable it.
func (c *Config) SearchDelay() time.Duration {
	if c.Arxiv.DelaySeconds <= 0 {
		return -1
	}
	return time.Duration(c.Arxiv.DelaySeconds * float64(time.Second))
}
