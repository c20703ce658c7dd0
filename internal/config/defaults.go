package config

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/spf13/viper"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is one documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the scalar configuration keys with their
// defaults. LLM providers are a map and are seeded separately.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// Search
		{Key: "arxiv.base_url", Value: d.Arxiv.BaseURL, Description: "arXiv Atom API endpoint"},
		{Key: "arxiv.days_back", Value: d.Arxiv.DaysBack, Description: "Only papers published within this many days are kept"},
		{Key: "arxiv.max_papers_per_keyword", Value: d.Arxiv.MaxPapersPerKeyword, Description: "Search result limit per keyword"},
		{Key: "arxiv.delay_seconds", Value: d.Arxiv.DelaySeconds, Description: "Pause between keyword searches (0 disables)"},
		{Key: "arxiv.query_overrides", Value: d.Arxiv.QueryOverrides, Description: "Keywords expanded to fixed phrase lists"},

		// Store
		{Key: "store.driver", Value: d.Store.Driver, Description: "postgres, sqlite, or empty to read subscribers from a file"},
		{Key: "store.dsn", Value: d.Store.DSN, Description: "Database DSN (supports ${ENV_VAR}); empty sqlite DSN uses the home data dir"},
		{Key: "store.subscribers_file", Value: d.Store.SubscribersFile, Description: "JSON subscriber list used when no database is available"},

		// Mail
		{Key: "mail.resend_api_key", Value: d.Mail.ResendAPIKey, Description: "Resend API key (uses environment variable)"},
		{Key: "mail.from_email", Value: d.Mail.FromEmail, Description: "Digest sender address"},
		{Key: "mail.from_name", Value: d.Mail.FromName, Description: "Digest sender name"},
		{Key: "mail.base_url", Value: d.Mail.BaseURL, Description: "Site used for unsubscribe and settings links"},

		// Digest
		{Key: "digest.daily_limit", Value: d.Digest.DailyLimit, Description: "Papers kept in the daily digest record"},

		// Analysis
		{Key: "analysis.model", Value: d.Analysis.Model, Description: "Model for detailed paper analysis"},
		{Key: "analysis.max_tokens", Value: d.Analysis.MaxTokens, Description: "Token budget for one analysis"},

		// Server
		{Key: "server.host", Value: d.Server.Host, Description: "HTTP listen host"},
		{Key: "server.port", Value: d.Server.Port, Description: "HTTP listen port"},

		{Key: "log_level", Value: d.LogLevel, Description: "debug, info, warn or error"},
	}
}

// GetDefault returns the default entry for key, or nil.
func GetDefault(key string) *Entry {
	for _, e := range DefaultEntries() {
		if e.Key == key {
			return &e
		}
	}
	return nil
}

// Lookup returns the effective value for key: config file, then
// environment, then default.
func Lookup(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if !viper.IsSet(key) {
		if GetDefault(key) == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoDefault, key)
		}
	}
	return viper.Get(key), nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
