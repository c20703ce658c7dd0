// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/paperpulse/internal/aggregate"
	"github.com/jackzampolin/paperpulse/internal/arxiv"
	"github.com/jackzampolin/paperpulse/internal/config"
	"github.com/jackzampolin/paperpulse/internal/digest"
	"github.com/jackzampolin/paperpulse/internal/home"
	"github.com/jackzampolin/paperpulse/internal/mail"
	"github.com/jackzampolin/paperpulse/internal/providers"
	"github.com/jackzampolin/paperpulse/internal/store"
	"github.com/jackzampolin/paperpulse/internal/structure"
	"github.com/jackzampolin/paperpulse/internal/summarize"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config     *config.Config
	Home       *home.Dir
	Logger     *slog.Logger
	Registry   *providers.Registry
	Searcher   *arxiv.Client
	Aggregator *aggregate.Aggregator
	Extractor  *structure.Extractor
	Analyzer   *summarize.Analyzer
	// Store is nil when no database is configured or reachable.
	Store       store.Store
	Subscribers store.SubscriptionSource
	Mailer      *mail.Mailer
	Runner      *digest.Runner
}

// Close releases the store connection.
func (s *Services) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to the
// default logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// SearcherFrom extracts the arXiv client from context.
func SearcherFrom(ctx context.Context) *arxiv.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Searcher
	}
	return nil
}

// ExtractorFrom extracts the document structure extractor from context.
func ExtractorFrom(ctx context.Context) *structure.Extractor {
	if s := ServicesFrom(ctx); s != nil {
		return s.Extractor
	}
	return nil
}

// AnalyzerFrom extracts the paper analyzer from context.
func AnalyzerFrom(ctx context.Context) *summarize.Analyzer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Analyzer
	}
	return nil
}

// StoreFrom extracts the store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// RunnerFrom extracts the digest runner from context.
func RunnerFrom(ctx context.Context) *digest.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}
