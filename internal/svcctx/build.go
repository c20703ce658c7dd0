package svcctx

import (
	"context"
	"fmt"
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
	"github.com/jackzampolin/paperpulse/version"
)

// BuildConfig holds the inputs for Build.
type BuildConfig struct {
	Config *config.Config
	Home   *home.Dir
	Logger *slog.Logger
	// Registry is reused when set, so callers can hot-reload it.
	Registry *providers.Registry
	// AllowLocalFiles lets the extractor open file:// URIs and paths.
	// Leave unset for services that take sources from remote clients.
	AllowLocalFiles bool
}

// Build wires every service from configuration. Missing credentials or an
// unreachable database disable only the affected collaborator.
func Build(ctx context.Context, bc BuildConfig) (*Services, error) {
	if bc.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if bc.Home == nil {
		return nil, fmt.Errorf("home directory is required")
	}
	if bc.Logger == nil {
		bc.Logger = slog.Default()
	}
	cfg, logger := bc.Config, bc.Logger

	if err := bc.Home.EnsureExists(); err != nil {
		return nil, err
	}

	registry := bc.Registry
	if registry == nil {
		registry = providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig())
		registry.SetLogger(logger)
	}

	searcher := arxiv.NewClient(arxiv.Config{
		BaseURL:    cfg.Arxiv.BaseURL,
		MaxResults: cfg.Arxiv.MaxPapersPerKeyword,
		Overrides:  arxiv.Overrides(cfg.Arxiv.QueryOverrides),
		Logger:     logger.With("component", "arxiv"),
	})
	aggregator := aggregate.New(aggregate.Config{
		Searcher: searcher,
		Delay:    cfg.SearchDelay(),
		Logger:   logger.With("component", "aggregate"),
	})

	extractor := structure.NewExtractor(structure.Config{
		Decoders: structure.DefaultDecoders(),
		Fetcher:  structure.NewHTTPFetcher(structure.HTTPFetcherConfig{
			UserAgent:  version.UserAgent(),
			AllowLocal: bc.AllowLocalFiles,
		}),
		TempRoot: bc.Home.TmpDir(),
		Logger:   logger.With("component", "structure"),
	})

	analyzer := summarize.NewAnalyzer(summarize.AnalyzerConfig{
		Model:     cfg.Analysis.Model,
		Registry:  registry,
		MaxTokens: cfg.Analysis.MaxTokens,
		Logger:    logger.With("component", "analyzer"),
	})

	s := &Services{
		Config:     cfg,
		Home:       bc.Home,
		Logger:     logger,
		Registry:   registry,
		Searcher:   searcher,
		Aggregator: aggregator,
		Extractor:  extractor,
		Analyzer:   analyzer,
	}

	s.Store = openStore(ctx, cfg, bc.Home, logger)
	if s.Store != nil {
		s.Subscribers = s.Store
	} else {
		path := cfg.Store.SubscribersFile
		if path == "" {
			path = bc.Home.SubscribersPath()
		}
		logger.Info("reading subscribers from file", "path", path)
		s.Subscribers = store.FileSubscribers{Path: path, Logger: logger.With("component", "store")}
	}

	var sender mail.Sender
	if key := cfg.ResendAPIKey(); key != "" {
		sender = mail.NewResendSender(mail.ResendConfig{APIKey: key, Logger: logger.With("component", "mail")})
	} else {
		logger.Warn("no mail API key configured, digests will not be sent")
	}
	s.Mailer = mail.NewMailer(mail.MailerConfig{
		Sender:    sender,
		FromEmail: cfg.Mail.FromEmail,
		FromName:  cfg.Mail.FromName,
		BaseURL:   cfg.Mail.BaseURL,
		Logger:    logger.With("component", "mail"),
	})

	summarizerLogger := logger.With("component", "summarize")
	s.Runner = digest.NewRunner(digest.Config{
		Subscribers: s.Subscribers,
		Store:       s.Store,
		Aggregator:  aggregator,
		Summarizers: func(model string) summarize.Func {
			return summarize.New(model, registry, summarizerLogger)
		},
		Mailer:          s.Mailer,
		DigestsDir:      bc.Home.DigestsDir(),
		LockPath:        bc.Home.LockPath(),
		DaysBack:        cfg.Arxiv.DaysBack,
		PerKeywordLimit: cfg.Arxiv.MaxPapersPerKeyword,
		DailyLimit:      cfg.Digest.DailyLimit,
		Logger:          logger.With("component", "digest"),
	})

	return s, nil
}

// openStore returns nil when the store is disabled or unreachable.
func openStore(ctx context.Context, cfg *config.Config, h *home.Dir, logger *slog.Logger) store.Store {
	driver := cfg.Store.Driver
	if driver == "" {
		return nil
	}
	dsn := cfg.StoreDSN()
	if dsn == "" && driver == store.DriverSQLite {
		dsn = h.DatabasePath()
	}
	if dsn == "" {
		logger.Warn("store DSN not configured, falling back to subscriber file", "driver", driver)
		return nil
	}

	st, err := store.Open(ctx, store.Config{
		Driver: driver,
		DSN:    dsn,
		Logger: logger.With("component", "store"),
	})
	if err != nil {
		logger.Error("store unavailable, falling back to subscriber file", "driver", driver, "error", err)
		return nil
	}
	logger.Info("store connected", "driver", driver)
	return st
}
