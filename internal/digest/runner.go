// Package digest runs the daily digest: aggregate papers for every
// subscriber keyword, then summarize, mail and record each subscriber's
// share.
package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/jackzampolin/paperpulse/internal/aggregate"
	"github.com/jackzampolin/paperpulse/internal/store"
	"github.com/jackzampolin/paperpulse/internal/summarize"
	"github.com/jackzampolin/paperpulse/internal/types"
)

// Run defaults.
const (
	DefaultDaysBack        = 7
	DefaultPerKeywordLimit = 50
	DefaultDailyLimit      = 50
)

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = errors.New("digest run already in progress")

// Aggregator searches and deduplicates papers for a keyword set.
type Aggregator interface {
	AggregateWithStats(ctx context.Context, keywords []string, daysBack, perKeywordLimit int) ([]types.Paper, aggregate.Stats, error)
}

// Mailer delivers one subscriber's digest and reports success.
type Mailer interface {
	SendDigest(ctx context.Context, to string, papers []types.Paper, keywords []string, includePDFLink bool) bool
}

// SummarizerFactory returns the summarizer for a subscription's model.
type SummarizerFactory func(model string) summarize.Func

// Config configures a Runner.
type Config struct {
	Subscribers store.SubscriptionSource
	// Store records papers and digests. Nil skips persistence.
	Store       store.Store
	Aggregator  Aggregator
	Summarizers SummarizerFactory
	Mailer      Mailer

	// DigestsDir receives YYYY-MM-DD.json daily files. Empty skips them.
	DigestsDir string
	// LockPath is the run lock file. Empty disables locking.
	LockPath string

	DaysBack        int // default: DefaultDaysBack
	PerKeywordLimit int // default: DefaultPerKeywordLimit
	DailyLimit      int // default: DefaultDailyLimit

	Logger *slog.Logger
	Now    func() time.Time
}

// Runner executes digest runs.
type Runner struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(cfg Config) *Runner {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = DefaultDaysBack
	}
	if cfg.PerKeywordLimit <= 0 {
		cfg.PerKeywordLimit = DefaultPerKeywordLimit
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if cfg.Summarizers == nil {
		cfg.Summarizers = func(string) summarize.Func { return summarize.Mock }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg, logger: cfg.Logger, now: cfg.Now}
}

// SubscriberResult is the outcome for one subscriber.
type SubscriberResult struct {
	Email       string `json:"email"`
	PapersCount int    `json:"papers_count"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID       string             `json:"run_id"`
	Date        string             `json:"date"`
	DryRun      bool               `json:"dry_run"`
	Subscribers int                `json:"subscribers"`
	Keywords    []string           `json:"keywords"`
	Search      aggregate.Stats    `json:"search"`
	Papers      int                `json:"papers"`
	Results     []SubscriberResult `json:"results"`
	Succeeded   int                `json:"succeeded"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// Run executes one digest run. Per-subscriber failures are reported in
// the result, not returned.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	if r.cfg.LockPath != "" {
		lock := flock.New(r.cfg.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				r.logger.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	start := r.now()
	report := &Report{
		RunID:     uuid.New().String(),
		Date:      start.Format("2006-01-02"),
		DryRun:    dryRun,
		StartedAt: start,
		Results:   []SubscriberResult{},
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("starting digest run", "dry_run", dryRun)

	if r.cfg.Subscribers == nil {
		return nil, fmt.Errorf("no subscriber source configured")
	}
	subs, err := r.cfg.Subscribers.ActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}
	report.Subscribers = len(subs)
	if len(subs) == 0 {
		logger.Warn("no active subscribers found")
		report.FinishedAt = r.now()
		return report, nil
	}

	report.Keywords = Keywords(subs)
	logger.Info("fetching papers", "subscribers", len(subs), "keywords", len(report.Keywords))

	papers, stats, err := r.cfg.Aggregator.AggregateWithStats(ctx, report.Keywords, r.cfg.DaysBack, r.cfg.PerKeywordLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate papers: %w", err)
	}
	report.Search = stats
	report.Papers = len(papers)
	logger.Info("found unique papers", "count", len(papers), "failed_keywords", stats.Failed)

	if dryRun {
		for _, sub := range subs {
			logger.Info("dry run: would process subscriber", "email", sub.Email,
				"papers", len(Select(papers, sub)))
		}
		report.FinishedAt = r.now()
		return report, nil
	}

	daily := papers
	if len(daily) > r.cfg.DailyLimit {
		daily = daily[:r.cfg.DailyLimit]
	}
	if err := r.saveDaily(ctx, report.Date, daily); err != nil {
		logger.Error("failed to save daily digest", "error", err)
	}

	summarizers := map[string]summarize.Func{}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := r.processSubscriber(ctx, logger, report.Date, sub, papers, summarizers)
		if res.Success {
			report.Succeeded++
		}
		report.Results = append(report.Results, res)
		logger.Info("processed subscriber", "email", res.Email, "papers", res.PapersCount, "success", res.Success)
	}

	report.FinishedAt = r.now()
	logger.Info("completed digest run", "succeeded", report.Succeeded, "subscribers", len(report.Results),
		"duration", report.FinishedAt.Sub(start))
	return report, nil
}

// processSubscriber never panics; any failure becomes a failed result
// and a failed user digest record.
func (r *Runner) processSubscriber(ctx context.Context, logger *slog.Logger, date string, sub types.Subscription,
	papers []types.Paper, summarizers map[string]summarize.Func) (res SubscriberResult) {
	res.Email = sub.Email
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			logger.Error("subscriber processing panicked", "email", sub.Email, "error", err)
			res = SubscriberResult{Email: sub.Email, Error: err.Error()}
			r.recordFailure(ctx, logger, date, sub, err)
		}
	}()

	selected := Select(papers, sub)
	if len(selected) == 0 {
		logger.Info("no papers for subscriber", "email", sub.Email)
		res.Success = true
		return res
	}

	fn, ok := summarizers[sub.SummaryModel]
	if !ok {
		fn = r.cfg.Summarizers(sub.SummaryModel)
		summarizers[sub.SummaryModel] = fn
	}
	selected = r.summarizeAll(ctx, logger, fn, selected, sub.Tone)

	sent, failure := false, "mail not configured"
	if r.cfg.Mailer != nil {
		sent = r.cfg.Mailer.SendDigest(ctx, sub.Email, selected, sub.Keywords, sub.IncludePDFLink)
		failure = "email delivery failed"
	}

	record := types.UserDigest{
		UserID:      sub.UserID,
		Email:       sub.Email,
		Date:        date,
		Keywords:    sub.Keywords,
		PaperIDs:    paperIDs(selected),
		PapersCount: len(selected),
		SentAt:      r.now(),
		Success:     sent,
	}
	if !sent {
		record.ErrorMessage = failure
	}
	if r.cfg.Store != nil {
		if err := r.cfg.Store.SaveUserDigest(ctx, record); err != nil {
			logger.Error("failed to save user digest", "email", sub.Email, "error", err)
		}
	}

	res.PapersCount = len(selected)
	res.Success = sent
	res.Error = record.ErrorMessage
	return res
}

func (r *Runner) recordFailure(ctx context.Context, logger *slog.Logger, date string, sub types.Subscription, cause error) {
	if r.cfg.Store == nil {
		return
	}
	err := r.cfg.Store.SaveUserDigest(ctx, types.UserDigest{
		UserID:       sub.UserID,
		Email:        sub.Email,
		Date:         date,
		Keywords:     sub.Keywords,
		PaperIDs:     []string{},
		SentAt:       r.now(),
		Success:      false,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		logger.Error("failed to save failed user digest", "email", sub.Email, "error", err)
	}
}

// summarizeAll returns copies of papers with Summary set. A failed
// summary falls back to the start of the abstract.
func (r *Runner) summarizeAll(ctx context.Context, logger *slog.Logger, fn summarize.Func, papers []types.Paper, tone string) []types.Paper {
	out := make([]types.Paper, len(papers))
	for i, p := range papers {
		summary, err := fn(ctx, p.Title, p.Abstract, tone)
		if err != nil {
			logger.Warn("failed to summarize paper", "paper_id", p.ID, "error", err)
			summary = summarize.AbstractFallback(p.Abstract)
		}
		p.Summary = summary
		out[i] = p
	}
	return out
}

// saveDaily writes the day's papers to the store and the digests dir.
// Both are attempted and their errors joined.
func (r *Runner) saveDaily(ctx context.Context, date string, papers []types.Paper) error {
	var errs []error
	if r.cfg.Store != nil {
		if err := r.cfg.Store.SaveDigestHistory(ctx, date, paperIDs(papers)); err != nil {
			errs = append(errs, err)
		}
		if err := r.cfg.Store.SavePapers(ctx, papers); err != nil {
			errs = append(errs, err)
		}
	}
	if r.cfg.DigestsDir != "" {
		if err := r.writeDailyFile(date, papers); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DailyFile is the on-disk daily digest.
type DailyFile struct {
	Date        string        `json:"date"`
	Papers      []types.Paper `json:"papers"`
	GeneratedAt time.Time     `json:"generated_at"`
}

func (r *Runner) writeDailyFile(date string, papers []types.Paper) error {
	if err := os.MkdirAll(r.cfg.DigestsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create digests dir: %w", err)
	}
	if papers == nil {
		papers = []types.Paper{}
	}
	data, err := json.MarshalIndent(DailyFile{Date: date, Papers: papers, GeneratedAt: r.now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal daily digest: %w", err)
	}
	path := filepath.Join(r.cfg.DigestsDir, date+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write daily digest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write daily digest: %w", err)
	}
	r.logger.Info("saved daily digest", "path", path, "papers", len(papers))
	return nil
}

// Keywords returns the subscribers' keywords in first-seen order,
// trimmed and without duplicates.
func Keywords(subs []types.Subscription) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, sub := range subs {
		for _, kw := range sub.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}

// Select returns the papers matching any of sub's keywords, truncated to
// sub.MaxPapers.
func Select(papers []types.Paper, sub types.Subscription) []types.Paper {
	keywords := make([]string, len(sub.Keywords))
	for i, kw := range sub.Keywords {
		keywords[i] = strings.TrimSpace(kw)
	}
	var out []types.Paper
	for _, p := range papers {
		if p.MatchesAny(keywords) {
			out = append(out, p)
		}
	}
	if sub.MaxPapers > 0 && len(out) > sub.MaxPapers {
		out = out[:sub.MaxPapers]
	}
	return out
}

func paperIDs(papers []types.Paper) []string {
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}
	return ids
}
