// Package aggregate merges per-keyword search results into one
// deduplicated paper list.
package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/paperpulse/internal/types"
)

// DefaultDelay is the pause between consecutive searches. arXiv asks
// clients to stay under one request every few seconds per IP.
const DefaultDelay = time.Second

// Searcher finds papers for a single keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string, daysBack, maxResults int) ([]types.Paper, error)
}

// Config configures an Aggregator.
type Config struct {
	Searcher Searcher
	// Delay is waited between searches, not before the first. Zero uses
	// DefaultDelay; a negative value disables the wait.
	Delay  time.Duration
	Logger *slog.Logger
}

// Aggregator runs keyword searches sequentially and merges the results.
type Aggregator struct {
	searcher Searcher
	delay    time.Duration
	logger   *slog.Logger
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		searcher: cfg.Searcher,
		delay:    cfg.Delay,
		logger:   cfg.Logger,
	}
}

// Stats summarizes one Aggregate call.
type Stats struct {
	Keywords int `json:"keywords"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
	Unique   int `json:"unique"`
}

// Aggregate searches each keyword in order and returns the papers
// deduplicated by ID. A failed keyword contributes no papers. The only
// error returned is ctx's.
func (a *Aggregator) Aggregate(ctx context.Context, keywords []string, daysBack, perKeywordLimit int) ([]types.Paper, error) {
	papers, _, err := a.AggregateWithStats(ctx, keywords, daysBack, perKeywordLimit)
	return papers, err
}

// AggregateWithStats is Aggregate plus per-run counters.
func (a *Aggregator) AggregateWithStats(ctx context.Context, keywords []string, daysBack, perKeywordLimit int) ([]types.Paper, Stats, error) {
	stats := Stats{Keywords: len(keywords)}
	results := make([][]types.Paper, len(keywords))

	for i, kw := range keywords {
		if i > 0 && a.delay > 0 {
			if err := sleep(ctx, a.delay); err != nil {
				return nil, stats, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		papers, err := a.searcher.Search(ctx, kw, daysBack, perKeywordLimit)
		if err != nil {
			stats.Failed++
			a.logger.Warn("keyword search failed", "keyword", kw, "error", err)
			continue
		}
		papers = append([]types.Paper(nil), papers...)
		for j := range papers {
			papers[j].KeywordsMatched = []string{kw}
		}
		results[i] = papers
		stats.Total += len(papers)
		a.logger.Info("keyword search returned papers", "keyword", kw, "count", len(papers))
	}

	merged := Dedupe(results...)
	stats.Unique = len(merged)
	return merged, stats, nil
}

// Dedupe concatenates lists in order and keeps the first paper for each
// ID. Keywords from later duplicates are appended to the kept paper's
// KeywordsMatched. Inputs are not modified.
func Dedupe(lists ...[]types.Paper) []types.Paper {
	index := make(map[string]int)
	var out []types.Paper
	for _, list := range lists {
		for _, p := range list {
			if i, ok := index[p.ID]; ok {
				out[i].KeywordsMatched = mergeKeywords(out[i].KeywordsMatched, p.KeywordsMatched)
				continue
			}
			index[p.ID] = len(out)
			p.KeywordsMatched = append([]string(nil), p.KeywordsMatched...)
			out = append(out, p)
		}
	}
	if out == nil {
		out = []types.Paper{}
	}
	return out
}

func mergeKeywords(into, from []string) []string {
	for _, k := range from {
		found := false
		for _, existing := range into {
			if existing == k {
				found = true
				break
			}
		}
		if !found {
			into = append(into, k)
		}
	}
	return into
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
