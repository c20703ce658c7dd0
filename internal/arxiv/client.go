// Package arxiv searches the arXiv Atom API.
package arxiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jackzampolin/paperpulse/internal/types"
)

const (
	DefaultBaseURL    = "https://export.arxiv.org/api/query"
	DefaultMaxResults = 50

	// publishedLayout is the timestamp form arXiv uses for <published>.
	publishedLayout = "2006-01-02T15:04:05Z"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	MaxResults int           // default per-search limit (default: 50)
	Timeout    time.Duration // default: 30s
	Overrides  Overrides     // nil uses DefaultOverrides
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Now is the clock used for the freshness window (default: time.Now).
	Now func() time.Time
}

// Client queries arXiv for recent papers.
type Client struct {
	baseURL    string
	maxResults int
	overrides  Overrides
	http       *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new arXiv client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Overrides == nil {
		cfg.Overrides = DefaultOverrides()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		maxResults: cfg.MaxResults,
		overrides:  cfg.Overrides,
		http:       cfg.HTTPClient,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Search returns papers matching keyword published within the last
// daysBack days, newest first. maxResults <= 0 uses the client default.
func (c *Client) Search(ctx context.Context, keyword string, daysBack, maxResults int) ([]types.Paper, error) {
	query := BuildQuery(keyword, c.overrides)
	if query == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arxiv error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	papers := make([]types.Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		if isErrorEntry(item) {
			return nil, fmt.Errorf("arxiv rejected query %q: %s", query, strings.TrimSpace(item.Description))
		}
		p, err := toPaper(item)
		if err != nil {
			c.logger.Debug("skipping arxiv entry", "id", item.GUID, "error", err)
			continue
		}
		papers = append(papers, p)
	}

	fresh := FilterFresh(papers, c.now(), daysBack)
	c.logger.Info("arxiv search complete", "keyword", keyword, "returned", len(papers), "fresh", len(fresh))
	return fresh, nil
}

// FilterFresh drops papers published before now minus daysBack days.
func FilterFresh(papers []types.Paper, now time.Time, daysBack int) []types.Paper {
	cutoff := now.Add(-time.Duration(daysBack) * 24 * time.Hour)
	out := make([]types.Paper, 0, len(papers))
	for _, p := range papers {
		if p.Published.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func toPaper(item *gofeed.Item) (types.Paper, error) {
	published, err := parsePublished(item)
	if err != nil {
		return types.Paper{}, err
	}

	entryURL := item.GUID
	if entryURL == "" {
		entryURL = item.Link
	}
	if entryURL == "" {
		return types.Paper{}, fmt.Errorf("entry has no id")
	}

	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	categories := item.Categories
	if categories == nil {
		categories = []string{}
	}

	return types.Paper{
		ID:         entryURL[strings.LastIndex(entryURL, "/")+1:],
		Title:      singleLine(item.Title),
		Abstract:   singleLine(item.Description),
		Authors:    authors,
		Published:  published,
		URL:        entryURL,
		PDFURL:     strings.Replace(entryURL, "/abs/", "/pdf/", 1) + ".pdf",
		Categories: categories,
	}, nil
}

func parsePublished(item *gofeed.Item) (time.Time, error) {
	if t, err := time.Parse(publishedLayout, strings.TrimSpace(item.Published)); err == nil {
		return t, nil
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable published date %q", item.Published)
}

func singleLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// isErrorEntry detects the single-entry feed arXiv returns for a malformed
// query.
func isErrorEntry(item *gofeed.Item) bool {
	return item.Title == "Error" && strings.Contains(item.GUID, "/api/errors")
}
