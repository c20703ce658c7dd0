package structure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
)

// DefaultMaxPDFBytes caps downloads at 50 MiB.
const DefaultMaxPDFBytes = 50 << 20

// ErrLocalSource is returned for file:// URIs and bare paths when the
// fetcher does not allow local reads.
var ErrLocalSource = errors.New("local files are not allowed")

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	Timeout    time.Duration // per attempt (default: 30s)
	MaxBytes   int64         // default: DefaultMaxPDFBytes
	Attempts   uint          // default: 3
	RetryDelay time.Duration // default: 1s
	UserAgent  string
	HTTPClient *http.Client
	// AllowLocal permits file:// URIs and bare paths.
	AllowLocal bool
}

// HTTPFetcher fetches http(s) URLs with retries. When AllowLocal is set,
// file:// URIs and bare paths are opened from the local filesystem.
type HTTPFetcher struct {
	client     *http.Client
	allowLocal bool
	maxBytes   int64
	attempts   uint
	retryDelay time.Duration
	userAgent  string
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxPDFBytes
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "paperpulse/1.0"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{
		client:     client,
		allowLocal: cfg.AllowLocal,
		maxBytes:   cfg.MaxBytes,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		userAgent:  cfg.UserAgent,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return f.openLocal(uri)
	}

	switch u.Scheme {
	case "file":
		return f.openLocal(u.Path)
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) { return f.get(ctx, uri) },
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *HTTPFetcher) openLocal(path string) (io.ReadCloser, error) {
	if !f.allowLocal {
		return nil, ErrLocalSource
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}
	return os.Open(path)
}

func (f *HTTPFetcher) get(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, retry.Unrecoverable(fmt.Errorf("document exceeds %d bytes", f.maxBytes))
	}
	return data, nil
}
