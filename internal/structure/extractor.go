package structure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures an Extractor.
type Config struct {
	// Decoders are tried in order. The first that returns at least one page
	// wins.
	Decoders []Decoder
	// Fetcher resolves URIs for ExtractURL.
	Fetcher Fetcher
	// TempRoot is the parent directory for scratch files (default: os.TempDir()).
	TempRoot string
	Logger   *slog.Logger
}

// Extractor runs fetch, decode, segment and detect for one document at a
// time. It is safe for concurrent use.
type Extractor struct {
	decoders []Decoder
	fetcher  Fetcher
	tempRoot string
	logger   *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg Config) *Extractor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{
		decoders: cfg.Decoders,
		fetcher:  cfg.Fetcher,
		tempRoot: cfg.TempRoot,
		logger:   cfg.Logger,
	}
}

// ExtractURL fetches and extracts the document at uri. Failures are
// reported in the Result, never returned.
func (e *Extractor) ExtractURL(ctx context.Context, uri string) *Result {
	start := time.Now()
	if e.fetcher == nil {
		return e.finish(failed(errors.New("no fetcher configured")), start)
	}

	rc, err := e.fetcher.Fetch(ctx, uri)
	if err != nil {
		e.logger.Warn("pdf fetch failed", "uri", uri, "error", err)
		return e.finish(failed(fmt.Errorf("failed to download PDF: %w", err)), start)
	}
	defer rc.Close()

	return e.finish(e.extract(ctx, rc), start)
}

// ExtractFile extracts a document already on disk.
func (e *Extractor) ExtractFile(ctx context.Context, path string) *Result {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return e.finish(failed(fmt.Errorf("failed to open PDF: %w", err)), start)
	}
	defer f.Close()

	return e.finish(e.extract(ctx, f), start)
}

// ExtractReader extracts a document from a byte stream.
func (e *Extractor) ExtractReader(ctx context.Context, r io.Reader) *Result {
	start := time.Now()
	return e.finish(e.extract(ctx, r), start)
}

func (e *Extractor) finish(res *Result, start time.Time) *Result {
	res.ProcessingTime = time.Since(start)
	return res
}

// extract materializes r into a scratch directory that is removed on
// every return path, then decodes and analyzes it.
func (e *Extractor) extract(ctx context.Context, r io.Reader) *Result {
	dir, err := os.MkdirTemp(e.tempRoot, "paperpulse-pdf-*")
	if err != nil {
		return failed(fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, "paper.pdf")
	if err := writeFile(path, r); err != nil {
		return failed(err)
	}

	pages, method, err := e.decode(ctx, path)
	if err != nil {
		return failed(err)
	}

	return &Result{
		Success:          true,
		Sections:         Segment(pages),
		Figures:          Detect(pages),
		TotalPages:       len(pages),
		ExtractionMethod: method,
	}
}

func (e *Extractor) decode(ctx context.Context, path string) ([]Page, string, error) {
	if len(e.decoders) == 0 {
		return nil, "", errors.New("no PDF decoder available")
	}

	var errs []string
	for _, d := range e.decoders {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		pages, err := safeDecode(ctx, d, path)
		if err == nil {
			return pages, d.Name(), nil
		}
		e.logger.Warn("pdf decoder failed, trying next", "decoder", d.Name(), "error", err)
		errs = append(errs, fmt.Sprintf("%s: %v", d.Name(), err))
	}
	return nil, "", fmt.Errorf("failed to extract text from PDF: %s", strings.Join(errs, "; "))
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return nil
}
