package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/paperpulse/internal/arxiv"
	"github.com/jackzampolin/paperpulse/internal/config"
	"github.com/jackzampolin/paperpulse/internal/providers"
	"github.com/jackzampolin/paperpulse/internal/server/endpoints"
	"github.com/jackzampolin/paperpulse/internal/store"
	"github.com/jackzampolin/paperpulse/internal/structure"
	"github.com/jackzampolin/paperpulse/internal/summarize"
	"github.com/jackzampolin/paperpulse/internal/svcctx"
	"github.com/jackzampolin/paperpulse/internal/types"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2403.09999v1</id>
    <updated>2024-03-14T10:00:00Z</updated>
    <published>2024-03-14T10:00:00Z</published>
    <title>Sparse Attention at Scale</title>
    <summary>We study sparse attention.</summary>
    <author><name>Grace Hopper</name></author>
    <link href="http://arxiv.org/abs/2403.09999v1" rel="alternate" type="text/html"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

type testEnv struct {
	api      string
	upstream string
	store    *store.SQLStore
}

// newTestEnv serves the API over prebuilt services backed by a fake host
// for both arXiv queries and PDF downloads.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/query":
			w.Header().Set("Content-Type", "application/atom+xml")
			fmt.Fprint(w, testFeed)
		case r.URL.Path == "/pdf/2403.09999":
			w.Write([]byte("%PDF-1.4 fake"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	st, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
		Now:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pages := []structure.Page{{Number: 1, Blocks: []structure.Block{
		{Text: "1. Introduction"},
		{Text: "Sparse attention reduces the cost of long sequences considerably."},
		{Text: "Figure 1: Attention pattern overview."},
	}}}
	extractor := structure.NewExtractor(structure.Config{
		Decoders: []structure.Decoder{structure.DecoderFunc{Label: "static", Fn: func(ctx context.Context, path string) ([]structure.Page, error) {
			return pages, nil
		}}},
		Fetcher:  structure.NewHTTPFetcher(structure.HTTPFetcherConfig{Attempts: 1}),
		TempRoot: t.TempDir(),
	})

	registry := providers.NewRegistry()
	services := &svcctx.Services{
		Config:   config.DefaultConfig(),
		Registry: registry,
		Searcher: arxiv.NewClient(arxiv.Config{
			BaseURL: upstream.URL + "/api/query",
			Now:     func() time.Time { return testNow },
		}),
		Extractor:   extractor,
		Analyzer:    summarize.NewAnalyzer(summarize.AnalyzerConfig{Registry: registry}),
		Store:       st,
		Subscribers: st,
	}

	srv, err := New(Config{Services: services})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &testEnv{api: api.URL, upstream: upstream.URL, store: st}
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestNew_RequiresServicesOrConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without services or config manager should fail")
	}
}

func TestRequireInit(t *testing.T) {
	s := &Server{}
	called := false
	h := s.requireInit(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/papers/search", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if called {
		t.Error("handler ran before services were built")
	}

	s.services = &svcctx.Services{}
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/papers/search", nil))
	if !called {
		t.Error("handler did not run once services were built")
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("health", func(t *testing.T) {
		var resp endpoints.HealthResponse
		if code := doJSON(t, "GET", env.api+"/health", nil, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Status != "ok" {
			t.Errorf("Status = %q", resp.Status)
		}
	})

	t.Run("ready", func(t *testing.T) {
		var resp endpoints.HealthResponse
		if code := doJSON(t, "GET", env.api+"/ready", nil, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Status != "ok" || resp.Store != "ok" {
			t.Errorf("ready = %+v", resp)
		}
	})

	t.Run("status", func(t *testing.T) {
		var resp endpoints.StatusResponse
		if code := doJSON(t, "GET", env.api+"/status", nil, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Server != "running" || resp.Store.Driver != store.DriverSQLite || resp.Store.Health != "ok" {
			t.Errorf("status = %+v", resp)
		}
		if resp.Mail != "disabled" {
			t.Errorf("Mail = %q, want disabled", resp.Mail)
		}
	})

	t.Run("ready degrades when store is closed", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.Close()
		var resp endpoints.HealthResponse
		if code := doJSON(t, "GET", env.api+"/ready", nil, &resp); code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", code)
		}
		if resp.Store != "unhealthy" {
			t.Errorf("Store = %q", resp.Store)
		}
	})
}

func TestSearchPapers(t *testing.T) {
	env := newTestEnv(t)

	var resp endpoints.SearchResponse
	code := doJSON(t, "GET", env.api+"/api/papers/search?keyword=sparse+attention&days=3&limit=5", nil, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Keyword != "sparse attention" || resp.Days != 3 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Papers) != 1 || resp.Papers[0].ID != "2403.09999v1" {
		t.Errorf("papers = %+v", resp.Papers)
	}

	for _, query := range []string{"", "?keyword=x&days=0", "?keyword=x&days=31", "?keyword=x&limit=abc"} {
		var errResp endpoints.ErrorResponse
		if code := doJSON(t, "GET", env.api+"/api/papers/search"+query, nil, &errResp); code != http.StatusBadRequest {
			t.Errorf("search%s status = %d, want 400", query, code)
		}
	}
}

func TestParsePDF(t *testing.T) {
	env := newTestEnv(t)

	t.Run("extracts sections and figures", func(t *testing.T) {
		var res structure.Result
		code := doJSON(t, "POST", env.api+"/api/parse-pdf", endpoints.ParsePDFRequest{
			PaperID: "2403.09999",
			PDFURL:  env.upstream + "/pdf/2403.09999",
		}, &res)
		if code != http.StatusOK {
			t.Fatalf("status = %d, result = %+v", code, res)
		}
		if !res.Success || res.PaperID != "2403.09999" || res.ExtractionMethod != "static" {
			t.Errorf("result = %+v", res)
		}
		if len(res.Sections) != 1 || res.Sections[0].Title != "1. Introduction" {
			t.Errorf("sections = %+v", res.Sections)
		}
		if len(res.Figures) != 1 || res.Figures[0].ID != "fig1" {
			t.Errorf("figures = %+v", res.Figures)
		}
	})

	t.Run("download failure reports result", func(t *testing.T) {
		var res structure.Result
		code := doJSON(t, "POST", env.api+"/api/parse-pdf", endpoints.ParsePDFRequest{
			PaperID: "2403.00000",
			PDFURL:  env.upstream + "/pdf/2403.00000",
		}, &res)
		if code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", code)
		}
		if res.Success || res.Error == "" {
			t.Errorf("result = %+v", res)
		}
		if res.Sections == nil || res.Figures == nil {
			t.Error("failed result should carry empty lists")
		}
	})

	t.Run("paper id required", func(t *testing.T) {
		if code := doJSON(t, "POST", env.api+"/api/parse-pdf", map[string]string{"pdfUrl": "x"}, nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestAnalyzePaper(t *testing.T) {
	env := newTestEnv(t)
	paper := types.Paper{
		ID:         "2403.09999v1",
		Title:      "Sparse Attention at Scale",
		Abstract:   "We study sparse attention.",
		Authors:    []string{"Grace Hopper"},
		Categories: []string{"cs.LG"},
		Published:  testNow,
	}
	if err := env.store.SavePapers(context.Background(), []types.Paper{paper}); err != nil {
		t.Fatal(err)
	}

	t.Run("by id falls back without a backend", func(t *testing.T) {
		var a summarize.Analysis
		if code := doJSON(t, "POST", env.api+"/api/papers/analyze", endpoints.AnalyzeRequest{PaperID: paper.ID}, &a); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		want := summarize.Fallback(paper)
		if a.Generated || a.ExecutiveSummary != want.ExecutiveSummary || a.PaperID != paper.ID {
			t.Errorf("analysis = %+v", a)
		}
	})

	t.Run("inline paper", func(t *testing.T) {
		var a summarize.Analysis
		if code := doJSON(t, "POST", env.api+"/api/papers/analyze", endpoints.AnalyzeRequest{Paper: &paper}, &a); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if a.TechnicalDifficulty != 3 {
			t.Errorf("TechnicalDifficulty = %d", a.TechnicalDifficulty)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if code := doJSON(t, "POST", env.api+"/api/papers/analyze", endpoints.AnalyzeRequest{PaperID: "nope"}, nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("empty request", func(t *testing.T) {
		if code := doJSON(t, "POST", env.api+"/api/papers/analyze", endpoints.AnalyzeRequest{}, nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestSetSubscriptionActive(t *testing.T) {
	env := newTestEnv(t)
	sub, err := env.store.UpsertSubscription(context.Background(), types.Subscription{
		Email:    "ada@example.com",
		Keywords: []string{"attention"},
		Active:   true,
	})
	if err != nil {
		t.Fatal(err)
	}

	var resp endpoints.SetActiveResponse
	if code := doJSON(t, "PATCH", env.api+"/api/subscriptions/"+sub.ID, map[string]bool{"active": false}, &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Active {
		t.Error("Active = true after deactivation")
	}
	subs, err := env.store.ActiveSubscriptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Errorf("ActiveSubscriptions() = %+v, want none", subs)
	}

	if code := doJSON(t, "PATCH", env.api+"/api/subscriptions/missing", map[string]bool{"active": true}, nil); code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", code)
	}
	if code := doJSON(t, "PATCH", env.api+"/api/subscriptions/"+sub.ID, map[string]string{}, nil); code != http.StatusBadRequest {
		t.Errorf("missing active status = %d, want 400", code)
	}
}

func TestDigestRun_NotInitialized(t *testing.T) {
	env := newTestEnv(t)
	var errResp endpoints.ErrorResponse
	code := doJSON(t, "POST", env.api+"/api/digest/run", endpoints.DigestRunRequest{DryRun: true}, &errResp)
	if code != http.StatusServiceUnavailable || !strings.Contains(errResp.Error, "runner") {
		t.Errorf("status = %d, error = %q", code, errResp.Error)
	}
}
