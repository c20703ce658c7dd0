package digest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/jackzampolin/paperpulse/internal/aggregate"
	"github.com/jackzampolin/paperpulse/internal/store"
	"github.com/jackzampolin/paperpulse/internal/summarize"
	"github.com/jackzampolin/paperpulse/internal/types"
)

var runDay = time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)

type staticSubscribers []types.Subscription

func (s staticSubscribers) ActiveSubscriptions(context.Context) ([]types.Subscription, error) {
	return s, nil
}

type searchMap map[string][]types.Paper

func (m searchMap) Search(_ context.Context, keyword string, _, _ int) ([]types.Paper, error) {
	if keyword == "broken" {
		return nil, errors.New("upstream unavailable")
	}
	return m[keyword], nil
}

type sentDigest struct {
	to     string
	papers []types.Paper
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentDigest
	fail   map[string]bool
	panics map[string]bool
}

func (f *fakeMailer) SendDigest(_ context.Context, to string, papers []types.Paper, _ []string, _ bool) bool {
	if f.panics[to] {
		panic("template exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return false
	}
	f.sent = append(f.sent, sentDigest{to: to, papers: papers})
	return true
}

func paper(id string) types.Paper {
	return types.Paper{ID: id, Title: "Title " + id, Abstract: strings.Repeat("word ", 60)}
}

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "digest.db"),
		Now:    func() time.Time { return runDay },
	})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRunner(t *testing.T, subs []types.Subscription, st store.Store, mailer Mailer, summarizers SummarizerFactory) (*Runner, string) {
	t.Helper()
	digests := filepath.Join(t.TempDir(), "digests")
	agg := aggregate.New(aggregate.Config{
		Searcher: searchMap{
			"transformer": {paper("a"), paper("b"), paper("c")},
			"diffusion":   {paper("c"), paper("d")},
		},
		Delay: -1,
	})
	return NewRunner(Config{
		Subscribers: staticSubscribers(subs),
		Store:       st,
		Aggregator:  agg,
		Summarizers: summarizers,
		Mailer:      mailer,
		DigestsDir:  digests,
		LockPath:    filepath.Join(t.TempDir(), "run.lock"),
		Now:         func() time.Time { return runDay },
	}), digests
}

func TestKeywords(t *testing.T) {
	subs := []types.Subscription{
		{Keywords: []string{"diffusion", " transformer "}},
		{Keywords: []string{"transformer", "", "rl"}},
	}
	got := Keywords(subs)
	want := []string{"diffusion", "transformer", "rl"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
}

func TestSelect(t *testing.T) {
	papers := aggregate.Dedupe(
		withKeyword([]types.Paper{paper("a"), paper("b"), paper("c")}, "transformer"),
		withKeyword([]types.Paper{paper("c"), paper("d")}, "diffusion"),
	)

	tests := []struct {
		name string
		sub  types.Subscription
		want string
	}{
		{"single keyword", types.Subscription{Keywords: []string{"diffusion"}, MaxPapers: 10}, "c,d"},
		{"truncated", types.Subscription{Keywords: []string{"transformer", "diffusion"}, MaxPapers: 3}, "a,b,c"},
		{"no match", types.Subscription{Keywords: []string{"rl"}, MaxPapers: 10}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(Select(papers, tt.sub)); got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	st := openStore(t)
	mailer := &fakeMailer{fail: map[string]bool{"fail@example.com": true}}
	subs := []types.Subscription{
		{Email: "ok@example.com", Keywords: []string{"transformer"}, MaxPapers: 2, SummaryModel: "mock", Tone: "concise"},
		{Email: "fail@example.com", Keywords: []string{"diffusion"}, MaxPapers: 10, SummaryModel: "mock"},
		{Email: "none@example.com", Keywords: []string{"broken"}, MaxPapers: 10, SummaryModel: "mock"},
	}

	var calls []string
	summarizers := func(model string) summarize.Func {
		return func(_ context.Context, title, abstract, _ string) (string, error) {
			calls = append(calls, title)
			if title == "Title b" {
				return "Summary unavailable.", errors.New("rate limited")
			}
			return "summary of " + title, nil
		}
	}

	runner, digests := newTestRunner(t, subs, st, mailer, summarizers)
	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Date != "2024-03-15" || report.Papers != 4 || report.Search.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := strings.Join(report.Keywords, ","); got != "transformer,diffusion,broken" {
		t.Errorf("keywords = %q", got)
	}
	if report.Succeeded != 2 || len(report.Results) != 3 {
		t.Errorf("results = %+v", report.Results)
	}

	t.Run("mail carries truncated summarized papers", func(t *testing.T) {
		if len(mailer.sent) != 1 || mailer.sent[0].to != "ok@example.com" {
			t.Fatalf("sent = %+v", mailer.sent)
		}
		got := mailer.sent[0].papers
		if ids(got) != "a,b" {
			t.Errorf("papers = %q", ids(got))
		}
		if got[0].Summary != "summary of Title a" {
			t.Errorf("summary = %q", got[0].Summary)
		}
		if got[1].Summary != summarize.AbstractFallback(paper("b").Abstract) {
			t.Errorf("fallback summary = %q", got[1].Summary)
		}
	})

	t.Run("daily digest persisted", func(t *testing.T) {
		h, err := st.DigestHistory(context.Background(), "2024-03-15")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(h.PaperIDs, ",") != "a,b,c,d" {
			t.Errorf("history = %v", h.PaperIDs)
		}
		if _, err := st.Paper(context.Background(), "d"); err != nil {
			t.Errorf("paper d not saved: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(digests, "2024-03-15.json"))
		if err != nil {
			t.Fatal(err)
		}
		var file DailyFile
		if err := json.Unmarshal(data, &file); err != nil {
			t.Fatal(err)
		}
		if file.Date != "2024-03-15" || len(file.Papers) != 4 {
			t.Errorf("daily file = %+v", file)
		}
	})

	t.Run("user digests recorded", func(t *testing.T) {
		ok, err := st.UserPapersForDate(context.Background(), "ok@example.com", "2024-03-15")
		if err != nil || strings.Join(ok, ",") != "a,b" {
			t.Errorf("ok papers = %v, %v", ok, err)
		}
		failed, _ := st.UserDigestHistory(context.Background(), "fail@example.com", 1)
		if len(failed) != 1 || failed[0].Success || failed[0].PapersCount != 2 {
			t.Errorf("failed digest = %+v", failed)
		}
		// No papers: nothing sent, nothing recorded.
		if _, err := st.UserPapersForDate(context.Background(), "none@example.com", "2024-03-15"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestRun_DailyLimit(t *testing.T) {
	runner, digests := newTestRunner(t, []types.Subscription{{Email: "a@example.com", Keywords: []string{"transformer", "diffusion"}}}, nil, &fakeMailer{}, nil)
	runner.cfg.DailyLimit = 2

	if _, err := runner.Run(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(digests, "2024-03-15.json"))
	var file DailyFile
	json.Unmarshal(data, &file)
	if ids(file.Papers) != "a,b" {
		t.Errorf("daily papers = %q", ids(file.Papers))
	}
}

func TestRun_PanicRecordedAsFailure(t *testing.T) {
	st := openStore(t)
	mailer := &fakeMailer{panics: map[string]bool{"boom@example.com": true}}
	subs := []types.Subscription{
		{Email: "boom@example.com", Keywords: []string{"transformer"}, MaxPapers: 5},
		{Email: "fine@example.com", Keywords: []string{"diffusion"}, MaxPapers: 5},
	}
	runner, _ := newTestRunner(t, subs, st, mailer, nil)

	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Results[0].Success || !strings.Contains(report.Results[0].Error, "template exploded") {
		t.Errorf("panicking subscriber = %+v", report.Results[0])
	}
	if !report.Results[1].Success {
		t.Errorf("later subscriber affected: %+v", report.Results[1])
	}

	history, _ := st.UserDigestHistory(context.Background(), "boom@example.com", 1)
	if len(history) != 1 || history[0].Success || !strings.Contains(history[0].ErrorMessage, "panic") {
		t.Errorf("failure record = %+v", history)
	}
}

func TestRun_DryRun(t *testing.T) {
	st := openStore(t)
	mailer := &fakeMailer{}
	runner, digests := newTestRunner(t, []types.Subscription{{Email: "a@example.com", Keywords: []string{"transformer"}}}, st, mailer, nil)

	report, err := runner.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.DryRun || report.Papers != 3 || len(report.Results) != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(mailer.sent) != 0 {
		t.Error("dry run sent mail")
	}
	if _, err := os.Stat(digests); !os.IsNotExist(err) {
		t.Error("dry run wrote digest files")
	}
	if _, err := st.DigestHistory(context.Background(), "2024-03-15"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("dry run saved history: %v", err)
	}
}

func TestRun_NoSubscribers(t *testing.T) {
	runner, _ := newTestRunner(t, nil, nil, &fakeMailer{}, nil)
	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Subscribers != 0 || report.Papers != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_NoMailer(t *testing.T) {
	runner, _ := newTestRunner(t, []types.Subscription{{Email: "a@example.com", Keywords: []string{"transformer"}}}, nil, nil, nil)
	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 1 || report.Results[0].Success || report.Results[0].Error != "mail not configured" {
		t.Errorf("results = %+v", report.Results)
	}
}

func TestRun_Locked(t *testing.T) {
	runner, _ := newTestRunner(t, nil, nil, nil, nil)
	held := flock.New(runner.cfg.LockPath)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	defer held.Unlock()

	if _, err := runner.Run(context.Background(), false); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}
}

func withKeyword(papers []types.Paper, kw string) []types.Paper {
	for i := range papers {
		papers[i].KeywordsMatched = []string{kw}
	}
	return papers
}

func ids(papers []types.Paper) string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return strings.Join(out, ",")
}
