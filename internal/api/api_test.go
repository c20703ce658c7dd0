package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

type rows [][]string

func (r rows) Table() ([]string, [][]string) {
	return []string{"ID", "Title", "Papers"}, r
}

func TestOutputTo(t *testing.T) {
	data := rows{{"2403.00001", "Sparse Mixtures", "3"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatJSON, map[string]int{"count": 2}); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), `"count": 2`) {
			t.Errorf("json output = %q", buf.String())
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatYAML, map[string]int{"count": 2}); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "count: 2" {
			t.Errorf("yaml output = %q", buf.String())
		}
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatTable, data); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"ID", "TITLE", "Sparse Mixtures", "2403.00001"} {
			if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("table falls back to yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatTable, map[string]string{"a": "b"}); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "a: b" {
			t.Errorf("fallback output = %q", buf.String())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := OutputTo(&bytes.Buffer{}, "xml", data); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat("yaml")
	for _, tt := range []struct {
		in   string
		want OutputFormat
	}{
		{"json", OutputFormatJSON},
		{"table", OutputFormatTable},
		{"yaml", OutputFormatYAML},
		{"bogus", DefaultOutput},
	} {
		SetOutputFormat(tt.in)
		if got := GetOutputFormat(); got != tt.want {
			t.Errorf("SetOutputFormat(%q) -> %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if got := RenderTable(nil, nil); got != "" {
		t.Errorf("RenderTable(nil) = %q", got)
	}
}

func TestClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/papers/search":
			json.NewEncoder(w).Encode(map[string]string{"keyword": r.URL.Query().Get("keyword")})
		case r.Method == http.MethodPost && r.URL.Path == "/echo":
			if r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusUnsupportedMediaType)
				return
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "subscription not found"})
		default:
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("plain failure"))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	var search map[string]string
	if err := client.GetQuery(ctx, "/api/papers/search", map[string][]string{"keyword": {"graph neural"}}, &search); err != nil {
		t.Fatalf("GetQuery() error = %v", err)
	}
	if search["keyword"] != "graph neural" {
		t.Errorf("keyword = %q", search["keyword"])
	}

	var echo map[string]string
	if err := client.Post(ctx, "/echo", map[string]string{"paperId": "p1"}, &echo); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if echo["paperId"] != "p1" {
		t.Errorf("echo = %v", echo)
	}

	err := client.Patch(ctx, "/api/subscriptions/x", map[string]bool{"active": false}, nil)
	if err == nil || !strings.Contains(err.Error(), "subscription not found") {
		t.Errorf("Patch() error = %v", err)
	}

	err = client.Get(ctx, "/missing", nil)
	if err == nil || !strings.Contains(err.Error(), "plain failure") {
		t.Errorf("Get() error = %v", err)
	}
}

type stubEndpoint struct {
	method, path, use string
}

func (e stubEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (e stubEndpoint) RequiresInit() bool { return e.path != "/health" }

func (e stubEndpoint) Command(func() string) *cobra.Command {
	if e.use == "" {
		return nil
	}
	return &cobra.Command{Use: e.use}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(stubEndpoint{"GET", "/health", "health"})
	r.Register(stubEndpoint{"POST", "/api/parse-pdf", "parse-pdf"})
	r.Register(stubEndpoint{"GET", "/api/papers/search", "search"})
	r.Register(stubEndpoint{"POST", "/api/papers/analyze", "analyze"})
	r.Register(stubEndpoint{"GET", "/api/hidden/x", ""})

	t.Run("commands grouped by path", func(t *testing.T) {
		root := r.BuildCommands(func() string { return "http://localhost" })
		for _, path := range [][]string{{"health"}, {"parse-pdf"}, {"papers", "search"}, {"papers", "analyze"}} {
			cmd, _, err := root.Find(path)
			if err != nil || cmd.Name() != path[len(path)-1] {
				t.Errorf("Find(%v) = %v, %v", path, cmd, err)
			}
		}
		if _, _, err := root.Find([]string{"hidden"}); err == nil {
			t.Error("endpoint without a command should not create a group")
		}
	})

	t.Run("init middleware", func(t *testing.T) {
		mux := http.NewServeMux()
		r.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})
		for path, want := range map[string]int{
			"/health":            http.StatusNoContent,
			"/api/papers/search": http.StatusServiceUnavailable,
		} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != want {
				t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
			}
		}
	})
}
