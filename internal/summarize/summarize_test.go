package summarize

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/paperpulse/internal/providers"
	"github.com/jackzampolin/paperpulse/internal/types"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		model string
		want  Backend
	}{
		{"gpt-4o-mini", Backend{Provider: "openai", Model: "gpt-4o-mini"}},
		{"llama-3.1-8b-instant-groq", Backend{Provider: "groq", Model: "llama-3.1-8b-instant", Interval: 500 * time.Millisecond}},
		{"llama-3.1-8b-instant-groq-slow", Backend{Provider: "groq", Model: "llama-3.1-8b-instant", Interval: time.Second}},
		{"ollama-llama3.2", Backend{Provider: "ollama", Model: "llama3.2"}},
		{"together-meta-llama/Llama-3.2-3B-Instruct-Turbo", Backend{Provider: "together", Model: "meta-llama/Llama-3.2-3B-Instruct-Turbo"}},
		{"claude-3-haiku-20240307", Backend{Provider: "openrouter", Model: "anthropic/claude-3-haiku-20240307"}},
		{"llama-3-local", Backend{Provider: "mock", Model: "llama-3-local"}},
		{"hf-facebook/bart-large-cnn", Backend{Provider: "mock", Model: "hf-facebook/bart-large-cnn"}},
		{"", Backend{Provider: "mock"}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := Resolve(tt.model); got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("routes to registered backend", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseText = "  A tight summary.  "
		reg := providers.NewRegistry()
		reg.RegisterLLM(providers.OpenAIName, mock)

		summarize := New("gpt-4o-mini", reg, nil)
		got, err := summarize(context.Background(), "Attention", "We propose transformers.", "technical")
		if err != nil {
			t.Fatalf("summarize() error = %v", err)
		}
		if got != "A tight summary." {
			t.Errorf("summary = %q", got)
		}

		req := mock.LastRequest()
		if req.Model != "gpt-4o-mini" || req.MaxTokens != 150 || req.Temperature != 0.7 {
			t.Errorf("request model=%q max_tokens=%d temperature=%v", req.Model, req.MaxTokens, req.Temperature)
		}
		prompt := req.Messages[0].Content
		if !strings.Contains(prompt, "in technical language (max 120 words)") || !strings.Contains(prompt, "Title: Attention") {
			t.Errorf("prompt = %q", prompt)
		}
	})

	t.Run("missing backend degrades to mock", func(t *testing.T) {
		summarize := New("gpt-4o-mini", providers.NewRegistry(), nil)
		got, err := summarize(context.Background(), "A Title", "abstract", "concise")
		if err != nil {
			t.Fatalf("summarize() error = %v", err)
		}
		if !strings.HasPrefix(got, "[Mock Summary]") {
			t.Errorf("summary = %q", got)
		}
	})

	t.Run("provider failure returns placeholder and error", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true
		reg := providers.NewRegistry()
		reg.RegisterLLM(providers.GroqName, mock)

		title := strings.Repeat("t", 150)
		got, err := New("llama-3.1-8b-instant-groq", reg, nil)(context.Background(), title, "abstract", "")
		if err == nil {
			t.Fatal("expected error")
		}
		if got != "Summary unavailable. Title: "+strings.Repeat("t", 100)+"..." {
			t.Errorf("placeholder = %q", got)
		}
	})
}

func TestFromClient_Throttle(t *testing.T) {
	mock := providers.NewMockClient()
	summarize := FromClient(mock, Backend{Provider: "groq", Model: "m", Interval: 30 * time.Millisecond}, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := summarize(context.Background(), "t", "a", "concise"); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("three calls took %v, want at least 60ms", elapsed)
	}
}

func TestMock(t *testing.T) {
	got, _ := Mock(context.Background(), strings.Repeat("x", 80), "", "")
	want := "[Mock Summary] This paper titled '" + strings.Repeat("x", 50) + "...' presents novel research. The approach is innovative and results are promising."
	if got != want {
		t.Errorf("Mock() = %q", got)
	}
}

func TestAbstractFallback(t *testing.T) {
	if got := AbstractFallback("short"); got != "short..." {
		t.Errorf("AbstractFallback(short) = %q", got)
	}
	long := strings.Repeat("é", 250)
	if got := AbstractFallback(long); got != strings.Repeat("é", 200)+"..." {
		t.Errorf("AbstractFallback(long) has %d runes", len([]rune(got)))
	}
}

func TestAnalyzer(t *testing.T) {
	paper := types.Paper{
		ID:         "2403.00001",
		Title:      "Sparse Mixtures",
		Abstract:   "We study sparse experts.",
		Authors:    []string{"A", "B", "C"},
		Categories: []string{"cs.LG", "cs.AI", "stat.ML"},
	}

	t.Run("valid structured output", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseJSON = json.RawMessage(`{
			"executive_summary":"Experts help.",
			"key_contributions":["routing","scaling"],
			"methodology":"m","results":"r","technical_approach":"t",
			"significance":"s","limitations":"l",
			"technical_difficulty":4,
			"target_audience":"ML researchers"
		}`)

		a := NewAnalyzerWithClient(mock, "gpt-4o-mini", nil)
		got := a.Analyze(context.Background(), paper)
		if !got.Generated || got.TechnicalDifficulty != 4 || got.PaperID != paper.ID {
			t.Errorf("analysis = %+v", got)
		}
		if len(got.KeyContributions) != 2 {
			t.Errorf("KeyContributions = %v", got.KeyContributions)
		}
		req := mock.LastRequest()
		if req.ResponseFormat == nil || !strings.Contains(req.Messages[1].Content, "Authors: A, B, C") {
			t.Errorf("unexpected request: %+v", req)
		}
	})

	t.Run("schema violation falls back", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseJSON = json.RawMessage(`{"executive_summary":"x","technical_difficulty":9}`)

		got := NewAnalyzerWithClient(mock, "gpt-4o-mini", nil).Analyze(context.Background(), paper)
		if got.Generated {
			t.Error("expected fallback analysis")
		}
		if got.TechnicalDifficulty != 3 {
			t.Errorf("TechnicalDifficulty = %d, want 3", got.TechnicalDifficulty)
		}
	})

	t.Run("unconfigured backend falls back", func(t *testing.T) {
		a := NewAnalyzer(AnalyzerConfig{Model: "claude-3-haiku", Registry: providers.NewRegistry()})
		got := a.Analyze(context.Background(), paper)
		if got.Generated {
			t.Error("expected fallback analysis")
		}
	})
}

func TestFallback(t *testing.T) {
	got := Fallback(types.Paper{ID: "p", Authors: []string{"a", "b"}, Categories: []string{"cs.CL", "cs.AI", "cs.LG"}})
	if got.ExecutiveSummary != "This paper presents research in cs.CL, cs.AI with contributions from 2 author(s). The work addresses important challenges in the field." {
		t.Errorf("ExecutiveSummary = %q", got.ExecutiveSummary)
	}
	if got.TargetAudience != "Researchers and practitioners in cs.CL, cs.AI." {
		t.Errorf("TargetAudience = %q", got.TargetAudience)
	}
	if len(got.KeyContributions) != 3 || got.TechnicalDifficulty != 3 {
		t.Errorf("fallback = %+v", got)
	}
}
