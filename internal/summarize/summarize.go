// Package summarize turns a paper's title and abstract into digest text
// using whichever LLM backend a subscription's model string names.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/paperpulse/internal/providers"
)

// Func summarizes one paper. On a provider error it returns the
// Unavailable placeholder together with the error, so the text is always
// displayable; callers holding the abstract may prefer AbstractFallback.
type Func func(ctx context.Context, title, abstract, tone string) (string, error)

// Backend is the provider call a model string resolves to.
type Backend struct {
	Provider string        // registry name; "mock" for the offline summarizer
	Model    string        // model id sent to the provider
	Interval time.Duration // minimum spacing between calls, 0 for none
}

// Resolve maps a subscription's model string to a backend:
//
//	gpt*                 openai, model unchanged
//	llama*groq[-slow]    groq, suffixes stripped, 0.5s (1s when slow) between calls
//	ollama-<m>           ollama, <m>
//	together-<m>         together, <m>
//	claude*              openrouter, anthropic/<model>
//	anything else        mock
func Resolve(model string) Backend {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt"):
		return Backend{Provider: providers.OpenAIName, Model: model}
	case strings.HasPrefix(lower, "llama") && strings.Contains(lower, "groq"):
		interval := 500 * time.Millisecond
		if strings.Contains(lower, "slow") {
			interval = time.Second
		}
		m := strings.ReplaceAll(strings.ReplaceAll(model, "-groq", ""), "-slow", "")
		return Backend{Provider: providers.GroqName, Model: m, Interval: interval}
	case strings.HasPrefix(lower, "ollama-"):
		return Backend{Provider: providers.OllamaName, Model: model[len("ollama-"):]}
	case strings.HasPrefix(lower, "together-"):
		return Backend{Provider: providers.TogetherName, Model: model[len("together-"):]}
	case strings.HasPrefix(lower, "claude"):
		return Backend{Provider: providers.OpenRouterName, Model: "anthropic/" + model}
	default:
		return Backend{Provider: providers.MockClientName, Model: model}
	}
}

// Unavailable is the text returned when a provider call fails.
func Unavailable(title string) string {
	return fmt.Sprintf("Summary unavailable. Title: %s...", truncateRunes(title, 100))
}

// AbstractFallback is the digest text used in place of a failed summary.
func AbstractFallback(abstract string) string {
	return truncateRunes(abstract, 200) + "..."
}

// Mock returns a canned summary without calling any backend.
func Mock(ctx context.Context, title, abstract, tone string) (string, error) {
	return fmt.Sprintf("[Mock Summary] This paper titled '%s...' presents novel research. The approach is innovative and results are promising.",
		truncateRunes(title, 50)), nil
}

// New returns the summarizer for model. A backend missing from registry
// degrades to Mock with a warning. registry may be nil.
func New(model string, registry *providers.Registry, logger *slog.Logger) Func {
	if logger == nil {
		logger = slog.Default()
	}
	backend := Resolve(model)
	if backend.Provider == providers.MockClientName {
		return Mock
	}
	if registry == nil {
		logger.Warn("no provider registry, using mock summarizer", "model", model)
		return Mock
	}
	client, err := registry.GetLLM(backend.Provider)
	if err != nil {
		logger.Warn("summarizer backend not configured, using mock", "model", model, "provider", backend.Provider)
		return Mock
	}
	return FromClient(client, backend, logger)
}

// FromClient builds a Func over client for backend.
func FromClient(client providers.LLMClient, backend Backend, logger *slog.Logger) Func {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := providers.NewIntervalLimiter(backend.Interval)
	return func(ctx context.Context, title, abstract, tone string) (string, error) {
		if tone == "" {
			tone = "concise"
		}
		if err := limiter.Wait(ctx); err != nil {
			return Unavailable(title), err
		}
		req := providers.UserPrompt(backend.Model, SummaryPrompt(title, abstract, tone), Temperature, MaxTokens)
		result, err := client.Chat(ctx, req)
		if err != nil {
			logger.Error("summarization failed", "provider", client.Name(), "model", backend.Model, "error", err)
			return Unavailable(title), fmt.Errorf("%s summarization failed: %w", client.Name(), err)
		}
		text := strings.TrimSpace(result.Content)
		if text == "" {
			return Unavailable(title), fmt.Errorf("%s returned an empty summary", client.Name())
		}
		return text, nil
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
