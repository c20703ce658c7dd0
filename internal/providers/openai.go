package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Backends that speak the OpenAI chat completions protocol.
const (
	OpenAIName   = "openai"
	GroqName     = "groq"
	TogetherName = "together"
	OllamaName   = "ollama"
)

// BaseURLs for the OpenAI-compatible backends. OpenAI itself uses the SDK
// default.
var compatBaseURLs = map[string]string{
	GroqName:     "https://api.groq.com/openai/v1",
	TogetherName: "https://api.together.xyz/v1",
	OllamaName:   "http://localhost:11434/v1",
}

var compatDefaultModels = map[string]string{
	OpenAIName:   "gpt-4o-mini",
	GroqName:     "llama-3.1-8b-instant",
	TogetherName: "meta-llama/Llama-3-8b-chat-hf",
	OllamaName:   "llama3",
}

// OpenAICompatConfig holds configuration for an OpenAI-compatible client.
type OpenAICompatConfig struct {
	Name         string // one of the *Name constants (default: "openai")
	APIKey       string
	BaseURL      string // overrides the backend default
	DefaultModel string
	RateLimit    int // requests per minute (default: 60)
	MaxRetries   int // SDK transport retries (default: 2)
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// OpenAICompatClient implements LLMClient with the official OpenAI SDK
// pointed at any OpenAI-compatible endpoint.
type OpenAICompatClient struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	rateLimit    int
	limiter      *RateLimiter
	client       openai.Client
}

// NewOpenAICompatClient creates a client for cfg.Name's backend.
func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.Name == "" {
		cfg.Name = OpenAIName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = compatBaseURLs[cfg.Name]
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = compatDefaultModels[cfg.Name]
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	// Ollama ignores the key but the SDK requires one.
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.Name == OllamaName {
		apiKey = "ollama"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAICompatClient{
		name:         cfg.Name,
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		rateLimit:    cfg.RateLimit,
		limiter:      NewRateLimiter(cfg.RateLimit),
		client:       openai.NewClient(opts...),
	}
}

// Name returns the backend identifier.
func (c *OpenAICompatClient) Name() string {
	return c.name
}

// Chat sends a chat completion request.
func (c *OpenAICompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  c.name,
		Attempts:  1,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return failResult(result, "context_cancelled", err, start)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.ResponseFormat != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				c.limiter.Record429(time.Second)
			}
			return failResult(result, "http_error", fmt.Errorf("%s error (status %d): %w", c.name, apiErr.StatusCode, err), start)
		}
		return failResult(result, "http_error", fmt.Errorf("%s request failed: %w", c.name, err), start)
	}

	if len(completion.Choices) == 0 {
		return failResult(result, "empty_response", errors.New("no choices in response"), start)
	}

	result.Success = true
	result.Content = completion.Choices[0].Message.Content
	result.ModelUsed = completion.Model
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)

	if err := applyStructuredOutput(req, result); err != nil {
		return result, err
	}
	return result, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

var _ LLMClient = (*OpenAICompatClient)(nil)
