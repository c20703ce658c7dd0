// Package mail renders and delivers subscriber digests.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultResendURL is the Resend send-email endpoint.
const DefaultResendURL = "https://api.resend.com/emails"

// Message is one outbound email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendConfig configures a ResendSender.
type ResendConfig struct {
	APIKey     string
	URL        string        // default: DefaultResendURL
	Timeout    time.Duration // default: 30s
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ResendSender sends mail through the Resend HTTP API.
type ResendSender struct {
	apiKey string
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewResendSender creates a Resend sender.
func NewResendSender(cfg ResendConfig) *ResendSender {
	if cfg.URL == "" {
		cfg.URL = DefaultResendURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ResendSender{
		apiKey: cfg.APIKey,
		url:    cfg.URL,
		client: cfg.HTTPClient,
		logger: cfg.Logger,
	}
}

// Send posts msg to Resend. Any non-2xx status is an error.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Debug("email accepted", "to", msg.To, "subject", msg.Subject)
	return nil
}
