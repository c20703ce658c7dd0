package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackzampolin/paperpulse/internal/types"
)

// FileSubscribers reads subscriptions from a JSON array on disk.
type FileSubscribers struct {
	Path   string
	Logger *slog.Logger
}

// fileEntry is one subscriber as written by hand. Omitted booleans
// default to true and keywords are decoded separately so a bad value
// only affects its own entry.
type fileEntry struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Email          string          `json:"email"`
	Keywords       json.RawMessage `json:"keywords"`
	DigestTime     string          `json:"digest_time"`
	DigestTimeUTC  string          `json:"digest_time_utc"`
	MaxPapers      int             `json:"max_papers"`
	SummaryModel   string          `json:"summary_model"`
	Tone           string          `json:"tone"`
	IncludePDFLink *bool           `json:"include_pdf_link"`
	Active         *bool           `json:"active"`
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// ActiveSubscriptions returns the active entries that have an email.
// A missing file yields no subscribers. Entries that cannot be decoded
// are skipped and malformed keywords become an empty list.
func (f FileSubscribers) ActiveSubscriptions(ctx context.Context) ([]types.Subscription, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		logger.Warn("subscribers file not found", "path", f.Path)
		return []types.Subscription{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse subscribers file %s: %w", f.Path, err)
	}

	out := make([]types.Subscription, 0, len(raw))
	for i, msg := range raw {
		var e fileEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			logger.Warn("skipping malformed subscriber entry", "index", i, "error", err)
			continue
		}
		if !boolOr(e.Active, true) {
			continue
		}
		if e.Email == "" {
			logger.Warn("skipping subscriber without email", "index", i)
			continue
		}

		sub := types.Subscription{
			ID:             e.ID,
			UserID:         e.UserID,
			Email:          e.Email,
			DigestTime:     e.DigestTimeUTC,
			MaxPapers:      e.MaxPapers,
			SummaryModel:   e.SummaryModel,
			Tone:           e.Tone,
			IncludePDFLink: boolOr(e.IncludePDFLink, true),
			Active:         true,
		}
		if sub.ID == "" {
			sub.ID = "json-" + e.Email
		}
		if sub.DigestTime == "" {
			sub.DigestTime = e.DigestTime
		}
		if len(e.Keywords) > 0 {
			if err := json.Unmarshal(e.Keywords, &sub.Keywords); err != nil {
				logger.Warn("malformed subscription keywords", "email", e.Email, "error", err)
				sub.Keywords = nil
			}
		}
		sub.Normalize()
		out = append(out, sub)
	}
	logger.Info("loaded subscribers from file", "path", f.Path, "count", len(out))
	return out, nil
}

var _ SubscriptionSource = FileSubscribers{}
