package types

import "time"

// Tone values accepted by the summarizer.
const (
	ToneConcise  = "concise"
	ToneDetailed = "detailed"
	ToneSimple   = "simple"
)

// Subscription defaults.
const (
	DefaultDigestTime   = "13:00"
	DefaultMaxPapers    = 100
	MaxMaxPapers        = 200
	DefaultSummaryModel = "llama-3.1-8b-instant-groq"
)

// Subscription is one subscriber's digest preferences.
type Subscription struct {
	ID             string   `json:"id,omitempty" yaml:"id,omitempty"`
	UserID         string   `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Email          string   `json:"email" yaml:"email"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
	DigestTime     string   `json:"digest_time,omitempty" yaml:"digest_time,omitempty"`
	MaxPapers      int      `json:"max_papers,omitempty" yaml:"max_papers,omitempty"`
	SummaryModel   string   `json:"summary_model,omitempty" yaml:"summary_model,omitempty"`
	Tone           string   `json:"tone,omitempty" yaml:"tone,omitempty"`
	IncludePDFLink bool     `json:"include_pdf_link" yaml:"include_pdf_link"`
	Active         bool     `json:"active" yaml:"active"`
}

// Normalize fills defaults and clamps out-of-range values in place.
func (s *Subscription) Normalize() {
	if s.DigestTime == "" {
		s.DigestTime = DefaultDigestTime
	}
	if s.MaxPapers <= 0 {
		s.MaxPapers = DefaultMaxPapers
	}
	if s.MaxPapers > MaxMaxPapers {
		s.MaxPapers = MaxMaxPapers
	}
	if s.SummaryModel == "" {
		s.SummaryModel = DefaultSummaryModel
	}
	switch s.Tone {
	case ToneConcise, ToneDetailed, ToneSimple:
	default:
		s.Tone = ToneConcise
	}
	if s.Keywords == nil {
		s.Keywords = []string{}
	}
}

// UserDigest records what was sent to one subscriber on one date.
// Keyed by (Email, Date).
type UserDigest struct {
	UserID       string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Email        string    `json:"email" yaml:"email"`
	Date         string    `json:"date" yaml:"date"`
	Keywords     []string  `json:"keywords" yaml:"keywords"`
	PaperIDs     []string  `json:"papers" yaml:"papers"`
	PapersCount  int       `json:"papers_count" yaml:"papers_count"`
	SentAt       time.Time `json:"sent_at" yaml:"sent_at"`
	Success      bool      `json:"success" yaml:"success"`
	ErrorMessage string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// DigestHistory is the global daily digest record, keyed by Date.
type DigestHistory struct {
	Date      string    `json:"date" yaml:"date"`
	PaperIDs  []string  `json:"paper_ids" yaml:"paper_ids"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
