package mail

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jackzampolin/paperpulse/internal/types"
)

// Defaults for the digest mailer.
const (
	DefaultFromEmail = "digest@paperpulse.ai"
	DefaultFromName  = "PaperPulse"
	DefaultBaseURL   = "https://paperpulse.ai"
)

//go:embed templates/digest.html
var digestHTML string

var digestTemplate = template.Must(template.New("digest").Parse(digestHTML))

// MailerConfig configures a Mailer.
type MailerConfig struct {
	// Sender delivers rendered digests. Nil disables sending.
	Sender    Sender
	FromEmail string // default: DefaultFromEmail
	FromName  string // default: DefaultFromName
	BaseURL   string // default: DefaultBaseURL
	Logger    *slog.Logger
	Now       func() time.Time
}

// Mailer renders digests and hands them to a Sender.
type Mailer struct {
	sender   Sender
	from     string
	baseURL  string
	policy   *bluemonday.Policy
	markdown *converter.Converter
	logger   *slog.Logger
	now      func() time.Time
}

// NewMailer creates a Mailer.
func NewMailer(cfg MailerConfig) *Mailer {
	if cfg.FromEmail == "" {
		cfg.FromEmail = DefaultFromEmail
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Mailer{
		sender:  cfg.Sender,
		from:    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		policy:  bluemonday.StrictPolicy(),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// Enabled reports whether the mailer has a sender.
func (m *Mailer) Enabled() bool {
	return m.sender != nil
}

// Digest is one subscriber's rendered email.
type Digest struct {
	Subject string
	HTML    string
	Text    string
}

type paperView struct {
	Title     string
	Authors   string
	Published string
	Summary   string
	URL       string
	PDFURL    string
}

type digestView struct {
	Papers         []paperView
	Keywords       string
	IncludePDFLink bool
	UnsubscribeURL string
	SettingsURL    string
}

// Render builds the subject, HTML body and plain-text alternative.
func (m *Mailer) Render(to string, papers []types.Paper, keywords []string, includePDFLink bool) (Digest, error) {
	view := digestView{
		Papers:         make([]paperView, 0, len(papers)),
		Keywords:       strings.Join(keywords, ", "),
		IncludePDFLink: includePDFLink,
		UnsubscribeURL: m.baseURL + "/unsubscribe?email=" + url.QueryEscape(to),
		SettingsURL:    m.baseURL + "/settings",
	}
	for _, p := range papers {
		view.Papers = append(view.Papers, paperView{
			Title:     m.plain(p.Title),
			Authors:   AuthorLine(p.Authors),
			Published: p.PublishedDate(),
			Summary:   m.plain(p.Summary),
			URL:       p.URL,
			PDFURL:    p.PDFURL,
		})
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, view); err != nil {
		return Digest{}, fmt.Errorf("failed to render digest: %w", err)
	}

	text, err := m.markdown.ConvertString(buf.String())
	if err != nil {
		return Digest{}, fmt.Errorf("failed to build plain-text digest: %w", err)
	}

	return Digest{
		Subject: Subject(len(papers), m.now()),
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

// SendDigest renders and sends a digest. It reports whether the sender
// accepted it; failures are logged, not returned.
func (m *Mailer) SendDigest(ctx context.Context, to string, papers []types.Paper, keywords []string, includePDFLink bool) bool {
	if m.sender == nil {
		m.logger.Warn("mail not configured, skipping digest", "to", to, "papers", len(papers))
		return false
	}

	d, err := m.Render(to, papers, keywords, includePDFLink)
	if err != nil {
		m.logger.Error("failed to render digest", "to", to, "error", err)
		return false
	}

	err = m.sender.Send(ctx, Message{
		From:    m.from,
		To:      []string{to},
		Subject: d.Subject,
		HTML:    d.HTML,
		Text:    d.Text,
	})
	if err != nil {
		m.logger.Error("failed to send digest", "to", to, "error", err)
		return false
	}

	m.logger.Info("digest sent", "to", to, "papers", len(papers))
	return true
}

// plain strips markup from model output and feed text. The template
// escapes the result again.
func (m *Mailer) plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(m.policy.Sanitize(s)))
}

// Subject is the digest subject line for n papers on day.
func Subject(n int, day time.Time) string {
	return fmt.Sprintf("PaperPulse: %d new papers for %s", n, day.Format("January 02"))
}

// AuthorLine lists the first three authors, then "et al.".
func AuthorLine(authors []string) string {
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:3], ", ") + " et al."
}
