package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/jackzampolin/paperpulse/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const dateLayout = "2006-01-02"

// Config configures an SQLStore.
type Config struct {
	Driver string // "postgres" or "sqlite"
	DSN    string
	// PingAttempts bounds connection retries at open (default: 3).
	PingAttempts int
	Logger       *slog.Logger
	// Now is the clock used for timestamps and history windows.
	Now func() time.Time
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	now    func() time.Time
}

// Open connects, verifies the connection and creates missing tables.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	case "":
		return nil, fmt.Errorf("store driver not configured")
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store DSN not configured")
	}
	if cfg.PingAttempts <= 0 {
		cfg.PingAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, driver: cfg.Driver, logger: cfg.Logger, now: cfg.Now}

	err = retry.Do(
		func() error { return s.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(cfg.PingAttempts)),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			cfg.Logger.Warn("database not reachable, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// ActiveSubscriptions returns active subscriptions. An empty email is
// resolved through the users table; rows still without one are skipped.
func (s *SQLStore) ActiveSubscriptions(ctx context.Context) ([]types.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT s.id, COALESCE(s.user_id, ''), s.email, COALESCE(u.email, ''), s.keywords,
		       s.digest_time, s.max_papers, s.summary_model, s.tone, s.include_pdf_link, s.active
		FROM subscriptions s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.active = ?
		ORDER BY s.id`), true)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []types.Subscription
	for rows.Next() {
		var (
			sub          types.Subscription
			userEmail    string
			keywordsJSON string
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Email, &userEmail, &keywordsJSON,
			&sub.DigestTime, &sub.MaxPapers, &sub.SummaryModel, &sub.Tone, &sub.IncludePDFLink, &sub.Active); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		if sub.Email == "" {
			sub.Email = userEmail
		}
		if sub.Email == "" {
			s.logger.Warn("skipping subscription without email", "id", sub.ID, "user_id", sub.UserID)
			continue
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &sub.Keywords); err != nil {
			s.logger.Warn("malformed subscription keywords", "id", sub.ID, "error", err)
			sub.Keywords = nil
		}
		sub.Normalize()
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	s.logger.Info("loaded active subscriptions", "count", len(subs))
	return subs, nil
}

// UpsertSubscription inserts or replaces a subscription by ID, assigning
// one when empty.
func (s *SQLStore) UpsertSubscription(ctx context.Context, sub types.Subscription) (types.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	sub.Normalize()
	keywords, err := json.Marshal(sub.Keywords)
	if err != nil {
		return sub, fmt.Errorf("failed to encode keywords: %w", err)
	}

	var userID any
	if sub.UserID != "" {
		userID = sub.UserID
	}
	_, err = s.exec(ctx, `
		INSERT INTO subscriptions (id, user_id, email, keywords, digest_time, max_papers,
		                           summary_model, tone, include_pdf_link, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			keywords = excluded.keywords,
			digest_time = excluded.digest_time,
			max_papers = excluded.max_papers,
			summary_model = excluded.summary_model,
			tone = excluded.tone,
			include_pdf_link = excluded.include_pdf_link,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		sub.ID, userID, sub.Email, string(keywords), sub.DigestTime, sub.MaxPapers,
		sub.SummaryModel, sub.Tone, sub.IncludePDFLink, sub.Active, s.timestamp())
	if err != nil {
		return sub, fmt.Errorf("failed to save subscription: %w", err)
	}
	return sub, nil
}

// SetSubscriptionActive flips a subscription's active flag.
func (s *SQLStore) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	res, err := s.exec(ctx, `UPDATE subscriptions SET active = ?, updated_at = ? WHERE id = ?`,
		active, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

// SavePapers upserts papers by ID in one transaction.
func (s *SQLStore) SavePapers(ctx context.Context, papers []types.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO papers (id, title, abstract, authors, published, url, pdf_url, categories, summary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			published = excluded.published,
			url = excluded.url,
			pdf_url = excluded.pdf_url,
			categories = excluded.categories,
			summary = COALESCE(excluded.summary, papers.summary),
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("failed to prepare paper upsert: %w", err)
	}
	defer stmt.Close()

	now := s.timestamp()
	for _, p := range papers {
		authors, _ := json.Marshal(nonNil(p.Authors))
		categories, _ := json.Marshal(nonNil(p.Categories))
		var summary any
		if p.Summary != "" {
			summary = p.Summary
		}
		published := ""
		if !p.Published.IsZero() {
			published = p.Published.UTC().Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Abstract, string(authors), published,
			p.URL, p.PDFURL, string(categories), summary, now); err != nil {
			return fmt.Errorf("failed to save paper %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit papers: %w", err)
	}
	s.logger.Info("saved papers", "count", len(papers))
	return nil
}

// Paper returns one stored paper.
func (s *SQLStore) Paper(ctx context.Context, id string) (types.Paper, error) {
	var (
		p                           types.Paper
		authors, categories, pubStr string
		summary                     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, title, abstract, authors, published, url, pdf_url, categories, summary
		FROM papers WHERE id = ?`), id).
		Scan(&p.ID, &p.Title, &p.Abstract, &authors, &pubStr, &p.URL, &p.PDFURL, &categories, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("failed to load paper %s: %w", id, err)
	}
	_ = json.Unmarshal([]byte(authors), &p.Authors)
	_ = json.Unmarshal([]byte(categories), &p.Categories)
	if pubStr != "" {
		p.Published, _ = time.Parse(time.RFC3339, pubStr)
	}
	p.Summary = summary.String
	return p, nil
}

// SaveDigestHistory upserts the global digest record for date.
func (s *SQLStore) SaveDigestHistory(ctx context.Context, date string, paperIDs []string) error {
	ids, err := json.Marshal(nonNil(paperIDs))
	if err != nil {
		return fmt.Errorf("failed to encode paper ids: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO digest_history (date, papers, created_at) VALUES (?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET papers = excluded.papers, created_at = excluded.created_at`,
		date, string(ids), s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to save digest history: %w", err)
	}
	return nil
}

// DigestHistory returns the global digest record for date.
func (s *SQLStore) DigestHistory(ctx context.Context, date string) (types.DigestHistory, error) {
	h := types.DigestHistory{Date: date}
	var ids, created string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT papers, created_at FROM digest_history WHERE date = ?`), date).
		Scan(&ids, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return h, fmt.Errorf("digest history %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return h, fmt.Errorf("failed to load digest history: %w", err)
	}
	_ = json.Unmarshal([]byte(ids), &h.PaperIDs)
	h.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return h, nil
}

// SaveUserDigest upserts a subscriber's digest record keyed by email and
// date.
func (s *SQLStore) SaveUserDigest(ctx context.Context, d types.UserDigest) error {
	keywords, _ := json.Marshal(nonNil(d.Keywords))
	ids, _ := json.Marshal(nonNil(d.PaperIDs))
	var userID, errMsg any
	if d.UserID != "" {
		userID = d.UserID
	}
	if d.ErrorMessage != "" {
		errMsg = d.ErrorMessage
	}
	sentAt := d.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO user_digests (email, date, user_id, keywords, papers, papers_count, sent_at, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email, date) DO UPDATE SET
			user_id = excluded.user_id,
			keywords = excluded.keywords,
			papers = excluded.papers,
			papers_count = excluded.papers_count,
			sent_at = excluded.sent_at,
			success = excluded.success,
			error_message = excluded.error_message`,
		d.Email, d.Date, userID, string(keywords), string(ids), d.PapersCount,
		sentAt.UTC().Format(time.RFC3339), d.Success, errMsg)
	if err != nil {
		return fmt.Errorf("failed to save user digest for %s: %w", d.Email, err)
	}
	return nil
}

// UserDigestHistory returns email's digests from the last days days,
// newest first.
func (s *SQLStore) UserDigestHistory(ctx context.Context, email string, days int) ([]types.UserDigest, error) {
	since := s.now().AddDate(0, 0, -days).Format(dateLayout)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT email, date, COALESCE(user_id, ''), keywords, papers, papers_count, sent_at, success, COALESCE(error_message, '')
		FROM user_digests
		WHERE email = ? AND date >= ?
		ORDER BY date DESC`), email, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query user digests: %w", err)
	}
	defer rows.Close()

	out := []types.UserDigest{}
	for rows.Next() {
		var (
			d                   types.UserDigest
			keywords, ids, sent string
		)
		if err := rows.Scan(&d.Email, &d.Date, &d.UserID, &keywords, &ids, &d.PapersCount, &sent, &d.Success, &d.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan user digest: %w", err)
		}
		_ = json.Unmarshal([]byte(keywords), &d.Keywords)
		_ = json.Unmarshal([]byte(ids), &d.PaperIDs)
		d.SentAt, _ = time.Parse(time.RFC3339, sent)
		out = append(out, d)
	}
	return out, rows.Err()
}

// UserPapersForDate returns the paper IDs sent to email on date.
func (s *SQLStore) UserPapersForDate(ctx context.Context, email, date string) ([]string, error) {
	var ids string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT papers FROM user_digests WHERE email = ? AND date = ?`), email, date).
		Scan(&ids)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("digest for %s on %s: %w", email, date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user papers: %w", err)
	}
	out := []string{}
	if err := json.Unmarshal([]byte(ids), &out); err != nil {
		return nil, fmt.Errorf("malformed paper list for %s on %s: %w", email, date, err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Store = (*SQLStore)(nil)
