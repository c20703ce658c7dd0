// Package store persists subscriptions, papers and digest records.
//
// SQLStore speaks two dialects over database/sql: "postgres" (lib/pq) for
// the hosted database and "sqlite" (modernc.org/sqlite) for local runs and
// tests. FileSubscribers is the read-only fallback used when no database is
// configured.
package store

import (
	"context"
	"errors"

	"github.com/jackzampolin/paperpulse/internal/types"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface the digest run and CLI depend on.
type Store interface {
	// ActiveSubscriptions returns active subscriptions with a resolvable
	// email. Rows with malformed keywords get an empty keyword list.
	ActiveSubscriptions(ctx context.Context) ([]types.Subscription, error)
	UpsertSubscription(ctx context.Context, sub types.Subscription) (types.Subscription, error)
	SetSubscriptionActive(ctx context.Context, id string, active bool) error

	SavePapers(ctx context.Context, papers []types.Paper) error
	Paper(ctx context.Context, id string) (types.Paper, error)

	SaveDigestHistory(ctx context.Context, date string, paperIDs []string) error
	DigestHistory(ctx context.Context, date string) (types.DigestHistory, error)

	SaveUserDigest(ctx context.Context, d types.UserDigest) error
	UserDigestHistory(ctx context.Context, email string, days int) ([]types.UserDigest, error)
	UserPapersForDate(ctx context.Context, email, date string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// SubscriptionSource is the subset of Store needed to enumerate
// subscribers. FileSubscribers implements only this.
type SubscriptionSource interface {
	ActiveSubscriptions(ctx context.Context) ([]types.Subscription, error)
}
