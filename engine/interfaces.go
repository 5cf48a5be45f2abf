package engine

import (
	"context"

	"clearspace/core"
)

// Storage abstracts persistence for user stats and subscriptions.
// LoadStats and LoadSubscription return a fresh zero-counter record for
// a user seen for the first time; they never report "not found" as an
// error.
type Storage interface {
	LoadStats(ctx context.Context, user core.UserID) (core.UserStats, error)
	SaveStats(ctx context.Context, user core.UserID, stats core.UserStats) error
	LoadSubscription(ctx context.Context, user core.UserID) (core.Subscription, error)
	SaveSubscription(ctx context.Context, user core.UserID, sub core.Subscription) error
}

// CreditDebiter is an optional Storage capability: a backend that can
// consume one credit as a single atomic check-and-decrement (e.g. a
// Redis Lua script). When absent the service falls back to a lock-held
// read-modify-write.
type CreditDebiter interface {
	DebitCredit(ctx context.Context, user core.UserID) (core.Subscription, bool, error)
}
