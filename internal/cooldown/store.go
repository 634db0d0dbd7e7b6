// Package cooldown tracks which services were recently shown to which users
// and suppresses repeat recommendations inside a per-service cooldown window.
//
// The tracker is deliberately fail-open: a broken history backend must never
// block a recommendation. Read failures count as "not on cooldown"; write
// failures are logged and swallowed. Over-showing a service is the cheaper
// failure mode.
package cooldown

import (
	"context"
	"time"
)

// Record is one "service shown to user" event.
type Record struct {
	UserID    string
	ServiceID string
	ShownAt   time.Time
}

// HistoryStore persists recommendation records. Implementations must be safe
// for concurrent use.
type HistoryStore interface {
	// InsertShown appends a record that serviceID was shown to userID at ts.
	InsertShown(ctx context.Context, userID, serviceID string, ts time.Time) error

	// LastShown returns the most recent time serviceID was shown to userID.
	// The boolean is false when no record exists.
	LastShown(ctx context.Context, userID, serviceID string) (time.Time, bool, error)
}
