package cooldown

import (
	"context"
	"log/slog"
	"time"

	"github.com/kaede-app/signpost/internal/observe"
)

const (
	// readTimeout bounds a cooldown lookup. The pipeline holds a user waiting,
	// so a slow backend is treated the same as a broken one.
	readTimeout = 2 * time.Second

	// writeTimeout bounds a history write.
	writeTimeout = 3 * time.Second
)

// Tracker decides whether a service is inside its cooldown window for a user
// and records newly shown services.
//
// Failure policy: IsOnCooldown fails open (backend error reads as "not on
// cooldown"), and Record logs and swallows write errors. Neither ever
// prevents a recommendation from reaching the user.
type Tracker struct {
	store   HistoryStore
	metrics *observe.Metrics

	// now is replaceable in tests.
	now func() time.Time
}

// NewTracker creates a Tracker over store. metrics may be nil.
func NewTracker(store HistoryStore, metrics *observe.Metrics) *Tracker {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Tracker{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// IsOnCooldown reports whether serviceID was shown to userID within the last
// cooldownDays days. No record, a non-positive window, or a backend failure
// all read as false.
func (t *Tracker) IsOnCooldown(ctx context.Context, userID, serviceID string, cooldownDays int) bool {
	if cooldownDays <= 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	start := t.now()
	lastShown, found, err := t.store.LastShown(ctx, userID, serviceID)
	t.metrics.HistoryDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		slog.Warn("cooldown lookup failed, treating as not on cooldown",
			"user", userID, "service", serviceID, "err", err)
		return false
	}
	if !found {
		return false
	}

	window := time.Duration(cooldownDays) * 24 * time.Hour
	onCooldown := t.now().Sub(lastShown) < window
	if onCooldown {
		t.metrics.CooldownSuppressed.Add(ctx, 1)
	}
	return onCooldown
}

// Record appends a shown-at record for (userID, serviceID) with the current
// time. Write failures are logged and swallowed.
func (t *Tracker) Record(ctx context.Context, userID, serviceID string) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := t.now()
	err := t.store.InsertShown(ctx, userID, serviceID, t.now())
	t.metrics.HistoryDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		slog.Warn("recording shown service failed",
			"user", userID, "service", serviceID, "err", err)
	}
}
