package cooldown

import (
	"context"
	"time"

	"github.com/kaede-app/signpost/internal/resilience"
)

// FallbackStore chains a durable [HistoryStore] with an in-process fallback.
// When the durable backend (Postgres or Redis) fails or its breaker opens,
// reads and writes degrade to the next store in the chain instead of
// erroring. The degraded store sees only the traffic written during the
// outage, so cooldown decisions made against it may over-show — which is the
// acceptable failure direction here.
type FallbackStore struct {
	group *resilience.FallbackGroup[HistoryStore]
}

var _ HistoryStore = (*FallbackStore)(nil)

// NewFallbackStore creates a chain with primary first. Add degraded backends
// with [FallbackStore.AddFallback] in preference order.
func NewFallbackStore(primary HistoryStore, primaryName string, cfg resilience.FallbackConfig) *FallbackStore {
	return &FallbackStore{
		group: resilience.NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends a lower-preference backend to the chain.
func (s *FallbackStore) AddFallback(name string, store HistoryStore) {
	s.group.AddFallback(name, store)
}

// InsertShown implements [HistoryStore].
func (s *FallbackStore) InsertShown(ctx context.Context, userID, serviceID string, ts time.Time) error {
	return s.group.Execute(func(store HistoryStore) error {
		return store.InsertShown(ctx, userID, serviceID, ts)
	})
}

// LastShown implements [HistoryStore].
func (s *FallbackStore) LastShown(ctx context.Context, userID, serviceID string) (time.Time, bool, error) {
	type shown struct {
		ts time.Time
		ok bool
	}
	res, err := resilience.ExecuteWithResult(s.group, func(store HistoryStore) (shown, error) {
		ts, ok, err := store.LastShown(ctx, userID, serviceID)
		return shown{ts: ts, ok: ok}, err
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return res.ts, res.ok, nil
}
