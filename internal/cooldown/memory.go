package cooldown

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process [HistoryStore]. It backs single-instance
// deployments and serves as the fallback when a durable backend is down.
// History is lost on restart, which for cooldown tracking only risks showing
// a service again early.
type MemoryStore struct {
	mu   sync.RWMutex
	last map[string]time.Time // key: userID + "\x00" + serviceID
}

var _ HistoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]time.Time)}
}

func historyKey(userID, serviceID string) string {
	return userID + "\x00" + serviceID
}

// InsertShown implements [HistoryStore].
func (s *MemoryStore) InsertShown(_ context.Context, userID, serviceID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := historyKey(userID, serviceID)
	if prev, ok := s.last[key]; !ok || ts.After(prev) {
		s.last[key] = ts
	}
	return nil
}

// LastShown implements [HistoryStore].
func (s *MemoryStore) LastShown(_ context.Context, userID, serviceID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.last[historyKey(userID, serviceID)]
	return ts, ok, nil
}
