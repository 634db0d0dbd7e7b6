package cooldown

import (
	"context"
	"errors"
	"testing"
	"time"
)

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) InsertShown(context.Context, string, string, time.Time) error {
	return errors.New("backend down")
}

func (failingStore) LastShown(context.Context, string, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("backend down")
}

func newTestTracker(store HistoryStore, now time.Time) *Tracker {
	t := NewTracker(store, nil)
	t.now = func() time.Time { return now }
	return t
}

func TestTracker_CooldownWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	shown := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := store.InsertShown(ctx, "user-1", "job-center", shown); err != nil {
		t.Fatalf("InsertShown: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"2 days later still on cooldown", shown.Add(2 * 24 * time.Hour), true},
		{"just inside the window", shown.Add(7*24*time.Hour - time.Second), true},
		{"exactly at the boundary eligible again", shown.Add(7 * 24 * time.Hour), false},
		{"well past the window", shown.Add(30 * 24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(store, tt.now)
			if got := tr.IsOnCooldown(ctx, "user-1", "job-center", 7); got != tt.want {
				t.Errorf("IsOnCooldown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_NoRecordMeansNotOnCooldown(t *testing.T) {
	tr := newTestTracker(NewMemoryStore(), time.Now())
	if tr.IsOnCooldown(context.Background(), "user-1", "never-shown", 7) {
		t.Error("service without a record should not be on cooldown")
	}
}

func TestTracker_OtherUserUnaffected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	_ = store.InsertShown(ctx, "user-1", "svc", now)

	tr := newTestTracker(store, now.Add(time.Hour))
	if tr.IsOnCooldown(ctx, "user-2", "svc", 7) {
		t.Error("cooldown must be scoped per user")
	}
}

func TestTracker_ReadFailsOpen(t *testing.T) {
	tr := newTestTracker(failingStore{}, time.Now())
	if tr.IsOnCooldown(context.Background(), "user-1", "svc", 7) {
		t.Error("a broken backend must read as not on cooldown")
	}
}

func TestTracker_WriteFailureSwallowed(t *testing.T) {
	tr := newTestTracker(failingStore{}, time.Now())
	// Must not panic or propagate the backend error.
	tr.Record(context.Background(), "user-1", "svc")
}

func TestTracker_NonPositiveWindowNeverOnCooldown(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	_ = store.InsertShown(ctx, "user-1", "svc", now)

	tr := newTestTracker(store, now)
	if tr.IsOnCooldown(ctx, "user-1", "svc", 0) {
		t.Error("zero cooldown window should never suppress")
	}
}

func TestMemoryStore_KeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	_ = store.InsertShown(ctx, "u", "s", newer)
	_ = store.InsertShown(ctx, "u", "s", older) // out-of-order write

	ts, ok, err := store.LastShown(ctx, "u", "s")
	if err != nil || !ok {
		t.Fatalf("LastShown: ok=%v err=%v", ok, err)
	}
	if !ts.Equal(newer) {
		t.Errorf("LastShown = %v, want most recent %v", ts, newer)
	}
}
