package recommend

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kaede-app/signpost/internal/cooldown"
	"github.com/kaede-app/signpost/internal/embedder"
	"github.com/kaede-app/signpost/internal/match"
	"github.com/kaede-app/signpost/internal/profile"
	"github.com/kaede-app/signpost/internal/registry"
	"github.com/kaede-app/signpost/pkg/embeddings/mock"
)

// countingStore wraps a memory store and counts writes per service.
type countingStore struct {
	*cooldown.MemoryStore

	mu      sync.Mutex
	inserts map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{
		MemoryStore: cooldown.NewMemoryStore(),
		inserts:     map[string]int{},
	}
}

func (s *countingStore) InsertShown(ctx context.Context, userID, serviceID string, ts time.Time) error {
	s.mu.Lock()
	s.inserts[serviceID]++
	s.mu.Unlock()
	return s.MemoryStore.InsertShown(ctx, userID, serviceID, ts)
}

var jobService = registry.Service{
	ID: "job-center", Name: "Job Center", URL: "https://example.org/jobs",
	Description: "Employment counselling and job placement.",
	Criteria: map[string]map[string]bool{
		"employment": {"seeking_job": true},
	},
	Tags:         []string{"employment"},
	CooldownDays: 7,
}

var seekingJob = profile.NeedsProfile{
	"employment": {"seeking_job": true},
}

func newTestCoordinator(reg *registry.Registry, store cooldown.HistoryStore, opts Options) *Coordinator {
	tracker := cooldown.NewTracker(store, nil)
	return New(reg, nil, tracker, nil, opts)
}

func TestRecommend_FullCriteriaMatchScoresOne(t *testing.T) {
	reg := registry.New([]registry.Service{jobService})
	store := newCountingStore()
	c := newTestCoordinator(reg, store, Options{})

	results := c.Recommend(context.Background(), "user-1", seekingJob, "")

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Service.ID != "job-center" {
		t.Errorf("service = %s, want job-center", r.Service.ID)
	}
	if r.Score != 1.0 {
		t.Errorf("score = %v, want exactly 1.0", r.Score)
	}
	if r.Tier != match.TierCriteria {
		t.Errorf("tier = %s, want criteria", r.Tier)
	}
}

func TestRecommend_CooldownExcludesRecentlyShown(t *testing.T) {
	reg := registry.New([]registry.Service{jobService})
	store := newCountingStore()
	// Shown 2 days ago with a 7-day window.
	_ = store.InsertShown(context.Background(), "user-1", "job-center", time.Now().Add(-2*24*time.Hour))

	c := newTestCoordinator(reg, store, Options{})
	results := c.Recommend(context.Background(), "user-1", seekingJob, "")

	for _, r := range results {
		if r.Service.ID == "job-center" {
			t.Fatal("job-center should be suppressed by cooldown")
		}
	}
}

func TestRecommend_CooldownExpiredShowsAgain(t *testing.T) {
	reg := registry.New([]registry.Service{jobService})
	store := newCountingStore()
	_ = store.InsertShown(context.Background(), "user-1", "job-center", time.Now().Add(-8*24*time.Hour))

	c := newTestCoordinator(reg, store, Options{})
	results := c.Recommend(context.Background(), "user-1", seekingJob, "")

	if len(results) != 1 || results[0].Service.ID != "job-center" {
		t.Fatalf("expected job-center after cooldown expiry, got %v", results)
	}
}

func TestRecommend_CapsAndSortsResults(t *testing.T) {
	services := make([]registry.Service, 0, 10)
	for i := range 10 {
		services = append(services, registry.Service{
			ID:   fmt.Sprintf("svc-%d", i),
			Name: fmt.Sprintf("Service %d", i),
			URL:  "u",
			Criteria: map[string]map[string]bool{
				"employment": {"seeking_job": true},
			},
		})
	}
	reg := registry.New(services)
	c := newTestCoordinator(reg, newCountingStore(), Options{})

	results := c.Recommend(context.Background(), "user-1", seekingJob, "")

	if len(results) != 3 {
		t.Fatalf("got %d results, want cap of 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at index %d", i)
		}
	}
}

func TestRecommend_RecordsEachShownServiceExactlyOnce(t *testing.T) {
	reg := registry.New([]registry.Service{jobService})
	store := newCountingStore()
	c := newTestCoordinator(reg, store, Options{})

	c.Recommend(context.Background(), "user-1", seekingJob, "")

	if got := store.inserts["job-center"]; got != 1 {
		t.Errorf("job-center recorded %d times, want exactly 1", got)
	}
}

func TestRecommend_ExplicitRequestLowersThreshold(t *testing.T) {
	// Half the criteria satisfied → score 0.5, below 0.65 but above 0.40.
	svc := jobService
	svc.Criteria = map[string]map[string]bool{
		"employment": {"seeking_job": true, "unemployed": true},
	}
	reg := registry.New([]registry.Service{svc})
	c := newTestCoordinator(reg, newCountingStore(), Options{})

	// Without an explicit ask the 0.5 candidate is dropped and only the
	// keyword fallback can surface the service.
	plain := c.Recommend(context.Background(), "user-1", seekingJob, "hello")
	for _, r := range plain {
		if r.Tier != match.TierKeyword {
			t.Errorf("without explicit request tier = %s, want keyword fallback", r.Tier)
		}
	}

	// An explicit ask retries the criteria candidates at the lower floor
	// before any fallback runs.
	results := c.Recommend(context.Background(), "user-2", seekingJob, "I need help with this")
	if len(results) != 1 {
		t.Fatalf("explicit request should retry at the lower floor, got %v", results)
	}
	if results[0].Tier != match.TierCriteria {
		t.Errorf("tier = %s, want criteria via lowered threshold", results[0].Tier)
	}
	if results[0].Score != 0.5 {
		t.Errorf("score = %v, want 0.5", results[0].Score)
	}
}

func TestRecommend_ZeroVectorProviderFallsBackToKeyword(t *testing.T) {
	social := registry.Service{
		ID: "meetups", Name: "Community Meetups", URL: "u",
		Description: "Social gatherings for building friendships.",
		Tags:        []string{"social"},
	}
	reg := registry.New([]registry.Service{jobService, social})

	// Provider always returns the zero vector: the semantic tier must report
	// unavailable, never a score.
	p := &mock.Provider{
		EmbedFunc:       func(string) ([]float32, error) { return make([]float32, 3), nil },
		DimensionsValue: 3,
	}
	emb, err := embedder.New(p, embedder.Config{RetryBackoff: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("embedder.New: %v", err)
	}
	semantic := match.NewSemanticMatcher(emb, reg, nil)
	_ = semantic.Warm(context.Background())

	tracker := cooldown.NewTracker(newCountingStore(), nil)
	c := New(reg, semantic, tracker, nil, Options{EnableSemanticTier: true})

	// Empty profile: criteria tier has nothing, semantic is unavailable.
	results := c.Recommend(context.Background(), "user-1", profile.NeedsProfile{}, "I could use a job and employment support")

	if len(results) == 0 {
		t.Fatal("keyword fallback should produce results")
	}
	for _, r := range results {
		if r.Tier != match.TierKeyword {
			t.Errorf("tier = %s, want keyword", r.Tier)
		}
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score = %v outside [0,1]", r.Score)
		}
	}
}

func TestRecommend_NeverReturnsNilAndNeverPanics(t *testing.T) {
	reg := registry.New([]registry.Service{jobService})
	c := newTestCoordinator(reg, newCountingStore(), Options{})

	results := c.Recommend(context.Background(), "user-1", nil, "")
	if len(results) != 0 {
		t.Errorf("unmatched request should yield an empty list, got %v", results)
	}
}

func TestRecommend_ResultCacheSkipsRescoring(t *testing.T) {
	reg := registry.New([]registry.Service{jobService})
	c := newTestCoordinator(reg, newCountingStore(), Options{ResultCacheTTL: time.Minute})

	first := c.Recommend(context.Background(), "user-1", seekingJob, "")
	if len(first) != 1 {
		t.Fatalf("first call: got %d results", len(first))
	}

	// Second identical call is served from the candidate cache but the
	// cooldown filter still applies: the service was just recorded.
	second := c.Recommend(context.Background(), "user-1", seekingJob, "")
	if len(second) != 0 {
		t.Errorf("second call should be cooldown-filtered, got %v", second)
	}
}
