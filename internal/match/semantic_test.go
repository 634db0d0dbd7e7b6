package match

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kaede-app/signpost/internal/embedder"
	"github.com/kaede-app/signpost/internal/registry"
	"github.com/kaede-app/signpost/pkg/embeddings/mock"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemappedSimilarity_Range(t *testing.T) {
	if got := RemappedSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors remap to %v, want 1", got)
	}
	if got := RemappedSimilarity([]float32{1, 0}, []float32{-1, 0}); math.Abs(got) > 1e-9 {
		t.Errorf("opposite vectors remap to %v, want 0", got)
	}
}

// axisProvider returns a fixed unit vector per known text so tests control
// similarity exactly.
func axisProvider(vectors map[string][]float32, dims int) *mock.Provider {
	return &mock.Provider{
		EmbedFunc: func(text string) ([]float32, error) {
			if v, ok := vectors[text]; ok {
				return v, nil
			}
			return make([]float32, dims), nil
		},
		DimensionsValue: dims,
		ModelIDValue:    "axis-test",
	}
}

func newTestEmbedder(t *testing.T, p *mock.Provider) *embedder.Embedder {
	t.Helper()
	emb, err := embedder.New(p, embedder.Config{}, nil)
	if err != nil {
		t.Fatalf("embedder.New: %v", err)
	}
	return emb
}

func TestSemanticMatcher_Scores(t *testing.T) {
	jobSvc := registry.Service{ID: "job", Name: "Job Center", URL: "u", Description: "employment help"}
	socialSvc := registry.Service{ID: "social", Name: "Meetups", URL: "u", Description: "community events"}
	reg := registry.New([]registry.Service{jobSvc, socialSvc})

	provider := axisProvider(map[string][]float32{
		jobSvc.EmbedText():    {1, 0, 0},
		socialSvc.EmbedText(): {0, 1, 0},
		"looking for work":    {1, 0, 0},
	}, 3)
	m := NewSemanticMatcher(newTestEmbedder(t, provider), reg, nil)

	if err := m.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if !m.Ready() {
		t.Fatal("matcher not ready after Warm")
	}

	scores, err := m.Scores(context.Background(), "looking for work")
	if err != nil {
		t.Fatalf("Scores: %v", err)
	}
	if math.Abs(scores["job"]-1.0) > 1e-6 {
		t.Errorf("job score = %v, want 1.0", scores["job"])
	}
	if math.Abs(scores["social"]-0.5) > 1e-6 {
		t.Errorf("social score = %v, want 0.5 (orthogonal remapped)", scores["social"])
	}
	for id, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("score[%s] = %v outside [0,1]", id, s)
		}
	}
}

func TestSemanticMatcher_SentinelQueryUnavailable(t *testing.T) {
	svc := registry.Service{ID: "a", Name: "A", URL: "u", Description: "desc"}
	reg := registry.New([]registry.Service{svc})

	// Service vector embeds fine, but every query comes back zero.
	provider := axisProvider(map[string][]float32{
		svc.EmbedText(): {1, 0, 0},
	}, 3)
	m := NewSemanticMatcher(newTestEmbedder(t, provider), reg, nil)
	if err := m.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	_, err := m.Scores(context.Background(), "anything else")
	if !errors.Is(err, ErrSemanticUnavailable) {
		t.Fatalf("err = %v, want ErrSemanticUnavailable", err)
	}
}

func TestSemanticMatcher_WarmSkipsSentinelVectors(t *testing.T) {
	good := registry.Service{ID: "good", Name: "Good", URL: "u", Description: "ok"}
	bad := registry.Service{ID: "bad", Name: "Bad", URL: "u", Description: "fails"}
	reg := registry.New([]registry.Service{good, bad})

	provider := axisProvider(map[string][]float32{
		good.EmbedText(): {1, 0, 0},
		// bad embeds to the zero vector.
	}, 3)
	m := NewSemanticMatcher(newTestEmbedder(t, provider), reg, nil)

	if err := m.Warm(context.Background()); err == nil {
		t.Fatal("Warm should report incompletely embedded registry")
	}
	if !m.Ready() {
		t.Fatal("matcher should still be ready with the successfully embedded service")
	}
}

// memVectorStore is an in-memory VectorStore for warm/persist tests.
type memVectorStore struct {
	saved map[string][]float32
}

func (s *memVectorStore) LoadServiceVectors(context.Context, string) (map[string][]float32, error) {
	return s.saved, nil
}

func (s *memVectorStore) SaveServiceVector(_ context.Context, serviceID, _ string, vec []float32) error {
	if s.saved == nil {
		s.saved = map[string][]float32{}
	}
	s.saved[serviceID] = vec
	return nil
}

func TestSemanticMatcher_WarmUsesPersistedVectors(t *testing.T) {
	svc := registry.Service{ID: "a", Name: "A", URL: "u", Description: "desc"}
	reg := registry.New([]registry.Service{svc})

	store := &memVectorStore{saved: map[string][]float32{"a": {0, 0, 1}}}
	provider := axisProvider(nil, 3)
	m := NewSemanticMatcher(newTestEmbedder(t, provider), reg, store)

	if err := m.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if got := provider.CallCount(); got != 0 {
		t.Errorf("provider called %d times, want 0 (vector was persisted)", got)
	}
}
