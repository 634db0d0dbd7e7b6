package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/kaede-app/signpost/internal/embedder"
	"github.com/kaede-app/signpost/internal/registry"
)

// ErrSemanticUnavailable is returned by [SemanticMatcher.Scores] when the
// embedding provider could not produce a usable vector for the query. The
// caller is expected to fall through to the keyword tier.
var ErrSemanticUnavailable = errors.New("semantic tier unavailable")

// VectorStore persists service description embeddings across restarts so a
// process does not re-embed the whole registry on every boot. Vectors are
// keyed by service ID and model identifier — a model change invalidates the
// stored set.
type VectorStore interface {
	// LoadServiceVectors returns all stored vectors for the given model.
	LoadServiceVectors(ctx context.Context, modelID string) (map[string][]float32, error)

	// SaveServiceVector stores or replaces the vector for one service.
	SaveServiceVector(ctx context.Context, serviceID, modelID string, vec []float32) error
}

// SemanticMatcher scores services by cosine similarity between the embedded
// needs text and each service's embedded description. Service vectors are
// computed once (or loaded from a [VectorStore]) and held in memory.
type SemanticMatcher struct {
	emb   *embedder.Embedder
	reg   *registry.Registry
	store VectorStore // optional

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewSemanticMatcher creates a matcher over reg. store may be nil, in which
// case service vectors live only in memory for the process lifetime.
func NewSemanticMatcher(emb *embedder.Embedder, reg *registry.Registry, store VectorStore) *SemanticMatcher {
	return &SemanticMatcher{
		emb:     emb,
		reg:     reg,
		store:   store,
		vectors: make(map[string][]float32),
	}
}

// Warm ensures every registry service has an embedding vector, loading
// persisted vectors first and embedding only the remainder. Services whose
// embedding fails are left out of the vector set — they simply do not
// participate in the semantic tier until a later Warm succeeds.
func (m *SemanticMatcher) Warm(ctx context.Context) error {
	loaded := map[string][]float32{}
	if m.store != nil {
		var err error
		loaded, err = m.store.LoadServiceVectors(ctx, m.emb.ModelID())
		if err != nil {
			slog.Warn("loading persisted service vectors failed, re-embedding", "err", err)
			loaded = map[string][]float32{}
		}
	}

	var missing []registry.Service
	m.mu.Lock()
	for _, svc := range m.reg.Services() {
		if vec, ok := loaded[svc.ID]; ok && len(vec) == m.emb.Dimensions() {
			m.vectors[svc.ID] = vec
			continue
		}
		if _, ok := m.vectors[svc.ID]; !ok {
			missing = append(missing, svc)
		}
	}
	m.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, svc := range missing {
		texts[i] = svc.EmbedText()
	}
	vecs := m.emb.EmbedBatch(ctx, texts)

	embedded := 0
	m.mu.Lock()
	for i, svc := range missing {
		if embedder.IsSentinel(vecs[i]) {
			continue
		}
		m.vectors[svc.ID] = vecs[i]
		embedded++
		if m.store != nil {
			if err := m.store.SaveServiceVector(ctx, svc.ID, m.emb.ModelID(), vecs[i]); err != nil {
				slog.Warn("persisting service vector failed", "service", svc.ID, "err", err)
			}
		}
	}
	m.mu.Unlock()

	if embedded < len(missing) {
		return fmt.Errorf("semantic warm-up: embedded %d of %d missing services", embedded, len(missing))
	}
	return nil
}

// Ready reports whether at least one service vector is available.
func (m *SemanticMatcher) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors) > 0
}

// Scores embeds needsText and returns a similarity score per service ID.
// Cosine similarity is remapped from [-1,1] to [0,1] so scores compose with
// the other tiers. Returns [ErrSemanticUnavailable] when the query embedding
// comes back as the sentinel or no service vectors exist.
func (m *SemanticMatcher) Scores(ctx context.Context, needsText string) (map[string]float64, error) {
	if !m.emb.Available() {
		return nil, ErrSemanticUnavailable
	}

	query := m.emb.Embed(ctx, needsText)
	if embedder.IsSentinel(query) {
		return nil, ErrSemanticUnavailable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.vectors) == 0 {
		return nil, ErrSemanticUnavailable
	}

	scores := make(map[string]float64, len(m.vectors))
	for id, vec := range m.vectors {
		sim := cosineSimilarity(query, vec)
		scores[id] = (sim + 1) / 2
	}
	return scores, nil
}

// RemappedSimilarity returns the cosine similarity of a and b remapped from
// [-1,1] to [0,1], the normalization every tier score uses.
func RemappedSimilarity(a, b []float32) float64 {
	return (cosineSimilarity(a, b) + 1) / 2
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero magnitude or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
