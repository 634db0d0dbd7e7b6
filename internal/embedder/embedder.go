// Package embedder wraps an embeddings.Provider with the operational behaviour
// the matching pipeline depends on: request caching, single-flight
// deduplication, bounded retry with backoff, batch chunking with rate pacing,
// and graceful degradation to a sentinel zero vector.
//
// The zero vector is the package's failure signal: [Embedder.Embed] never
// returns an error, it returns a vector for which [IsSentinel] is true.
// Downstream tiers must check the sentinel before computing similarities —
// a zero vector fed into cosine similarity would silently produce a wrong
// mid-range score.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/kaede-app/signpost/internal/observe"
	"github.com/kaede-app/signpost/internal/resilience"
	"github.com/kaede-app/signpost/pkg/embeddings"
)

const (
	// DefaultCacheSize bounds the embedding LRU cache.
	DefaultCacheSize = 100

	// DefaultMaxTextLen is the truncation limit applied to input text before
	// it is sent to the provider.
	DefaultMaxTextLen = 8000

	// DefaultCallTimeout bounds a single provider round-trip.
	DefaultCallTimeout = 10 * time.Second

	// DefaultRetryBackoff is the fixed pause before the single retry of a
	// transient provider failure.
	DefaultRetryBackoff = 5 * time.Second

	// DefaultBatchSize is the number of texts sent per provider batch call.
	DefaultBatchSize = 10

	// cacheKeyPrefixLen is how much of the normalized input participates in
	// the cache key. Long inputs that share a prefix this size are treated as
	// identical for caching purposes.
	cacheKeyPrefixLen = 512
)

// Config holds tuning knobs for an [Embedder]. Zero values select defaults.
type Config struct {
	CacheSize    int
	MaxTextLen   int
	CallTimeout  time.Duration
	RetryBackoff time.Duration

	// BatchSize is the chunk size for EmbedBatch provider calls.
	BatchSize int

	// BatchRate paces chunked batch calls to respect provider rate limits.
	// Zero means one chunk per second.
	BatchRate rate.Limit

	// Breaker configures the circuit breaker guarding provider calls. The
	// Name field is overridden.
	Breaker resilience.CircuitBreakerConfig
}

// Embedder is the caching, resilient front to an embeddings provider.
// It is safe for concurrent use.
type Embedder struct {
	provider embeddings.Provider
	cache    *lru.Cache[string, []float32]
	group    singleflight.Group
	breaker  *resilience.CircuitBreaker
	limiter  *rate.Limiter
	metrics  *observe.Metrics

	maxTextLen   int
	callTimeout  time.Duration
	retryBackoff time.Duration
	batchSize    int
}

// New creates an [Embedder] around provider. metrics may be nil, in which case
// the package-level default instruments are used.
func New(provider embeddings.Provider, cfg Config, metrics *observe.Metrics) (*Embedder, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = DefaultMaxTextLen
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchRate <= 0 {
		cfg.BatchRate = rate.Limit(1)
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	cbCfg := cfg.Breaker
	cbCfg.Name = "embeddings"

	return &Embedder{
		provider:     provider,
		cache:        cache,
		breaker:      resilience.NewCircuitBreaker(cbCfg),
		limiter:      rate.NewLimiter(cfg.BatchRate, 1),
		metrics:      metrics,
		maxTextLen:   cfg.MaxTextLen,
		callTimeout:  cfg.CallTimeout,
		retryBackoff: cfg.RetryBackoff,
		batchSize:    cfg.BatchSize,
	}, nil
}

// Dimensions returns the underlying provider's vector length.
func (e *Embedder) Dimensions() int {
	return e.provider.Dimensions()
}

// ModelID returns the underlying provider's model identifier.
func (e *Embedder) ModelID() string {
	return e.provider.ModelID()
}

// Available reports whether the provider is currently worth calling. False
// means the circuit breaker is open and every call would come back as the
// sentinel; the coordinator uses this to skip the semantic tier outright.
func (e *Embedder) Available() bool {
	return e.breaker.Allow()
}

// Sentinel returns the zero vector used to signal "embedding unavailable".
func (e *Embedder) Sentinel() []float32 {
	return make([]float32, e.provider.Dimensions())
}

// IsSentinel reports whether vec is the "embedding unavailable" signal: nil,
// empty, or exactly zero in every component.
func IsSentinel(vec []float32) bool {
	if len(vec) == 0 {
		return true
	}
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// Embed returns the embedding vector for text. It never returns an error:
// after one retry with backoff, any remaining failure yields the sentinel
// zero vector.
//
// Identical texts within the cache window return the same cached vector and
// issue at most one provider call, including under concurrency (single-flight
// collapses simultaneous misses for the same key). The returned slice is
// shared with the cache and must be treated as read-only.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	text = truncate(text, e.maxTextLen)
	key := cacheKey(text)

	if vec, ok := e.cache.Get(key); ok {
		e.metrics.RecordCacheEvent(ctx, "hit")
		return vec
	}
	e.metrics.RecordCacheEvent(ctx, "miss")

	v, err, _ := e.group.Do(key, func() (any, error) {
		vec, err := e.callWithRetry(ctx, text)
		if err != nil {
			return nil, err
		}
		// A zero vector slipping through a nominally successful call is still
		// the unavailability signal; caching it would pin the failure.
		if !IsSentinel(vec) {
			e.cache.Add(key, vec)
		}
		return vec, nil
	})
	if err != nil {
		e.recordFailure(ctx, err)
		return e.Sentinel()
	}
	return v.([]float32)
}

// EmbedBatch returns one vector per input text, in order. Cached texts are
// served locally; the remainder is embedded in chunks of the configured batch
// size, paced by the rate limiter. A chunk that still fails after its single
// retry yields sentinel vectors for its texts — other chunks are unaffected.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	// Serve cache hits and collect misses.
	var missIdx []int
	for i, t := range texts {
		t = truncate(t, e.maxTextLen)
		texts[i] = t
		if vec, ok := e.cache.Get(cacheKey(t)); ok {
			e.metrics.RecordCacheEvent(ctx, "hit")
			out[i] = vec
			continue
		}
		e.metrics.RecordCacheEvent(ctx, "miss")
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missIdx); start += e.batchSize {
		end := min(start+e.batchSize, len(missIdx))
		chunk := missIdx[start:end]

		// Pace chunked calls so a large registry warm-up does not trip the
		// provider's rate limits.
		if err := e.limiter.Wait(ctx); err != nil {
			for _, i := range chunk {
				out[i] = e.Sentinel()
			}
			continue
		}

		chunkTexts := make([]string, len(chunk))
		for j, i := range chunk {
			chunkTexts[j] = texts[i]
		}

		vecs, err := e.callBatchWithRetry(ctx, chunkTexts)
		if err != nil {
			e.recordFailure(ctx, err)
			for _, i := range chunk {
				out[i] = e.Sentinel()
			}
			continue
		}
		for j, i := range chunk {
			out[i] = vecs[j]
			if !IsSentinel(vecs[j]) {
				e.cache.Add(cacheKey(texts[i]), vecs[j])
			}
		}
	}
	return out
}

// callWithRetry performs a single-text provider call through the circuit
// breaker, retrying exactly once after a fixed backoff on transient failures.
func (e *Embedder) callWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.breaker.Execute(func() error {
		var innerErr error
		vec, innerErr = e.callOnce(ctx, text)
		if innerErr != nil && e.shouldRetry(ctx, innerErr) {
			vec, innerErr = e.callOnce(ctx, text)
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// callBatchWithRetry mirrors callWithRetry for batch calls.
func (e *Embedder) callBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := e.breaker.Execute(func() error {
		var innerErr error
		vecs, innerErr = e.callBatchOnce(ctx, texts)
		if innerErr != nil && e.shouldRetry(ctx, innerErr) {
			vecs, innerErr = e.callBatchOnce(ctx, texts)
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

// shouldRetry reports whether err is transient and, if so, waits out the
// retry backoff. Returns false when ctx expires first.
func (e *Embedder) shouldRetry(ctx context.Context, err error) bool {
	if !errors.Is(err, embeddings.ErrTransient) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(e.retryBackoff):
		return true
	}
}

func (e *Embedder) callOnce(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	vec, err := e.provider.Embed(ctx, text)
	e.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	return vec, err
}

func (e *Embedder) callBatchOnce(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	vecs, err := e.provider.EmbedBatch(ctx, texts)
	e.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	return vecs, err
}

func (e *Embedder) recordFailure(ctx context.Context, err error) {
	e.metrics.RecordProviderError(ctx, e.provider.ModelID(), "embeddings")
	if errors.Is(err, resilience.ErrCircuitOpen) {
		slog.Debug("embedding call skipped (circuit open)")
		return
	}
	slog.Warn("embedding failed, returning sentinel", "err", err)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// cacheKey derives the cache key for text: the text is lower-cased with
// whitespace collapsed, cut to a fixed prefix, and hashed. Keying on a
// normalized prefix keeps near-identical long inputs (trailing conversation
// noise) from fragmenting the cache.
func cacheKey(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if len(norm) > cacheKeyPrefixLen {
		norm = norm[:cacheKeyPrefixLen]
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
