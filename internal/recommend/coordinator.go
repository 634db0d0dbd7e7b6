// Package recommend orchestrates the tiered matching pipeline: deterministic
// criteria scoring combined with semantic similarity, a cooldown filter, an
// explicit-request retry at a lowered threshold, and a keyword fallback when
// everything else comes up empty.
//
// The contract of [Coordinator.Recommend] is "always returns a list, possibly
// empty, never errors for downstream-service reasons": a broken embedding
// provider, history backend, or even a panicking tier degrades the result
// instead of failing the call.
package recommend

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/kaede-app/signpost/internal/cooldown"
	"github.com/kaede-app/signpost/internal/match"
	"github.com/kaede-app/signpost/internal/observe"
	"github.com/kaede-app/signpost/internal/profile"
	"github.com/kaede-app/signpost/internal/registry"
)

// Pipeline defaults. All of them are empirically tuned rather than derived;
// treat them as starting points and override via [Options].
const (
	// DefaultConfidenceThreshold is the minimum combined score for a
	// candidate to survive the primary pass.
	DefaultConfidenceThreshold = 0.65

	// DefaultRetryFloor is the lowered threshold used for the single retry
	// pass when the user explicitly asked for help.
	DefaultRetryFloor = 0.40

	// DefaultMaxResults caps the returned list.
	DefaultMaxResults = 3
)

// Options tunes a [Coordinator]. Zero values select the defaults above.
type Options struct {
	ConfidenceThreshold float64
	RetryFloor          float64
	MaxResults          int

	// EnableSemanticTier gates the embedding-based tier. Criteria and keyword
	// tiers are always on.
	EnableSemanticTier bool

	ResultCacheSize int
	ResultCacheTTL  time.Duration

	// Detector classifies messages as explicit help requests. Nil selects
	// [DefaultExplicitRequestDetector].
	Detector ExplicitRequestDetector
}

// Coordinator runs the recommendation pipeline. All collaborators are
// injected at construction; the semantic matcher and metrics may be nil.
// Safe for concurrent use.
type Coordinator struct {
	reg      *registry.Registry
	semantic *match.SemanticMatcher
	tracker  *cooldown.Tracker
	metrics  *observe.Metrics
	cache    *resultCache
	detector ExplicitRequestDetector

	threshold  float64
	retryFloor float64
	maxResults int
	semanticOn bool
}

// New creates a Coordinator. semantic may be nil (or Options.EnableSemanticTier
// false) to run without the embedding tier; metrics may be nil.
func New(reg *registry.Registry, semantic *match.SemanticMatcher, tracker *cooldown.Tracker, metrics *observe.Metrics, opts Options) *Coordinator {
	if opts.ConfidenceThreshold <= 0 || opts.ConfidenceThreshold > 1 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.RetryFloor <= 0 || opts.RetryFloor > 1 {
		opts.RetryFloor = DefaultRetryFloor
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Detector == nil {
		opts.Detector = DefaultExplicitRequestDetector
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Coordinator{
		reg:        reg,
		semantic:   semantic,
		tracker:    tracker,
		metrics:    metrics,
		cache:      newResultCache(opts.ResultCacheSize, opts.ResultCacheTTL),
		detector:   opts.Detector,
		threshold:  opts.ConfidenceThreshold,
		retryFloor: opts.RetryFloor,
		maxResults: opts.MaxResults,
		semanticOn: opts.EnableSemanticTier && semantic != nil,
	}
}

// Recommend returns up to MaxResults services matching the user's needs,
// sorted by descending confidence. It never returns an error: every
// downstream failure degrades to a smaller (possibly empty) result.
//
// Each returned service is recorded as shown exactly once per call,
// regardless of how many internal passes produced it.
func (c *Coordinator) Recommend(ctx context.Context, userID string, needs profile.NeedsProfile, rawMessage string) []match.Result {
	start := time.Now()
	c.metrics.ActiveRequests.Add(ctx, 1)
	defer func() {
		c.metrics.ActiveRequests.Add(ctx, -1)
		c.metrics.RecommendationDuration.Record(ctx, time.Since(start).Seconds())
	}()

	needsText := needs.FlattenText()

	// Score once, filter per call. Cached candidate sets are pre-cooldown and
	// pre-threshold so the per-user, per-call stages below always re-run.
	candidates, cached := c.cache.get(userID, needsText)
	if !cached {
		candidates = c.scoreCandidates(ctx, needs, needsText)
		c.cache.put(userID, needsText, candidates)
	}

	results := c.selectAboveThreshold(ctx, userID, candidates, c.threshold)

	// One retry at the lowered floor, and only for an explicit ask. The floor
	// travels as a parameter — thresholds are never mutated on the
	// Coordinator itself.
	if len(results) == 0 && c.detector(rawMessage) {
		results = c.selectAboveThreshold(ctx, userID, candidates, c.retryFloor)
	}

	if len(results) == 0 {
		results = c.keywordFallback(ctx, userID, needsText, rawMessage)
	}

	slices.SortStableFunc(results, func(a, b match.Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	for _, r := range results {
		c.tracker.Record(ctx, userID, r.Service.ID)
		c.metrics.RecordTierMatch(ctx, string(r.Tier))
	}

	status := "ok"
	if len(results) == 0 {
		status = "empty"
	}
	c.metrics.RecordRequest(ctx, status)

	slog.Debug("recommendation pipeline finished",
		"user", userID, "results", len(results), "cached_candidates", cached,
		"elapsed", time.Since(start))
	return results
}

// scoreCandidates runs the criteria and semantic tiers over the whole
// registry and combines them via max. The returned set is unfiltered: every
// service appears, including zero-scored ones.
func (c *Coordinator) scoreCandidates(ctx context.Context, needs profile.NeedsProfile, needsText string) []match.Result {
	services := c.reg.Services()
	results := make([]match.Result, 0, len(services))

	adjust := 1.0
	c.runTier("criteria", func() {
		adjust = profile.Adjust(needs)
		for _, svc := range services {
			score := match.CriteriaScore(svc, needs) * adjust
			results = append(results, match.Result{Service: svc, Score: score, Tier: match.TierCriteria})
		}
	})

	if c.semanticOn && needsText != "" {
		c.runTier("semantic", func() {
			scores, err := c.semantic.Scores(ctx, needsText)
			if err != nil {
				if !errors.Is(err, match.ErrSemanticUnavailable) {
					slog.Warn("semantic tier failed", "err", err)
				}
				return
			}
			// Either tier alone can qualify a service; take the max.
			for i := range results {
				if s, ok := scores[results[i].Service.ID]; ok && s > results[i].Score {
					results[i].Score = s
					results[i].Tier = match.TierSemantic
				}
			}
		})
	}

	return results
}

// selectAboveThreshold applies the confidence threshold and the per-user
// cooldown filter. threshold is an explicit parameter so that the lowered
// retry pass shares this exact code path.
func (c *Coordinator) selectAboveThreshold(ctx context.Context, userID string, candidates []match.Result, threshold float64) []match.Result {
	var out []match.Result
	for _, cand := range candidates {
		if cand.Score < threshold {
			continue
		}
		if c.tracker.IsOnCooldown(ctx, userID, cand.Service.ID, cand.Service.CooldownDays) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// keywordFallback is the last-resort tier: pure text overlap with its own
// floor. It still honours the cooldown filter.
func (c *Coordinator) keywordFallback(ctx context.Context, userID, needsText, rawMessage string) []match.Result {
	var out []match.Result
	c.runTier("keyword", func() {
		terms := match.Terms(needsText + " " + rawMessage)
		for _, svc := range c.reg.Services() {
			score := match.KeywordScore(svc, terms)
			if score < match.KeywordFloor {
				continue
			}
			if c.tracker.IsOnCooldown(ctx, userID, svc.ID, svc.CooldownDays) {
				continue
			}
			out = append(out, match.Result{Service: svc, Score: score, Tier: match.TierKeyword})
		}
	})
	return out
}

// runTier executes one scoring tier with a panic boundary. A programming
// error inside a tier skips that tier, never the whole call.
func (c *Coordinator) runTier(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("matching tier panicked, skipping", "tier", name, "panic", r)
		}
	}()
	fn()
}
