package recommend

import (
	"context"
	"strings"
	"sync"

	"github.com/kaede-app/signpost/internal/embedder"
	"github.com/kaede-app/signpost/internal/match"
)

// ExplicitRequestDetector classifies a raw user message as an explicit ask
// for help. The host application can inject its own intent classifier; when
// absent, [DefaultExplicitRequestDetector] is used. The detector is resolved
// once at construction, never probed per call.
type ExplicitRequestDetector func(rawMessage string) bool

// explicitRequestIndicators are the stock phrases the default detector looks
// for. Substring containment against the lower-cased message.
var explicitRequestIndicators = []string{
	"help",
	"problem",
	"issue",
	"stuck",
	"trouble",
	"wrong",
	"not working",
	"failed",
	"advice",
	"support",
	"where can i",
	"who can i",
	"what should i do",
}

// DefaultExplicitRequestDetector reports whether the message contains any of
// the stock help-seeking phrases.
func DefaultExplicitRequestDetector(rawMessage string) bool {
	msg := strings.ToLower(rawMessage)
	for _, indicator := range explicitRequestIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// opennessSeedPhrases describe messages from users who are receptive to a
// service suggestion. Their embedding centroid is the reference point for the
// semantic half of the pre-filter.
var opennessSeedPhrases = []string{
	"I need help finding a job",
	"I don't know where to turn for support",
	"is there somewhere I can get advice about this",
	"I'm struggling and could use some guidance",
	"can you point me to a service that can help",
	"I want to talk to someone about my situation",
}

// opennessThreshold is the minimum remapped similarity between a message and
// the openness centroid for the pre-filter to fire semantically.
const opennessThreshold = 0.75

// Prefilter answers "is it even worth running the full pipeline for this
// message?" cheaply: explicit-request pattern detection first, then a single
// embedding call compared against a precomputed openness centroid.
type Prefilter struct {
	emb      *embedder.Embedder
	detector ExplicitRequestDetector

	centroidOnce sync.Once
	centroid     []float32
}

// NewPrefilter creates a Prefilter. detector may be nil to use
// [DefaultExplicitRequestDetector]; emb may be nil to disable the semantic
// half entirely.
func NewPrefilter(emb *embedder.Embedder, detector ExplicitRequestDetector) *Prefilter {
	if detector == nil {
		detector = DefaultExplicitRequestDetector
	}
	return &Prefilter{emb: emb, detector: detector}
}

// ShouldRecommend reports whether rawMessage looks like an opening for a
// service recommendation. The pattern check runs first because it is free;
// the embedding comparison only runs when patterns miss and the provider is
// available.
func (p *Prefilter) ShouldRecommend(ctx context.Context, rawMessage string) bool {
	if strings.TrimSpace(rawMessage) == "" {
		return false
	}
	if p.detector(rawMessage) {
		return true
	}
	if p.emb == nil || !p.emb.Available() {
		return false
	}

	centroid := p.opennessCentroid(ctx)
	if embedder.IsSentinel(centroid) {
		return false
	}
	vec := p.emb.Embed(ctx, rawMessage)
	if embedder.IsSentinel(vec) {
		return false
	}
	return match.RemappedSimilarity(vec, centroid) >= opennessThreshold
}

// opennessCentroid computes (once) the mean vector of the seed phrases.
// A failed computation leaves the sentinel in place; the next process restart
// retries.
func (p *Prefilter) opennessCentroid(ctx context.Context) []float32 {
	p.centroidOnce.Do(func() {
		vecs := p.emb.EmbedBatch(ctx, append([]string(nil), opennessSeedPhrases...))
		dims := p.emb.Dimensions()
		centroid := make([]float32, dims)
		n := 0
		for _, v := range vecs {
			if embedder.IsSentinel(v) || len(v) != dims {
				continue
			}
			for i := range v {
				centroid[i] += v[i]
			}
			n++
		}
		if n == 0 {
			p.centroid = p.emb.Sentinel()
			return
		}
		for i := range centroid {
			centroid[i] /= float32(n)
		}
		p.centroid = centroid
	})
	return p.centroid
}
