// Package match implements the three scoring tiers of the recommendation
// pipeline: deterministic criteria overlap, semantic embedding similarity,
// and keyword fallback. Each tier is a pure scoring function over the service
// registry; tier orchestration and result assembly live in
// internal/recommend.
package match

import "github.com/kaede-app/signpost/internal/registry"

// Tier identifies which scoring path produced a match.
type Tier string

const (
	// TierCriteria means the score came from deterministic criteria overlap.
	TierCriteria Tier = "criteria"

	// TierSemantic means the score came from embedding cosine similarity.
	TierSemantic Tier = "semantic"

	// TierKeyword means the score came from the keyword fallback path.
	TierKeyword Tier = "keyword"
)

// Result is a single scored service.
type Result struct {
	Service registry.Service `json:"service"`

	// Score is the confidence in [0,1] that the service fits the user's
	// needs.
	Score float64 `json:"score"`

	// Tier records which scoring path produced Score.
	Tier Tier `json:"tier"`
}
