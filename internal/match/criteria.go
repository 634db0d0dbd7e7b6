package match

import (
	"github.com/kaede-app/signpost/internal/profile"
	"github.com/kaede-app/signpost/internal/registry"
)

// CriteriaScore computes the deterministic tier-one score for svc against
// needs: the fraction of the service's eligibility criteria that the profile
// satisfies. Only categories present on both sides participate; within such a
// category, every indicator the service requires true counts toward the
// denominator, and those the profile also has true count toward the
// numerator.
//
// A service with no criteria (or none in categories the profile mentions)
// scores 0 here — it can still surface through the semantic or keyword tiers,
// but it never matches "for free" on an empty criteria set.
func CriteriaScore(svc registry.Service, needs profile.NeedsProfile) float64 {
	total := 0
	matched := 0
	for category, indicators := range svc.Criteria {
		profileIndicators, ok := needs[category]
		if !ok {
			continue
		}
		for indicator, required := range indicators {
			if !required {
				continue
			}
			total++
			if profileIndicators[indicator] {
				matched++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}
