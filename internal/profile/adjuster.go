package profile

// Indicator classification for the emotional-context adjuster.
//
// Categories listed here decide whether an active indicator counts as
// emotional or practical. Categories in neither set fall back to the
// per-indicator name lists below, and anything still unclassified counts as
// practical — under-dampening is safer than suppressing a transactional match
// the user actually asked for.
var (
	emotionalCategories = map[string]bool{
		"mental_health":       true,
		"emotional_wellbeing": true,
		"social":              true,
		"relationships":       true,
	}

	practicalCategories = map[string]bool{
		"employment":   true,
		"education":    true,
		"daily_living": true,
		"housing":      true,
		"financial":    true,
		"legal":        true,
	}

	emotionalIndicators = map[string]bool{
		"depression":            true,
		"anxiety":               true,
		"isolation":             true,
		"loneliness":            true,
		"seeking_relationships": true,
		"grief":                 true,
		"stress":                true,
	}
)

// MinAdjustFactor is the lower bound of the dampening factor: emotional
// dominance down-weights transactional matches but never zeroes them out.
const MinAdjustFactor = 0.6

// dampenPerRatio is how much the factor drops per unit of the
// emotional-to-practical ratio.
const dampenPerRatio = 0.08

// maxRatio caps the ratio so a purely emotional profile bottoms out at
// MinAdjustFactor instead of collapsing the factor below it.
const maxRatio = 5.0

// Counts tallies the active emotional and practical indicators in a profile.
type Counts struct {
	Emotional int
	Practical int
}

// Classify counts p's active indicators into emotional and practical buckets.
func Classify(p NeedsProfile) Counts {
	var c Counts
	for cat, indicators := range p {
		for name, v := range indicators {
			if !v {
				continue
			}
			switch {
			case emotionalCategories[cat]:
				c.Emotional++
			case practicalCategories[cat]:
				c.Practical++
			case emotionalIndicators[name]:
				c.Emotional++
			default:
				c.Practical++
			}
		}
	}
	return c
}

// Adjust computes the confidence dampening factor for p.
//
// When emotional indicators dominate (more than twice the practical count),
// the factor drops proportionally to the emotional-to-practical ratio, floored
// at MinAdjustFactor. Otherwise the factor is 1.0 and scores pass through
// unchanged. The result is always in [MinAdjustFactor, 1.0].
//
// The intent: a user primarily expressing emotional distress should be routed
// toward crisis and emotional-support services, so confidently transactional
// matches (job boards, tuition aid) are down-weighted rather than suppressed.
func Adjust(p NeedsProfile) float64 {
	c := Classify(p)
	if c.Emotional == 0 || c.Emotional <= 2*c.Practical {
		return 1.0
	}

	practical := c.Practical
	if practical < 1 {
		practical = 1
	}
	ratio := float64(c.Emotional) / float64(practical)
	if ratio > maxRatio {
		ratio = maxRatio
	}

	factor := 1.0 - ratio*dampenPerRatio
	if factor < MinAdjustFactor {
		factor = MinAdjustFactor
	}
	return factor
}
