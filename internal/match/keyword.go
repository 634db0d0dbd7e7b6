package match

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/kaede-app/signpost/internal/registry"
)

// KeywordFloor is the minimum keyword score a service must reach to be
// retained as a fallback candidate.
const KeywordFloor = 0.25

// Per-hit bonus weights. These are additive: a service matching many terms
// across many fields accumulates confidence, clamped to 1.0 at the end.
const (
	nameHitBonus     = 0.40
	tagHitBonus      = 0.30
	descHitBonus     = 0.20
	criteriaHitBonus = 0.15
	fuzzyHitBonus    = 0.10
	domainBonus      = 0.30
)

// employmentTerms marks needs vocabulary that triggers the employment domain
// bonus for employment-tagged services.
var employmentTerms = map[string]bool{
	"job":        true,
	"work":       true,
	"employment": true,
	"career":     true,
	"hiring":     true,
	"unemployed": true,
	"income":     true,
	"salary":     true,
	"resume":     true,
	"interview":  true,
}

// Terms tokenizes free needs text into lower-cased keyword terms, dropping
// short noise tokens.
func Terms(needsText string) []string {
	fields := strings.FieldsFunc(strings.ToLower(needsText), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	terms := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// KeywordScore scores svc against needs terms using substring containment
// over the service's name, description, tags and criteria text, with small
// additive bonuses per hit and a domain bonus for employment matches. The
// result is clamped to [0,1].
//
// This is the degrade path for when the semantic tier is unavailable; it
// trades precision for never being empty-handed.
func KeywordScore(svc registry.Service, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}

	name := strings.ToLower(svc.Name)
	desc := strings.ToLower(svc.Description)
	criteria := criteriaText(svc)
	tags := make([]string, len(svc.Tags))
	for i, t := range svc.Tags {
		tags[i] = strings.ToLower(t)
	}

	var score float64
	employmentNeed := false
	for _, term := range terms {
		if employmentTerms[term] {
			employmentNeed = true
		}
		switch {
		case strings.Contains(name, term):
			score += nameHitBonus
		case tagHit(tags, term):
			score += tagHitBonus
		case strings.Contains(desc, term):
			score += descHitBonus
		case strings.Contains(criteria, term):
			score += criteriaHitBonus
		case fuzzyTagHit(tags, term):
			score += fuzzyHitBonus
		}
	}

	if employmentNeed && svc.HasTag("employment") {
		score += domainBonus
	}

	return min(score, 1.0)
}

func tagHit(tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

// fuzzyTagHit catches near-miss spellings ("hapiness", "employent") with an
// edit distance of 1 against whole tags.
func fuzzyTagHit(tags []string, term string) bool {
	for _, t := range tags {
		if matchr.DamerauLevenshtein(t, term) == 1 {
			return true
		}
	}
	return false
}

// criteriaText flattens a service's criteria map into searchable text, with
// underscores opened up so "seeking_job" matches the term "job".
func criteriaText(svc registry.Service) string {
	var b strings.Builder
	for category, indicators := range svc.Criteria {
		b.WriteString(strings.ReplaceAll(strings.ToLower(category), "_", " "))
		b.WriteByte(' ')
		for indicator := range indicators {
			b.WriteString(strings.ReplaceAll(strings.ToLower(indicator), "_", " "))
			b.WriteByte(' ')
		}
	}
	return b.String()
}
