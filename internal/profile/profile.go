// Package profile defines the needs profile supplied by the upstream
// conversation analysis and the emotional-context confidence adjuster.
//
// A NeedsProfile is read-only input to the matching engine: nothing in this
// module mutates it.
package profile

import (
	"sort"
	"strings"
)

// NeedsProfile maps a needs category to boolean indicators, e.g.
// employment → seeking_job → true. It is produced upstream from the user's
// conversation and treated as immutable here.
type NeedsProfile map[string]map[string]bool

// Empty reports whether the profile has no indicator set to true.
func (p NeedsProfile) Empty() bool {
	for _, indicators := range p {
		for _, v := range indicators {
			if v {
				return false
			}
		}
	}
	return true
}

// FlattenText renders the profile's active indicators as a deterministic text
// line for the semantic tier, e.g. "employment seeking job; housing unstable
// housing". Underscores become spaces so indicator names read as phrases.
// Categories and indicators are sorted so identical profiles produce identical
// text, which keeps the embedding cache effective.
func (p NeedsProfile) FlattenText() string {
	cats := make([]string, 0, len(p))
	for cat := range p {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var b strings.Builder
	for _, cat := range cats {
		names := make([]string, 0, len(p[cat]))
		for name, v := range p[cat] {
			if v {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			continue
		}
		sort.Strings(names)
		for _, name := range names {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(strings.ReplaceAll(cat, "_", " "))
			b.WriteByte(' ')
			b.WriteString(strings.ReplaceAll(name, "_", " "))
		}
	}
	return b.String()
}
