// Package registry holds the static catalogue of external support services
// that the recommendation engine chooses from.
//
// The registry is loaded once at process start from a YAML file and is
// immutable afterwards. Reloading requires a restart.
package registry

import (
	"slices"
	"strings"
)

// DefaultCooldownDays is applied when a service entry does not declare its own
// cooldown window.
const DefaultCooldownDays = 7

// Service is one entry in the support-service catalogue.
//
// Criteria maps a needs category (e.g. "employment") to the boolean indicators
// a user profile must have set for a deterministic match (e.g.
// "seeking_job: true"). Only indicators required true participate in criteria
// scoring.
type Service struct {
	// ID uniquely identifies the service across the registry.
	ID string `yaml:"id"`

	// Name is the human-readable service name shown to the user.
	Name string `yaml:"name"`

	// URL points at the service's public page or intake form.
	URL string `yaml:"url"`

	// Description is free text used by the semantic and keyword tiers.
	Description string `yaml:"description"`

	// Criteria maps category → indicator → required value.
	Criteria map[string]map[string]bool `yaml:"criteria"`

	// Tags label the service's domains (e.g. "employment", "mental_health").
	Tags []string `yaml:"tags"`

	// CooldownDays is the minimum number of days before this service may be
	// recommended again to the same user. Zero means DefaultCooldownDays.
	CooldownDays int `yaml:"cooldown_days"`
}

// EmbedText returns the text representation of the service that the semantic
// tier embeds: name, description and tags joined into one passage.
func (s Service) EmbedText() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if s.Description != "" {
		b.WriteString(". ")
		b.WriteString(s.Description)
	}
	if len(s.Tags) > 0 {
		b.WriteString(". ")
		b.WriteString(strings.Join(s.Tags, ", "))
	}
	return b.String()
}

// HasTag reports whether the service carries tag (case-insensitive).
func (s Service) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Registry is the immutable, ordered list of services loaded at startup.
// It is safe for concurrent use: all methods are read-only.
type Registry struct {
	services []Service
	byID     map[string]int
}

// New builds a Registry from the given services. Entries are assumed to be
// already validated (see Load); New applies the cooldown default and indexes
// by ID.
func New(services []Service) *Registry {
	r := &Registry{
		services: slices.Clone(services),
		byID:     make(map[string]int, len(services)),
	}
	for i := range r.services {
		if r.services[i].CooldownDays <= 0 {
			r.services[i].CooldownDays = DefaultCooldownDays
		}
		r.byID[r.services[i].ID] = i
	}
	return r
}

// Services returns the registry entries in file order. The returned slice is a
// copy; mutating it does not affect the registry.
func (r *Registry) Services() []Service {
	return slices.Clone(r.services)
}

// Get returns the service with the given ID.
// The second return value reports whether it exists.
func (r *Registry) Get(id string) (Service, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Service{}, false
	}
	return r.services[i], true
}

// Len returns the number of services in the registry.
func (r *Registry) Len() int {
	return len(r.services)
}
