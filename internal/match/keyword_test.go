package match

import (
	"slices"
	"testing"

	"github.com/kaede-app/signpost/internal/registry"
)

func TestTerms(t *testing.T) {
	got := Terms("I need a JOB, and some help!")
	want := []string{"need", "job", "and", "some", "help"}
	if !slices.Equal(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
}

func TestKeywordScore(t *testing.T) {
	jobSvc := registry.Service{
		ID: "job-center", Name: "Regional Job Center", URL: "u",
		Description: "Employment counselling and job placement.",
		Criteria: map[string]map[string]bool{
			"employment": {"seeking_job": true},
		},
		Tags: []string{"employment", "counselling"},
	}

	t.Run("employment terms trigger domain bonus", func(t *testing.T) {
		withBonus := KeywordScore(jobSvc, []string{"job"})
		noTagSvc := jobSvc
		noTagSvc.Tags = []string{"counselling"}
		without := KeywordScore(noTagSvc, []string{"job"})
		if withBonus <= without {
			t.Errorf("employment-tagged score %v not greater than untagged %v", withBonus, without)
		}
	})

	t.Run("many hits clamp to one", func(t *testing.T) {
		got := KeywordScore(jobSvc, []string{"job", "employment", "counselling", "placement", "center"})
		if got != 1.0 {
			t.Errorf("score = %v, want clamp at 1.0", got)
		}
	})

	t.Run("unrelated terms stay below floor", func(t *testing.T) {
		got := KeywordScore(jobSvc, []string{"gardening", "astronomy"})
		if got >= KeywordFloor {
			t.Errorf("score = %v, want < floor %v", got, KeywordFloor)
		}
	})

	t.Run("criteria text participates", func(t *testing.T) {
		svc := registry.Service{
			ID: "x", Name: "Plain Name", URL: "u",
			Criteria: map[string]map[string]bool{
				"daily_living": {"needs_childcare": true},
			},
		}
		if got := KeywordScore(svc, []string{"childcare"}); got <= 0 {
			t.Errorf("score = %v, want > 0 via criteria text", got)
		}
	})

	t.Run("near-miss spelling hits fuzzy tag match", func(t *testing.T) {
		if got := KeywordScore(jobSvc, []string{"employmant"}); got <= 0 {
			t.Errorf("score = %v, want > 0 via fuzzy tag match", got)
		}
	})

	t.Run("no terms scores zero", func(t *testing.T) {
		if got := KeywordScore(jobSvc, nil); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
}

func TestKeywordScore_AlwaysInRange(t *testing.T) {
	svcs := []registry.Service{
		{ID: "a", Name: "A", URL: "u", Tags: []string{"employment"}},
		{ID: "b", Name: "Big Service With Many Words", URL: "u",
			Description: "job work career help support advice", Tags: []string{"employment", "social"}},
	}
	terms := Terms("job work career help support advice employment social")
	for _, svc := range svcs {
		got := KeywordScore(svc, terms)
		if got < 0 || got > 1 {
			t.Errorf("KeywordScore(%s) = %v outside [0,1]", svc.ID, got)
		}
	}
}
