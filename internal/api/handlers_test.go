package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kaede-app/signpost/internal/cooldown"
	"github.com/kaede-app/signpost/internal/recommend"
	"github.com/kaede-app/signpost/internal/registry"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	reg := registry.New([]registry.Service{
		{
			ID: "job-center", Name: "Job Center", URL: "https://example.org/jobs",
			Description: "Employment counselling.",
			Criteria: map[string]map[string]bool{
				"employment": {"seeking_job": true},
			},
			Tags: []string{"employment"},
		},
	})
	tracker := cooldown.NewTracker(cooldown.NewMemoryStore(), nil)
	coordinator := recommend.New(reg, nil, tracker, nil, recommend.Options{})
	prefilter := recommend.NewPrefilter(nil, nil)

	return New(":0", coordinator, prefilter, nil).httpSrv.Handler
}

func TestHandleRecommendations(t *testing.T) {
	h := newTestServer(t)

	body := `{
		"user_id": "user-1",
		"needs_profile": {"employment": {"seeking_job": true}},
		"message": "I need a job"
	}`
	req := httptest.NewRequest("POST", "/v1/recommendations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body)
	}

	var resp recommendationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recommendations) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(resp.Recommendations))
	}
	got := resp.Recommendations[0]
	if got.ServiceID != "job-center" {
		t.Errorf("service_id = %q, want job-center", got.ServiceID)
	}
	if got.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", got.Score)
	}
	if got.Tier != "criteria" {
		t.Errorf("tier = %q, want criteria", got.Tier)
	}
}

func TestHandleRecommendations_MissingUserID(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest("POST", "/v1/recommendations", strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRecommendations_MalformedBody(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest("POST", "/v1/recommendations", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleShouldRecommend(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		message string
		want    bool
	}{
		{"I need help finding work", true},
		{"nice weather today", false},
	}
	for _, tt := range tests {
		body := `{"user_id": "u", "message": "` + tt.message + `"}`
		req := httptest.NewRequest("POST", "/v1/should-recommend", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp shouldRecommendResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ShouldRecommend != tt.want {
			t.Errorf("should_recommend for %q = %v, want %v", tt.message, resp.ShouldRecommend, tt.want)
		}
	}
}

func TestHealthEndpointsRegistered(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusNotFound {
			t.Errorf("%s not registered", path)
		}
	}
}
