package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kaede-app/signpost/internal/match"
	"github.com/kaede-app/signpost/internal/profile"
)

// recommendationsRequest is the body of POST /v1/recommendations.
type recommendationsRequest struct {
	UserID string `json:"user_id"`

	// NeedsProfile maps category → indicator → flag, produced upstream by
	// the conversation layer.
	NeedsProfile profile.NeedsProfile `json:"needs_profile"`

	// Message is the raw user message for explicit-request detection and
	// keyword fallback.
	Message string `json:"message"`
}

// recommendationsResponse is the body returned by POST /v1/recommendations.
type recommendationsResponse struct {
	Recommendations []recommendationDTO `json:"recommendations"`
}

// recommendationDTO flattens a match result for API consumers.
type recommendationDTO struct {
	ServiceID   string  `json:"service_id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
	Tier        string  `json:"tier"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	results := s.coordinator.Recommend(ctx, req.UserID, req.NeedsProfile, req.Message)

	resp := recommendationsResponse{Recommendations: make([]recommendationDTO, 0, len(results))}
	for _, res := range results {
		resp.Recommendations = append(resp.Recommendations, toDTO(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

// shouldRecommendRequest is the body of POST /v1/should-recommend.
type shouldRecommendRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// shouldRecommendResponse is the body returned by POST /v1/should-recommend.
type shouldRecommendResponse struct {
	ShouldRecommend bool `json:"should_recommend"`
}

func (s *Server) handleShouldRecommend(w http.ResponseWriter, r *http.Request) {
	var req shouldRecommendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, shouldRecommendResponse{
		ShouldRecommend: s.prefilter.ShouldRecommend(ctx, req.Message),
	})
}

func toDTO(res match.Result) recommendationDTO {
	return recommendationDTO{
		ServiceID:   res.Service.ID,
		Name:        res.Service.Name,
		URL:         res.Service.URL,
		Description: res.Service.Description,
		Score:       res.Score,
		Tier:        string(res.Tier),
	}
}

// maxBodyBytes caps request bodies; needs profiles are small.
const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "err", err)
	}
}
