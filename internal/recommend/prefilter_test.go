package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/kaede-app/signpost/internal/embedder"
	"github.com/kaede-app/signpost/pkg/embeddings/mock"
)

func TestDefaultExplicitRequestDetector(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"I need help finding work", true},
		{"there's a problem with my housing", true},
		{"Where can I get career advice?", true},
		{"what should I do about rent", true},
		{"nice weather today", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := DefaultExplicitRequestDetector(tt.message); got != tt.want {
			t.Errorf("DefaultExplicitRequestDetector(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestShouldRecommend_PatternsWithoutEmbedder(t *testing.T) {
	p := NewPrefilter(nil, nil)

	if !p.ShouldRecommend(context.Background(), "I need help") {
		t.Error("explicit pattern should fire without an embedder")
	}
	if p.ShouldRecommend(context.Background(), "lovely day") {
		t.Error("non-matching message without an embedder should not fire")
	}
	if p.ShouldRecommend(context.Background(), "   ") {
		t.Error("blank message should never fire")
	}
}

func TestShouldRecommend_CustomDetectorInjected(t *testing.T) {
	always := func(string) bool { return true }
	p := NewPrefilter(nil, always)

	if !p.ShouldRecommend(context.Background(), "anything at all") {
		t.Error("injected detector should take precedence")
	}
}

func TestShouldRecommend_SemanticCentroid(t *testing.T) {
	// Seed phrases and the open message share a direction; the off-topic
	// message is orthogonal to it.
	open := []float32{1, 0}
	closed := []float32{0, 1}
	provider := &mock.Provider{
		EmbedFunc: func(text string) ([]float32, error) {
			if text == "just sharing my day" {
				return closed, nil
			}
			return open, nil
		},
		DimensionsValue: 2,
	}
	emb, err := embedder.New(provider, embedder.Config{RetryBackoff: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("embedder.New: %v", err)
	}
	p := NewPrefilter(emb, func(string) bool { return false })

	if !p.ShouldRecommend(context.Background(), "things have been difficult lately") {
		t.Error("message aligned with the openness centroid should fire")
	}
	if p.ShouldRecommend(context.Background(), "just sharing my day") {
		t.Error("orthogonal message should not fire")
	}
}
