// Package embeddings defines the Provider interface for text-embedding backends.
//
// A provider maps text strings to dense float32 vectors (e.g., OpenAI
// text-embedding-3 or a local Ollama model). Signpost uses these vectors to
// score a user's free-text needs against support-service descriptions by
// cosine similarity.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"errors"
)

// ErrTransient marks a provider failure that is worth retrying: rate limits,
// request timeouts, and upstream 5xx responses. Providers wrap such failures
// with this sentinel so callers can distinguish them from permanent errors
// (bad credentials, invalid model) via errors.Is.
var ErrTransient = errors.New("transient embedding provider error")

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Vectors from different Provider
// instances must not be mixed in one similarity computation unless both use
// the same model and space.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails or
	// ctx is cancelled. Text is passed through verbatim; any model-specific
	// prompt formatting is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts in a single
	// provider call. The returned slice has the same length as texts and the
	// i-th element corresponds to texts[i]. Partial results are not returned —
	// on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider. Constant for the lifetime of the Provider instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier
	// (e.g., "text-embedding-3-small"). Useful for logging and for ensuring
	// consistent model usage across restarts.
	ModelID() string
}
