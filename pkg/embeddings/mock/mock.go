// Package mock provides a test double for the embeddings.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model and
// to verify which texts were submitted for embedding.
//
// Example:
//
//	p := &mock.Provider{
//	    EmbedResult:     []float32{0.1, 0.2, 0.3},
//	    DimensionsValue: 3,
//	    ModelIDValue:    "test-embed-v1",
//	}
//	vec, _ := p.Embed(ctx, "hello world")
package mock

import (
	"context"
	"sync"

	"github.com/kaede-app/signpost/pkg/embeddings"
)

// Ensure Provider implements the embeddings.Provider interface.
var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	// Ctx is the context passed to Embed.
	Ctx context.Context
	// Text is the string passed to Embed.
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	// Ctx is the context passed to EmbedBatch.
	Ctx context.Context
	// Texts is a copy of the string slice passed to EmbedBatch.
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// EmbedFunc, if non-nil, computes the result of Embed per input text and
	// takes precedence over EmbedResult/EmbedErr. Useful when a test needs
	// distinct vectors for distinct texts.
	EmbedFunc func(text string) ([]float32, error)

	// EmbedResult is returned by Embed when EmbedFunc is nil.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed.
	EmbedErr error

	// EmbedBatchResult is returned by EmbedBatch. If nil and EmbedFunc is set,
	// EmbedBatch applies EmbedFunc per text instead.
	EmbedBatchResult [][]float32

	// EmbedBatchErr, if non-nil, is returned as the error from EmbedBatch.
	EmbedBatchErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Recorded calls ---

	// EmbedCalls records every invocation of Embed in order.
	EmbedCalls []EmbedCall

	// EmbedBatchCalls records every invocation of EmbedBatch in order.
	EmbedBatchCalls []EmbedBatchCall
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	fn, res, err := p.EmbedFunc, p.EmbedResult, p.EmbedErr
	p.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cp := make([]string, len(texts))
	copy(cp, texts)

	p.mu.Lock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	fn, res, err := p.EmbedFunc, p.EmbedBatchResult, p.EmbedBatchErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	if fn != nil {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			v, err := fn(t)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	return p.DimensionsValue
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.ModelIDValue
}

// CallCount returns the total number of Embed and EmbedBatch invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.EmbedCalls) + len(p.EmbedBatchCalls)
}
