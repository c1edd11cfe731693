package ai

import (
	"context"

	"github.com/sableridge/pagerag/resilience"
)

// GuardedEmbedder routes every embedding call through a resilience guard
// keyed to the embedding dependency. Empty batches short-circuit before the
// guard so they never count as calls.
type GuardedEmbedder struct {
	inner Embedder
	guard *resilience.Guard
}

// NewGuardedEmbedder wraps inner with guard.
func NewGuardedEmbedder(inner Embedder, guard *resilience.Guard) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, guard: guard}
}

// EmbedText embeds a single text under the guard.
func (g *GuardedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := g.guard.Do(ctx, func() error {
		var opErr error
		result, opErr = g.inner.EmbedText(ctx, text)
		return opErr
	})
	return result, err
}

// EmbedTexts embeds a batch under the guard.
func (g *GuardedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var result [][]float32
	err := g.guard.Do(ctx, func() error {
		var opErr error
		result, opErr = g.inner.EmbedTexts(ctx, texts)
		return opErr
	})
	return result, err
}

// GuardedGenerator routes answer generation through a resilience guard
// keyed to the generation dependency.
type GuardedGenerator struct {
	inner Generator
	guard *resilience.Guard
}

// NewGuardedGenerator wraps inner with guard.
func NewGuardedGenerator(inner Generator, guard *resilience.Guard) *GuardedGenerator {
	return &GuardedGenerator{inner: inner, guard: guard}
}

// GenerateAnswer generates an answer under the guard.
func (g *GuardedGenerator) GenerateAnswer(ctx context.Context, question, contextText string) (Answer, error) {
	var result Answer
	err := g.guard.Do(ctx, func() error {
		var opErr error
		result, opErr = g.inner.GenerateAnswer(ctx, question, contextText)
		return opErr
	})
	return result, err
}
