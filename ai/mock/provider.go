package mock

import "github.com/sableridge/pagerag/ai"

// Provider aggregates the mock services.
type Provider struct {
	embedder  *Embedder
	generator *Generator
}

// NewProvider creates a provider over fresh mocks emitting vectors of the
// given dimension.
func NewProvider(dim int) *Provider {
	return &Provider{
		embedder:  NewEmbedder(dim),
		generator: NewGenerator(),
	}
}

// Embedder returns the embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

// MockEmbedder exposes the concrete embedder for test assertions.
func (p *Provider) MockEmbedder() *Embedder {
	return p.embedder
}

// MockGenerator exposes the concrete generator for test assertions.
func (p *Provider) MockGenerator() *Generator {
	return p.generator
}
