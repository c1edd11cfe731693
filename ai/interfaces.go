package ai

import "context"

// Embedder turns text into fixed-dimension, L2-normalized vectors.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates the embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for a batch of texts in one call,
	// returned in input order. An empty input returns an empty result
	// without contacting the external service.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces an answer grounded in the supplied context.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// GenerateAnswer answers question using only the given context text.
	GenerateAnswer(ctx context.Context, question, contextText string) (Answer, error)
}

// Provider aggregates the AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
