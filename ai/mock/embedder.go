package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Embedder is a test double for ai.Embedder. The default behavior returns
// deterministic unit vectors derived from the text hash; custom behavior is
// injected via the function fields, and FailNext scripts failures.
type Embedder struct {
	// EmbedTextsFunc is called by EmbedTexts if set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu        sync.Mutex
	dim       int
	callCount int
	failures  int
	failErr   error
}

// NewEmbedder creates a mock embedder emitting vectors of the given
// dimension.
// Note: returns the concrete type so tests can inject behavior and read
// call counts.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{dim: dim}
}

// FailNext makes the next n calls return err before recovering.
func (m *Embedder) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failErr = err
}

// EmbedText generates a deterministic unit vector from the text hash.
func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates deterministic unit vectors for each text.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.callCount++
	if m.failures > 0 {
		m.failures--
		err := m.failErr
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, m.dim)
	}
	return vectors, nil
}

// CallCount returns the number of embedding calls made.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears call counts and scripted behavior.
func (m *Embedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.failures = 0
	m.failErr = nil
	m.EmbedTextsFunc = nil
}

// DeterministicVector creates a unit vector from text. The same text always
// produces the same vector, and nearby call sites can rely on distinct
// texts mapping to distinct directions.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%2000)/1000.0 - 1.0
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		vector[0] = 1
		return vector
	}
	norm := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}
