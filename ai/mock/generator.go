package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/sableridge/pagerag/ai"
)

// Generator is a test double for ai.Generator. The default behavior echoes
// a canned answer mentioning the question; custom behavior is injected via
// GenerateFunc, and FailNext scripts failures.
type Generator struct {
	// GenerateFunc is called by GenerateAnswer if set.
	GenerateFunc func(ctx context.Context, question, contextText string) (ai.Answer, error)

	mu        sync.Mutex
	callCount int
	failures  int
	failErr   error
}

// NewGenerator creates a mock generator.
// Note: returns the concrete type so tests can inject behavior and read
// call counts.
func NewGenerator() *Generator {
	return &Generator{}
}

// FailNext makes the next n calls return err before recovering.
func (m *Generator) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failErr = err
}

// GenerateAnswer returns a canned grounded-looking answer.
func (m *Generator) GenerateAnswer(ctx context.Context, question, contextText string) (ai.Answer, error) {
	m.mu.Lock()
	m.callCount++
	if m.failures > 0 {
		m.failures--
		err := m.failErr
		m.mu.Unlock()
		return ai.Answer{}, err
	}
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, question, contextText)
	}

	text := fmt.Sprintf("Based on the page content, here is the answer to %q.", question)
	return ai.Answer{
		Text:       text,
		TokenCount: (len(question) + len(contextText) + len(text)) / 4,
	}, nil
}

// CallCount returns the number of generation calls made.
func (m *Generator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears call counts and scripted behavior.
func (m *Generator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.failures = 0
	m.failErr = nil
	m.GenerateFunc = nil
}
