package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/token"
	"github.com/sableridge/pagerag/vecindex"
)

// tokens builds text measuring exactly n heuristic tokens.
func tokens(n int) string {
	return strings.Repeat("abc ", n)
}

func match(text string, ordinal int, score float32) vecindex.Match {
	return vecindex.Match{
		Chunk: vecindexChunk(text, ordinal),
		Score: score,
	}
}

func vecindexChunk(text string, ordinal int) core.Chunk {
	return core.Chunk{
		Id:      core.ChunkId("ing-1", ordinal),
		Text:    text,
		Ordinal: ordinal,
	}
}

func newTestAssembler(t *testing.T, opts ...AssemblerOption) *Assembler {
	t.Helper()
	assembler, err := NewAssembler(token.Heuristic{}, opts...)
	require.NoError(t, err)
	return assembler
}

func TestAssembler_Empty(t *testing.T) {
	assembler := newTestAssembler(t)

	contextText, used := assembler.Assemble(nil)
	assert.Empty(t, contextText)
	assert.Empty(t, used)
}

func TestAssembler_HighRelevanceGetsFullText(t *testing.T) {
	assembler := newTestAssembler(t)
	long := tokens(100)

	contextText, used := assembler.Assemble([]vecindex.Match{
		match(long, 0, 0.9),
		match(long, 1, 0.65),
	})

	require.Len(t, used, 2)
	parts := strings.Split(contextText, "\n\n")
	require.Len(t, parts, 2)
	assert.Equal(t, strings.TrimRight(long, " "), strings.TrimRight(parts[0], " "))
	assert.LessOrEqual(t, len([]rune(parts[1])), DefaultSnippetChars)
}

func TestAssembler_BudgetLimitsInclusion(t *testing.T) {
	assembler := newTestAssembler(t, WithContextBudget(100))

	contextText, used := assembler.Assemble([]vecindex.Match{
		match(tokens(40), 0, 0.9),
		match(tokens(40), 1, 0.85),
		match(tokens(40), 2, 0.8),
	})

	require.Len(t, used, 2)
	assert.Equal(t, 0, used[0].Chunk.Ordinal)
	assert.Equal(t, 1, used[1].Chunk.Ordinal)
	assert.NotEmpty(t, contextText)
}

func TestAssembler_TopMatchAlwaysIncluded(t *testing.T) {
	assembler := newTestAssembler(t, WithContextBudget(10))

	contextText, used := assembler.Assemble([]vecindex.Match{
		match(tokens(500), 0, 0.95),
		match(tokens(5), 1, 0.9),
	})

	require.Len(t, used, 1)
	assert.Equal(t, 0, used[0].Chunk.Ordinal)
	assert.NotEmpty(t, contextText)
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{"short text unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello"},
		{"trailing space trimmed", "hello world", 6, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(tt.text, tt.maxChars))
		})
	}
}
