// Copyright 2025 Sableridge Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package chunker splits normalized text into overlapping token-bounded
// windows.
//
// For a text of L estimated tokens, chunk size S and overlap O (O < S, so
// the window always advances), Split emits ceil((L-O)/(S-O)) chunks; a text
// shorter than one chunk yields exactly one, and empty text yields none.
package chunker

import (
	"fmt"

	"github.com/sableridge/pagerag/token"
)

// Defaults, tuned for retrieval granularity on product and article pages.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Chunk is one window of the source text.
type Chunk struct {
	Text       string
	Ordinal    int
	TokenCount int
}

// Chunker produces ordered chunk sequences. Windowing happens in character
// space at the heuristic chars-per-token ratio, so boundaries may cross
// exact token boundaries by a bounded margin.
type Chunker struct {
	est     token.Estimator
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the token overlap between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a Chunker using est for per-chunk token counts.
func New(est token.Estimator, opts ...Option) (*Chunker, error) {
	if est == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	c := &Chunker{
		est:     est,
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", c.size)
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d", c.overlap)
	}
	return c, nil
}

// Split windows text into chunks. The sequence is finite, ordered by
// ordinal, and consecutive chunks share the configured overlap.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	charSize := c.size * token.CharsPerToken
	charStep := (c.size - c.overlap) * token.CharsPerToken

	var chunks []Chunk
	for start := 0; ; start += charStep {
		end := min(start+charSize, len(runes))
		body := string(runes[start:end])
		chunks = append(chunks, Chunk{
			Text:       body,
			Ordinal:    len(chunks),
			TokenCount: c.est.Count(body),
		})
		if end == len(runes) {
			return chunks
		}
	}
}
