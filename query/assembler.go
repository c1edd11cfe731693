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


package query

import (
	"strings"

	"github.com/sableridge/pagerag/token"
	"github.com/sableridge/pagerag/vecindex"
)

const (
	// DefaultHighRelevance is the score above which a chunk contributes
	// its full text to the context; weaker matches contribute a snippet.
	DefaultHighRelevance = 0.7

	// DefaultSnippetChars bounds snippets, both in the assembled context
	// and in the sources returned with the answer.
	DefaultSnippetChars = 150

	// DefaultContextBudget caps the assembled context in tokens.
	DefaultContextBudget = 2000
)

// Assembler builds the generation context from search matches under a
// token budget. The best match is always included, even when it alone
// exceeds the budget; an empty result therefore means there were no
// matches at all.
type Assembler struct {
	estimator     token.Estimator
	highRelevance float32
	snippetChars  int
	budget        int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithHighRelevance overrides the full-text score threshold.
func WithHighRelevance(threshold float32) AssemblerOption {
	return func(a *Assembler) {
		a.highRelevance = threshold
	}
}

// WithSnippetChars overrides the snippet length.
func WithSnippetChars(chars int) AssemblerOption {
	return func(a *Assembler) {
		if chars > 0 {
			a.snippetChars = chars
		}
	}
}

// WithContextBudget overrides the context token budget.
func WithContextBudget(budget int) AssemblerOption {
	return func(a *Assembler) {
		if budget > 0 {
			a.budget = budget
		}
	}
}

// NewAssembler creates an assembler over the estimator.
func NewAssembler(estimator token.Estimator, opts ...AssemblerOption) (*Assembler, error) {
	if estimator == nil {
		return nil, ErrEstimatorRequired
	}
	a := &Assembler{
		estimator:     estimator,
		highRelevance: DefaultHighRelevance,
		snippetChars:  DefaultSnippetChars,
		budget:        DefaultContextBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble walks matches best-first and returns the context text plus
// the matches that made it in, in inclusion order.
func (a *Assembler) Assemble(matches []vecindex.Match) (string, []vecindex.Match) {
	if len(matches) == 0 {
		return "", nil
	}

	var parts []string
	var used []vecindex.Match
	spent := 0

	for i, match := range matches {
		text := match.Chunk.Text
		if match.Score < a.highRelevance {
			text = Snippet(text, a.snippetChars)
		}
		cost := a.estimator.Count(text)

		// The top match is included unconditionally so the generator
		// always has something to ground on.
		if i > 0 && spent+cost > a.budget {
			break
		}

		parts = append(parts, text)
		used = append(used, match)
		spent += cost
	}

	return strings.Join(parts, "\n\n"), used
}

// Snippet truncates text to at most maxChars runes, trimming trailing
// whitespace.
func Snippet(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return strings.TrimRight(string(runes[:maxChars]), " \t\n")
}
