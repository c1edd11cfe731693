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


// Package token estimates token counts and truncates text to token budgets.
//
// The default Heuristic estimator (four characters per token) is approximate
// by design and deterministic; extraction, chunking, and context assembly all
// share one estimator so their budgets agree. The Tiktoken estimator is exact
// for OpenAI models but fetches its BPE tables on first use.
package token

import (
	"strings"
	"unicode/utf8"
)

// CharsPerToken is the heuristic ratio used by Heuristic.
const CharsPerToken = 4

// Estimator counts tokens in text and trims text to a token budget.
// Counts are estimates unless the implementation says otherwise; callers
// must not assume exactness.
type Estimator interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// Heuristic estimates tokens as ceil(characters/4). Zero-allocation and
// deterministic, which keeps chunk counts reproducible across runs.
type Heuristic struct{}

// Count returns the estimated token count of text.
func (Heuristic) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Truncate trims text to approximately maxTokens tokens. When a word
// boundary falls near the cut point the text is trimmed there instead of
// mid-word.
func (Heuristic) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * CharsPerToken
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	cut := string(runes[:limit])
	if idx := strings.LastIndexAny(cut, " \t\n"); idx >= limit*9/10 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n")
}
