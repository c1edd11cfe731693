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


package fetch

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/sableridge/pagerag/core"
)

// DefaultMinContentChars is the minimum extracted length for a strategy's
// output to count as usable content.
const DefaultMinContentChars = 50

// Strategy is one extraction approach over a parsed document. Returns empty
// when the document has nothing this strategy understands.
type Strategy interface {
	Name() string
	Extract(root *html.Node) string
}

// ContentExtractor runs strategies in order until one yields enough text.
// The structured strategy goes first; the readability walk is the fallback.
type ContentExtractor struct {
	strategies []Strategy
	minChars   int
	logger     *slog.Logger
}

// ExtractorOption configures a ContentExtractor.
type ExtractorOption func(*ContentExtractor)

// WithStrategies replaces the default strategy order.
func WithStrategies(strategies ...Strategy) ExtractorOption {
	return func(e *ContentExtractor) {
		e.strategies = strategies
	}
}

// WithMinContentChars sets the usable-content threshold.
func WithMinContentChars(n int) ExtractorOption {
	return func(e *ContentExtractor) {
		e.minChars = n
	}
}

// WithExtractorLogger sets the extractor's logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *ContentExtractor) {
		e.logger = logger
	}
}

// NewContentExtractor creates an extractor with the structured strategy and
// readability fallback.
func NewContentExtractor(opts ...ExtractorOption) *ContentExtractor {
	e := &ContentExtractor{
		strategies: []Strategy{Structured{}, Readability{}},
		minChars:   DefaultMinContentChars,
		logger:     slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses src and returns normalized plain text from the first
// strategy that yields enough of it. All strategies coming up short maps to
// NO_CONTENT.
func (e *ContentExtractor) Extract(src string) (string, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		// html.Parse recovers from almost anything; a hard error means
		// the payload is not HTML at all.
		return "", core.NewCodedError(core.CodeNoContent, "page could not be parsed as HTML")
	}

	for _, s := range e.strategies {
		text := normalizeWhitespace(s.Extract(root))
		if len(text) >= e.minChars {
			e.logger.Debug("extraction succeeded", "strategy", s.Name(), "chars", len(text))
			return text, nil
		}
		e.logger.Debug("strategy yielded too little", "strategy", s.Name(), "chars", len(text))
	}
	return "", core.NewCodedError(core.CodeNoContent, "no readable content found on page")
}

// skipTags contribute no readable content.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"form":     true,
	"button":   true,
}

// Structured pulls title, headings, main/article body, and product
// microdata (itemprop name/description/price). Works well on pages that
// use semantic markup.
type Structured struct{}

func (Structured) Name() string { return "structured" }

func (Structured) Extract(root *html.Node) string {
	var parts []string

	if title := findFirst(root, "title"); title != nil {
		parts = append(parts, textContent(title))
	}

	for _, prop := range []string{"name", "description", "price"} {
		eachElement(root, func(n *html.Node) {
			if attr(n, "itemprop") == prop {
				parts = append(parts, textContent(n))
			}
		})
	}

	container := findFirst(root, "article")
	if container == nil {
		container = findFirst(root, "main")
	}
	if container == nil {
		eachElement(root, func(n *html.Node) {
			if container == nil && attr(n, "role") == "main" {
				container = n
			}
		})
	}
	if container == nil {
		container = findFirst(root, "body")
	}
	if container != nil {
		eachElement(container, func(n *html.Node) {
			switch n.Data {
			case "h1", "h2", "h3", "p", "li", "dt", "dd", "td", "blockquote", "pre":
				if t := textContent(n); t != "" {
					parts = append(parts, t)
				}
			}
		})
	}

	return strings.Join(dedupe(parts), "\n")
}

// Readability is the fallback: every visible text node under body.
type Readability struct{}

func (Readability) Name() string { return "readability" }

func (Readability) Extract(root *html.Node) string {
	body := findFirst(root, "body")
	if body == nil {
		body = root
	}
	return textContent(body)
}

// eachElement walks the subtree depth-first, invoking fn on element nodes
// and pruning skipped tags.
func eachElement(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] {
			return
		}
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachElement(c, fn)
	}
}

// findFirst returns the first element with the given tag, or nil.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode {
		if n.Data == tag {
			return n
		}
		if skipTags[n.Data] {
			return nil
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent collects the subtree's text nodes, skipping invisible tags.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// attr returns the value of the named attribute, or empty.
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// dedupe removes exact repeats while keeping order; nested elements often
// yield the same text twice (e.g. a <p> inside an <li>).
func dedupe(parts []string) []string {
	seen := make(map[string]bool, len(parts))
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// normalizeWhitespace collapses runs of spaces and blank lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
