// Package fetch retrieves a page's HTML and turns it into readable text.
//
// Fetching is bounded in time, redirects, and body size. Extraction tries
// an ordered list of strategies: a structured pass over semantic markup
// first, then a plain readability walk; a page neither can read fails with
// the NO_CONTENT error code.
package fetch
