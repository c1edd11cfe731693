package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE used by current OpenAI embedding and chat models.
const encodingName = "cl100k_base"

// Tiktoken is an exact Estimator backed by the cl100k_base BPE. The
// encoding tables are downloaded on first use, so construction can fail
// offline; the Heuristic estimator is the offline-safe default.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding.
func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", encodingName, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the exact token count of text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate trims text to at most maxTokens tokens on an exact token
// boundary.
func (t *Tiktoken) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return t.enc.Decode(ids[:maxTokens])
}
