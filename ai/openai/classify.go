package openai

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sableridge/pagerag/resilience"
)

// Substrings that identify retryable responses from OpenAI-compatible
// servers. The client library flattens HTTP failures into message strings,
// so matching on them is the only signal available.
var transientFragments = []string{
	"429",
	"rate limit",
	"500",
	"502",
	"503",
	"504",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"overloaded",
}

// classifyErr marks retryable dependency failures as transient. Anything
// unrecognized (auth failures, malformed input) stays permanent.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.Transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resilience.Transient(err)
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return resilience.Transient(err)
		}
	}
	return err
}
