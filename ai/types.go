package ai

// RefusalAnswer is the exact reply the generation prompt mandates when
// the page content cannot answer the question.
const RefusalAnswer = "I cannot answer this question based on the page content."

// Answer is the generation service's response.
type Answer struct {
	// Text is the answer body.
	Text string

	// TokenCount is the total tokens the generation call consumed, as
	// reported by the service, or an estimate when the service does not
	// report usage.
	TokenCount int
}
