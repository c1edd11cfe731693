package openai

import (
	"fmt"

	"github.com/sableridge/pagerag/ai"
)

// answerSystemPrompt keeps the model grounded in the retrieved page
// content. Refusal phrasing is part of the contract: the model must not
// fill gaps from its own knowledge.
const answerSystemPrompt = `You are an assistant that answers questions about a single web page.

Rules:
- Answer using ONLY the information in the provided page content.
- If the page content does not contain the answer, reply exactly: "` + ai.RefusalAnswer + `"
- Never use outside knowledge, even when you are confident.
- Quote prices, measurements, and dates exactly as they appear.
- Be concise: a few sentences at most.`

// buildUserPrompt formats the retrieved context and the user's question.
func buildUserPrompt(question, contextText string) string {
	return fmt.Sprintf("Page content:\n%s\n\nQuestion: %s", contextText, question)
}
