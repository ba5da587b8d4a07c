package services

import (
	"fmt"
	"strings"

	"github.com/jmorgan-dev/docstack/models"
)

// systemPrompt defines the core instructions for the assistant.
const systemPrompt = `You are a helpful assistant integrated into a local documentation knowledge base. Answer the user's questions using the documentation excerpts provided with each question.

Ground every answer in the provided excerpts. When the excerpts do not contain the answer, say so plainly instead of inventing one. Mention the source URL of the excerpts you relied on when it helps the user find more detail.`

// buildUserTurn combines retrieved excerpts with the user's question into a
// single prompt turn.
func buildUserTurn(query string, docs []models.SourceDocument) string {
	if len(docs) == 0 {
		return query
	}

	var sb strings.Builder
	sb.WriteString("Relevant documentation:\n\n")
	for _, doc := range docs {
		if src := sourceOf(doc); src != "" {
			fmt.Fprintf(&sb, "Source: %s\n", src)
		}
		sb.WriteString(doc.Text)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}

// sourceOf picks the most specific origin recorded for a chunk.
func sourceOf(doc models.SourceDocument) string {
	for _, key := range []string{"page_url", "source"} {
		if v, ok := doc.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
