package ollama

import (
	"fmt"
	"strings"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

const (
	maxHistoryTurns  = 5
	maxRerankSnippet = 300
)

func buildAnswerPrompt(question, context_ string, history []domain.ConversationTurn) string {
	var sb strings.Builder

	sb.WriteString(`You are an expert turfgrass management assistant for golf course superintendents.
Answer only from the source context below. Cite sources inline as [Source N].
When recommending a product, always include the labeled rate and unit.
If the sources do not cover the question, say so directly instead of guessing.

`)

	if len(history) > 0 {
		turns := history
		if len(turns) > maxHistoryTurns {
			turns = turns[len(turns)-maxHistoryTurns:]
		}
		sb.WriteString("Conversation so far:\n")
		for _, turn := range turns {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.Question, turn.Answer)
		}
		sb.WriteString("\n")
	}

	if strings.TrimSpace(context_) != "" {
		fmt.Fprintf(&sb, "Source context:\n%s\n", context_)
	} else {
		sb.WriteString("Source context: (no sources retrieved; be explicit that the answer is not backed by indexed documents)\n\n")
	}

	fmt.Fprintf(&sb, "Question: %s\n\nAnswer:", question)
	return sb.String()
}

func buildRerankPrompt(question string, candidates []domain.ScoredResult) string {
	var sb strings.Builder

	sb.WriteString(`You rank turfgrass management source passages by how well they answer the question.
Respond with JSON only: {"order": [...]} listing every passage index from most to least relevant.

`)
	fmt.Fprintf(&sb, "Question: %s\n\nPassages:\n", question)
	for i, c := range candidates {
		snippet := c.Hit.Text
		if len(snippet) > maxRerankSnippet {
			snippet = snippet[:maxRerankSnippet]
		}
		fmt.Fprintf(&sb, "[%d] %s: %s\n", i, c.Hit.Title, snippet)
	}
	return sb.String()
}
