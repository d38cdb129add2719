package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	shortQuestionTokens = 6
	rewriteMaxChars     = 150
)

// Preprocessor expands and rewrites raw questions for retrieval and tags
// them with a topic. It must never fail the pipeline: every error path
// falls back to the original question.
type Preprocessor struct {
	generator ports.AnswerGenerator
}

func NewPreprocessor(generator ports.AnswerGenerator) *Preprocessor {
	return &Preprocessor{generator: generator}
}

func (p *Preprocessor) Prepare(ctx context.Context, query domain.Query) domain.PreparedQuery {
	raw := strings.TrimSpace(query.Text)
	lower := strings.ToLower(raw)

	prepared := domain.PreparedQuery{
		UserText:   raw,
		SearchText: raw,
		Topic:      classifyTopic(lower),
	}

	if needsExpansion(lower) {
		if expanded := expandSynonyms(lower); expanded != lower {
			prepared.SearchText = expanded
			prepared.Expanded = true
		}
	}

	if p.generator != nil && len(raw) <= rewriteMaxChars {
		if rewritten, ok := p.rewrite(ctx, prepared.SearchText); ok {
			prepared.SearchText = rewritten
			prepared.Expanded = true
		}
	}

	return prepared
}

// needsExpansion triggers for short questions or ones without a recognized
// domain term, where vector recall tends to be weakest.
func needsExpansion(lower string) bool {
	if len(strings.Fields(lower)) < shortQuestionTokens {
		return true
	}
	for term := range synonymExpansions {
		if strings.Contains(lower, term) {
			return true
		}
	}
	for _, words := range topicKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return false
			}
		}
	}
	return true
}

func expandSynonyms(lower string) string {
	var extra []string
	for term, expansion := range synonymExpansions {
		if strings.Contains(lower, term) {
			extra = append(extra, expansion)
		}
	}
	if len(extra) == 0 {
		return lower
	}
	return lower + " " + strings.Join(extra, " ")
}

func classifyTopic(lower string) string {
	// Disease and weed terms are more specific than the generic chemical
	// vocabulary, so they win when both match.
	for _, topic := range []string{"disease", "weed", "chemical", "irrigation", "equipment", "fertilizer", "cultural"} {
		for _, w := range topicKeywords[topic] {
			if strings.Contains(lower, w) {
				return topic
			}
		}
	}
	return "general"
}

func (p *Preprocessor) rewrite(ctx context.Context, searchText string) (string, bool) {
	raw, err := p.generator.GenerateJSON(ctx, buildRewritePrompt(searchText))
	if err != nil {
		slog.Debug("query_rewrite_fallback", "error", err)
		return "", false
	}

	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return "", false
	}
	rewritten := strings.TrimSpace(parsed.Query)
	if rewritten == "" {
		return "", false
	}
	return rewritten, true
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
