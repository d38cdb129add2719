package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	defaultTokenBudget   = 3000
	minAnswerLenForCheck = 50
)

// ImageIndex resolves reference photos for a classified topic.
type ImageIndex interface {
	ImagesForTopic(topic string, limit int) []domain.Image
}

// ContextBuilder assembles the bounded generation context and, after
// generation, verifies that the answer is grounded in it.
type ContextBuilder struct {
	generator   ports.AnswerGenerator
	registry    ports.SourceRegistry
	images      ImageIndex
	tokenBudget int
}

type ContextBuilderOption func(*ContextBuilder)

func WithTokenBudget(n int) ContextBuilderOption {
	return func(b *ContextBuilder) {
		if n > 0 {
			b.tokenBudget = n
		}
	}
}

func NewContextBuilder(generator ports.AnswerGenerator, registry ports.SourceRegistry, images ImageIndex, opts ...ContextBuilderOption) *ContextBuilder {
	b := &ContextBuilder{
		generator:   generator,
		registry:    registry,
		images:      images,
		tokenBudget: defaultTokenBudget,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build concatenates ranked results up to the token budget. Lowest-ranked
// results are dropped first; a kept result is never cut mid-text.
func (b *ContextBuilder) Build(prepared domain.PreparedQuery, results []domain.ScoredResult) domain.AnswerContext {
	var (
		sb         strings.Builder
		sources    []domain.SourceRef
		seenSource = make(map[string]int)
		tokens     int
	)

	categories := b.sourceCategories()

	for _, result := range results {
		chunkTokens := approxTokens(result.Hit.Text)
		if tokens+chunkTokens > b.tokenBudget {
			break
		}
		tokens += chunkTokens

		name := result.Hit.Title
		if name == "" {
			name = result.Hit.SourceID
		}

		number, ok := seenSource[documentKey(result.Hit)]
		if !ok {
			number = len(sources) + 1
			seenSource[documentKey(result.Hit)] = number
			category := domain.SourceCategory(result.Hit.Category)
			if category == "" {
				category = categories[result.Hit.SourceID]
			}
			sources = append(sources, domain.SourceRef{
				Number: number,
				Name:   name,
				URL:    result.Hit.URL,
				Badge:  category.DisplayBadge(),
			})
		}

		fmt.Fprintf(&sb, "[Source %d: %s]\n%s\n\n---\n\n", number, name, result.Hit.Text)
	}

	answerCtx := domain.AnswerContext{
		Text:       sb.String(),
		Sources:    sources,
		TokenCount: tokens,
	}
	if b.images != nil && prepared.Topic != "" {
		answerCtx.Images = b.images.ImagesForTopic(prepared.Topic, 3)
	}
	return answerCtx
}

func (b *ContextBuilder) sourceCategories() map[string]domain.SourceCategory {
	out := make(map[string]domain.SourceCategory)
	for _, s := range b.registry.Sources() {
		out[s.ID] = s.Category
	}
	return out
}

// CheckGrounding verifies each factual claim of the answer against the
// context. A checker failure defaults to grounded: the check reduces
// confidence and escalates, it never blocks the answer.
func (b *ContextBuilder) CheckGrounding(ctx context.Context, question, answer string, answerCtx domain.AnswerContext) domain.GroundingResult {
	passed := domain.GroundingResult{Grounded: true, Confidence: 0.7}
	if len(answer) < minAnswerLenForCheck || answerCtx.Text == "" {
		return passed
	}

	contextText := answerCtx.Text
	if len(contextText) > 4000 {
		contextText = contextText[:4000]
	}

	raw, err := b.generator.GenerateJSON(ctx, buildGroundingPrompt(question, answer, contextText))
	if err != nil {
		slog.Warn("grounding_check_failed", "error", err)
		return passed
	}

	var result domain.GroundingResult
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		slog.Warn("grounding_check_unparseable", "error", err)
		return passed
	}
	return result
}

// approxTokens estimates token count; retrieval text averages about four
// characters per token.
func approxTokens(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}
