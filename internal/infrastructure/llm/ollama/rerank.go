package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

// Reranker reorders retrieval candidates with a listwise model judgment.
// Any transport or parse failure surfaces as an error; the scorer keeps the
// hybrid ordering in that case.
type Reranker struct {
	generator *Generator
}

func NewReranker(generator *Generator) *Reranker {
	return &Reranker{generator: generator}
}

func (r *Reranker) Rerank(ctx context.Context, question string, candidates []domain.ScoredResult) ([]domain.ScoredResult, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}

	raw, err := r.generator.GenerateJSON(ctx, buildRerankPrompt(question, candidates))
	if err != nil {
		return nil, fmt.Errorf("rerank generate: %w", err)
	}
	order, err := parseRerankOrder(raw, len(candidates))
	if err != nil {
		return nil, fmt.Errorf("rerank parse: %w", err)
	}

	out := make([]domain.ScoredResult, 0, len(candidates))
	for _, idx := range order {
		out = append(out, candidates[idx])
	}
	return out, nil
}

// parseRerankOrder accepts {"order": [...]} from the model. Indices the model
// omits keep their original relative order at the tail, so a lazy response
// can never discard candidates. Out-of-range or repeated indices reject the
// whole response.
func parseRerankOrder(raw string, n int) ([]int, error) {
	var payload struct {
		Order []int `json:"order"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}

	seen := make(map[int]bool, n)
	order := make([]int, 0, n)
	for _, idx := range payload.Order {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("index %d out of range [0,%d)", idx, n)
		}
		if seen[idx] {
			return nil, fmt.Errorf("index %d repeated", idx)
		}
		seen[idx] = true
		order = append(order, idx)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order, nil
}
