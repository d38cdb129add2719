package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	vectorScoreWeight  = 0.7
	keywordScoreWeight = 0.3
	maxCandidates      = 20
	rerankTopK         = 10
)

// Scorer turns raw SearchHits into a ranked, deduplicated candidate list.
type Scorer struct {
	registry ports.SourceRegistry
	reranker ports.Reranker
}

func NewScorer(registry ports.SourceRegistry, reranker ports.Reranker) *Scorer {
	return &Scorer{registry: registry, reranker: reranker}
}

// Score ranks hits by hybrid score and, when rerank is set, passes the head
// of the list through the reranker.
func (s *Scorer) Score(ctx context.Context, question string, hits []domain.SearchHit, rerank bool) []domain.ScoredResult {
	if len(hits) == 0 {
		return nil
	}

	queryTokens := toTokenSet(question)
	scored := make([]domain.ScoredResult, 0, len(hits))
	for _, hit := range hits {
		kw := tokenOverlap(queryTokens, toTokenSet(hit.Text))
		scored = append(scored, domain.ScoredResult{
			Hit:          hit,
			KeywordScore: kw,
			HybridScore:  hybridScore(hit.VectorScore, kw),
		})
	}

	scored = dedupeByDocument(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].HybridScore != scored[j].HybridScore {
			return scored[i].HybridScore > scored[j].HybridScore
		}
		ti := s.registry.TrustScore(scored[i].Hit.SourceID)
		tj := s.registry.TrustScore(scored[j].Hit.SourceID)
		if ti != tj {
			return ti > tj
		}
		return documentKey(scored[i].Hit) < documentKey(scored[j].Hit)
	})

	if len(scored) > maxCandidates {
		scored = scored[:maxCandidates]
	}

	if rerank {
		scored = s.rerank(ctx, question, scored)
	}

	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

func hybridScore(vector, keyword float64) float64 {
	if vector < 0 {
		vector = 0
	}
	if keyword < 0 {
		keyword = 0
	}
	return vectorScoreWeight*vector + keywordScoreWeight*keyword
}

// rerank passes the head of the list through the cross-encoder. The reranker
// may only reorder the candidates it is given; on error or a size mismatch
// the original ordering stands.
func (s *Scorer) rerank(ctx context.Context, question string, scored []domain.ScoredResult) []domain.ScoredResult {
	if s.reranker == nil || len(scored) == 0 {
		return scored
	}
	topK := rerankTopK
	if topK > len(scored) {
		topK = len(scored)
	}

	head := make([]domain.ScoredResult, topK)
	copy(head, scored[:topK])

	reordered, err := s.reranker.Rerank(ctx, question, head)
	if err != nil {
		slog.Warn("rerank_failed", "error", err)
		return scored
	}
	if len(reordered) != topK {
		slog.Warn("rerank_dropped_candidates", "want", topK, "got", len(reordered))
		return scored
	}

	out := make([]domain.ScoredResult, 0, len(scored))
	out = append(out, reordered...)
	out = append(out, scored[topK:]...)
	return out
}

// dedupeByDocument collapses hits that reference the same underlying
// document, keeping the highest hybrid score.
func dedupeByDocument(scored []domain.ScoredResult) []domain.ScoredResult {
	best := make(map[string]domain.ScoredResult, len(scored))
	order := make([]string, 0, len(scored))
	for _, sr := range scored {
		key := documentKey(sr.Hit)
		existing, ok := best[key]
		if !ok {
			best[key] = sr
			order = append(order, key)
			continue
		}
		if sr.HybridScore > existing.HybridScore {
			best[key] = sr
		}
	}

	out := make([]domain.ScoredResult, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// documentKey normalizes title/URL so the same document retrieved from two
// sources deduplicates to one candidate.
func documentKey(hit domain.SearchHit) string {
	if hit.URL != "" {
		return normalizeIdentity(hit.URL)
	}
	if hit.Title != "" {
		return normalizeIdentity(hit.Title)
	}
	return hit.SourceID + "|" + hit.DocumentID
}

func normalizeIdentity(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenOverlap(query, text map[string]struct{}) float64 {
	if len(query) == 0 || len(text) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := text[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
