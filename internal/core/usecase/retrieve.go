package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

// WebSourceID identifies the web fallback in the source registry and tags
// the hits it produces.
const WebSourceID = "web"

const (
	defaultPerSourceTimeout = 4 * time.Second
	defaultPerSourceTopK    = 10
	defaultWebTopK          = 5
	minInternalHits         = 2
)

// Retriever fans a prepared query out to every source the registry allows,
// each call on its own timeout. Failures are absorbed into breaker state and
// never fail the request.
type Retriever struct {
	embedder ports.Embedder
	searcher ports.VectorSearcher
	web      ports.WebSearcher
	registry ports.SourceRegistry

	perSourceTimeout time.Duration
	perSourceTopK    int
	webTopK          int
}

type RetrieverOption func(*Retriever)

func WithPerSourceTopK(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.perSourceTopK = n
		}
	}
}

func WithPerSourceTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.perSourceTimeout = d
		}
	}
}

func WithWebTopK(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.webTopK = n
		}
	}
}

func NewRetriever(
	embedder ports.Embedder,
	searcher ports.VectorSearcher,
	web ports.WebSearcher,
	registry ports.SourceRegistry,
	opts ...RetrieverOption,
) *Retriever {
	r := &Retriever{
		embedder:         embedder,
		searcher:         searcher,
		web:              web,
		registry:         registry,
		perSourceTimeout: defaultPerSourceTimeout,
		perSourceTopK:    defaultPerSourceTopK,
		webTopK:          defaultWebTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RetrievalResult carries merged hits plus whether the web fallback ran.
type RetrievalResult struct {
	Hits          []domain.SearchHit
	WebSearchUsed bool
}

// Retrieve fans out to internal sources and, when allowWeb is set and the
// internal hit count is thin, runs the web fallback.
func (r *Retriever) Retrieve(ctx context.Context, prepared domain.PreparedQuery, allowWeb bool) (RetrievalResult, error) {
	var eligible []domain.SourceDescriptor
	for _, src := range r.registry.Sources() {
		if src.Category == domain.SourceCategoryWeb {
			continue
		}
		if r.registry.Allow(src.ID) {
			eligible = append(eligible, src)
		}
	}

	var result RetrievalResult
	if len(eligible) > 0 {
		vector, err := r.embedder.EmbedQuery(ctx, prepared.SearchText)
		if err != nil {
			// Embedding failure blocks all internal sources; fall through to
			// the web fallback rather than erroring the request.
			slog.Warn("embed_query_failed", "error", err)
		} else {
			result.Hits = r.fanOut(ctx, vector, eligible)
		}
	}

	if allowWeb && len(result.Hits) < minInternalHits && r.web != nil {
		webHits := r.webFallback(ctx, prepared)
		if len(webHits) > 0 {
			result.Hits = append(result.Hits, webHits...)
			result.WebSearchUsed = true
		}
	}

	return result, nil
}

func (r *Retriever) fanOut(ctx context.Context, vector []float32, sources []domain.SourceDescriptor) []domain.SearchHit {
	type sourceHits struct {
		sourceID string
		hits     []domain.SearchHit
	}

	var wg sync.WaitGroup
	results := make(chan sourceHits, len(sources))

	for _, src := range sources {
		wg.Add(1)
		go func(src domain.SourceDescriptor) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, r.perSourceTimeout)
			defer cancel()

			hits, err := r.searcher.Search(callCtx, vector, src.ID, r.perSourceTopK)
			if err != nil {
				r.registry.RecordFailure(src.ID)
				slog.Warn("source_search_failed", "source_id", src.ID, "error", err)
				return
			}
			r.registry.RecordSuccess(src.ID)

			for i := range hits {
				hits[i].SourceID = src.ID
			}
			results <- sourceHits{sourceID: src.ID, hits: hits}
		}(src)
	}

	wg.Wait()
	close(results)

	collected := make([]sourceHits, 0, len(sources))
	for sh := range results {
		collected = append(collected, sh)
	}
	// Deterministic merge order regardless of goroutine completion order.
	sort.Slice(collected, func(i, j int) bool { return collected[i].sourceID < collected[j].sourceID })

	var merged []domain.SearchHit
	for _, sh := range collected {
		merged = append(merged, sh.hits...)
	}
	return merged
}

func (r *Retriever) webFallback(ctx context.Context, prepared domain.PreparedQuery) []domain.SearchHit {
	if !r.registry.Allow(WebSourceID) {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.perSourceTimeout)
	defer cancel()

	hits, err := r.web.Search(callCtx, prepared.SearchText, r.webTopK)
	if err != nil {
		r.registry.RecordFailure(WebSourceID)
		slog.Warn("web_search_failed", "error", err)
		return nil
	}
	r.registry.RecordSuccess(WebSourceID)

	for i := range hits {
		hits[i].SourceID = WebSourceID
		hits[i].Category = string(domain.SourceCategoryWeb)
	}
	return hits
}
