package ports

import (
	"context"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

// Embedder builds vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher performs a per-source semantic search. Implementations must
// honor ctx cancellation so a slow source cannot stall the fan-out.
type VectorSearcher interface {
	Search(ctx context.Context, queryVector []float32, sourceID string, topK int) ([]domain.SearchHit, error)
}

// WebSearcher is the external web fallback used when internal sources
// come up short. Results are normalized to SearchHits at the boundary.
type WebSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchHit, error)
}

// WeatherProvider enriches answers with local conditions. Optional: callers
// must tolerate any error without failing the answer path.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (summary string, err error)
}

// TokenStream delivers incremental generation output. Tokens closes when
// generation finishes or fails; Err is valid only after Tokens is closed.
// A consumer that stops reading before Tokens is exhausted must call Close
// to release the producer. Close is idempotent.
type TokenStream interface {
	Tokens() <-chan string
	Err() error
	Close()
}

// AnswerGenerator drives the generative model.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, context_ string, history []domain.ConversationTurn) (string, error)
	StreamAnswer(ctx context.Context, question, context_ string, history []domain.ConversationTurn) (TokenStream, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Reranker reorders (never discards) a candidate slice by learned relevance.
type Reranker interface {
	Rerank(ctx context.Context, question string, candidates []domain.ScoredResult) ([]domain.ScoredResult, error)
}

// SourceRegistry gates retrieval calls through per-source breaker state
// and owns trust scores. Shared across concurrent requests.
type SourceRegistry interface {
	Sources() []domain.SourceDescriptor
	Allow(sourceID string) bool
	RecordSuccess(sourceID string)
	RecordFailure(sourceID string)
	TrustScore(sourceID string) float64
	UpdateTrust(sourceID string, satisfaction float64)
	BreakerStatuses() []domain.BreakerStatus
}

// CalibrationStore persists append-only calibration points.
type CalibrationStore interface {
	AppendPoint(ctx context.Context, point domain.CalibrationPoint) error
	ListPoints(ctx context.Context, topic string, limit int) ([]domain.CalibrationPoint, error)
	CountPoints(ctx context.Context) (int, error)
}

// EscalationStore persists the review queue.
type EscalationStore interface {
	Create(ctx context.Context, esc *domain.Escalation) error
	GetByID(ctx context.Context, id string) (*domain.Escalation, error)
	ListOpen(ctx context.Context, limit int) ([]domain.Escalation, error)
	Resolve(ctx context.Context, id, resolvedBy string, action domain.ResolutionAction, fix string) error
	Stats(ctx context.Context) (domain.EscalationStats, error)
	CountSimilarOpen(ctx context.Context, question string, since time.Time) (int, error)
}

// BreakerStore persists breaker trips and source trust for restarts/audit.
type BreakerStore interface {
	RecordTrip(ctx context.Context, sourceID string, failures int, recoveryAt time.Time) error
	SaveTrust(ctx context.Context, sourceID string, trust float64) error
	LoadTrust(ctx context.Context) (map[string]float64, error)
}

// AnomalyStore persists detections and alert-rule state.
type AnomalyStore interface {
	SaveEvent(ctx context.Context, event domain.AnomalyEvent) error
	ListRecent(ctx context.Context, limit int) ([]domain.AnomalyEvent, error)
	Acknowledge(ctx context.Context, id string) error
	SaveRule(ctx context.Context, rule domain.AlertRule) error
	ListRules(ctx context.Context) ([]domain.AlertRule, error)
	MarkRuleFired(ctx context.Context, id string, at time.Time) error
}

// FeedbackStore persists raw user feedback.
type FeedbackStore interface {
	Create(ctx context.Context, fb *domain.Feedback) error
	ListRecent(ctx context.Context, limit int) ([]domain.Feedback, error)
}

// EventBus carries pipeline events to the asynchronous monitor.
type EventBus interface {
	PublishPipelineEvent(ctx context.Context, event domain.PipelineEvent) error
	SubscribePipelineEvents(ctx context.Context, handler func(context.Context, domain.PipelineEvent) error) error
}
