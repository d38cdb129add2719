package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	generationRetries  = 1
	streamBuffer       = 64
	fallbackAnswerText = "I could not produce a reliable answer to that question right now. Please try again, or rephrase the question."
)

// AskUseCase orchestrates the full answer pipeline:
// preprocess → retrieve → score → context → generate → confidence,
// with escalation and event publication at the end.
type AskUseCase struct {
	preprocessor *Preprocessor
	retriever    *Retriever
	scorer       *Scorer
	contextB     *ContextBuilder
	generator    ports.AnswerGenerator
	confidence   *ConfidenceScorer
	calibration  *CalibrationEngine
	escalation   *EscalationEngine
	registry     ports.SourceRegistry
	events       ports.EventBus
	weather      ports.WeatherProvider
	flags        *FlagSet
}

func NewAskUseCase(
	preprocessor *Preprocessor,
	retriever *Retriever,
	scorer *Scorer,
	contextB *ContextBuilder,
	generator ports.AnswerGenerator,
	confidence *ConfidenceScorer,
	calibration *CalibrationEngine,
	escalation *EscalationEngine,
	registry ports.SourceRegistry,
	events ports.EventBus,
	weather ports.WeatherProvider,
	flags *FlagSet,
) *AskUseCase {
	return &AskUseCase{
		preprocessor: preprocessor,
		retriever:    retriever,
		scorer:       scorer,
		contextB:     contextB,
		generator:    generator,
		confidence:   confidence,
		calibration:  calibration,
		escalation:   escalation,
		registry:     registry,
		events:       events,
		weather:      weather,
		flags:        flags,
	}
}

type pipelineState struct {
	requestID string
	flags     FeatureFlags
	prepared  domain.PreparedQuery
	results   []domain.ScoredResult
	answerCtx domain.AnswerContext
	webUsed   bool
	started   time.Time
}

// Ask runs the pipeline in blocking mode.
func (uc *AskUseCase) Ask(ctx context.Context, query domain.Query) (*domain.Answer, error) {
	state, err := uc.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	text, genErr := uc.generateBlocking(ctx, state, query.History)
	if genErr != nil {
		answer := uc.failedAnswer(state)
		uc.finish(ctx, state, answer, true)
		return answer, nil
	}

	answer := uc.assess(ctx, state, text)
	uc.finish(ctx, state, answer, false)
	return answer, nil
}

// AskStream runs the pipeline in streaming mode. Tokens flow on the returned
// stream; the final answer (with confidence and sources) arrives on the
// answer channel after the stream closes. Cancelling ctx releases the
// in-flight generation call.
func (uc *AskUseCase) AskStream(ctx context.Context, query domain.Query) (ports.TokenStream, <-chan *domain.Answer, error) {
	state, err := uc.prepare(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	upstream, err := uc.generator.StreamAnswer(ctx, state.prepared.UserText, state.answerCtx.Text, query.History)
	if err != nil {
		// Streaming unavailable: degrade to the blocking path and emit the
		// whole answer as a single token.
		text, genErr := uc.generateBlocking(ctx, state, query.History)
		if genErr != nil {
			text = fallbackAnswerText
		}
		stream := newStaticStream(text)
		answers := make(chan *domain.Answer, 1)
		var answer *domain.Answer
		if genErr != nil {
			answer = uc.failedAnswer(state)
		} else {
			answer = uc.assess(ctx, state, text)
		}
		uc.finish(ctx, state, answer, genErr != nil)
		answers <- answer
		close(answers)
		return stream, answers, nil
	}

	stream := newTokenStream(streamBuffer)
	answers := make(chan *domain.Answer, 1)

	go func() {
		defer close(answers)

		var sb strings.Builder
		for token := range upstream.Tokens() {
			if ctx.Err() != nil {
				upstream.Close()
				stream.close(ctx.Err())
				return
			}
			sb.WriteString(token)
			select {
			case stream.tokens <- token:
			case <-stream.quit:
				upstream.Close()
				stream.close(context.Canceled)
				return
			case <-ctx.Done():
				upstream.Close()
				stream.close(ctx.Err())
				return
			}
		}
		stream.close(upstream.Err())

		if err := upstream.Err(); err != nil {
			slog.Warn("stream_generation_failed", "request_id", state.requestID, "error", err)
			answer := uc.failedAnswer(state)
			uc.finish(ctx, state, answer, true)
			answers <- answer
			return
		}

		// Grounding and confidence run after the last token; use a fresh
		// context so a dropped client connection cannot corrupt bookkeeping.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		answer := uc.assess(finishCtx, state, sb.String())
		uc.finish(finishCtx, state, answer, false)
		answers <- answer
	}()

	return stream, answers, nil
}

func (uc *AskUseCase) prepare(ctx context.Context, query domain.Query) (*pipelineState, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is empty"))
	}

	state := &pipelineState{
		requestID: uuid.NewString(),
		flags:     uc.flags.Snapshot(),
		started:   time.Now(),
	}

	if state.flags.QueryRewrite {
		state.prepared = uc.preprocessor.Prepare(ctx, query)
	} else {
		lower := strings.ToLower(strings.TrimSpace(query.Text))
		state.prepared = domain.PreparedQuery{
			UserText:   strings.TrimSpace(query.Text),
			SearchText: strings.TrimSpace(query.Text),
			Topic:      classifyTopic(lower),
		}
	}

	retrieval, err := uc.retriever.Retrieve(ctx, state.prepared, state.flags.WebFallback)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	state.webUsed = retrieval.WebSearchUsed

	state.results = uc.scorer.Score(ctx, state.prepared.SearchText, retrieval.Hits, state.flags.Reranking)
	state.answerCtx = uc.contextB.Build(state.prepared, state.results)

	if state.flags.WeatherContext && uc.weather != nil && query.Latitude != nil && query.Longitude != nil {
		uc.appendWeather(ctx, state, *query.Latitude, *query.Longitude)
	}

	return state, nil
}

// appendWeather adds local conditions to the context. Best effort only.
func (uc *AskUseCase) appendWeather(ctx context.Context, state *pipelineState, lat, lon float64) {
	weatherCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	summary, err := uc.weather.Current(weatherCtx, lat, lon)
	if err != nil || summary == "" {
		return
	}
	state.answerCtx.Text += fmt.Sprintf("[Local conditions]\n%s\n\n---\n\n", summary)
}

// generateBlocking calls the generator with one retry on transient failure.
func (uc *AskUseCase) generateBlocking(ctx context.Context, state *pipelineState, history []domain.ConversationTurn) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= generationRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := uc.generator.GenerateAnswer(ctx, state.prepared.UserText, state.answerCtx.Text, history)
		if err == nil {
			return text, nil
		}
		lastErr = err
		slog.Warn("generation_attempt_failed", "request_id", state.requestID, "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("generate answer: %w", lastErr)
}

// assess runs grounding and confidence over a generated answer and decides
// whether to escalate. The answer is always returned to the caller; failed
// grounding flags and escalates, it never suppresses.
func (uc *AskUseCase) assess(ctx context.Context, state *pipelineState, text string) *domain.Answer {
	grounding := domain.GroundingResult{Grounded: true, Confidence: 0.7}
	if state.flags.GroundingCheck {
		grounding = uc.contextB.CheckGrounding(ctx, state.prepared.UserText, text, state.answerCtx)
	}

	confidence := uc.confidence.Score(text, state.results, grounding, uc.meanTrust(state.results))

	answer := &domain.Answer{
		Text:                text,
		Sources:             state.answerCtx.Sources,
		Images:              state.answerCtx.Images,
		Confidence:          confidence,
		RecommendedProducts: recommendProducts(text),
		WebSearchUsed:       state.webUsed,
		GroundingPassed:     grounding.Grounded,
		Topic:               state.prepared.Topic,
	}

	sig := FailureSignal{
		Question:   state.prepared.UserText,
		Answer:     text,
		Confidence: confidence,
		Grounding:  grounding,
		Topic:      state.prepared.Topic,
	}
	if pred, ok := uc.calibration.Model().Predict([]float64{
		confidence.Score / 100.0,
		boolFeature(confidence.Score >= 75),
		boolFeature(confidence.Score < 55),
		boolFeature(state.prepared.Topic == "chemical" || state.prepared.Topic == "disease"),
	}); ok {
		sig.PredictedSatisfaction = &pred
	}

	if _, err := uc.escalation.Escalate(ctx, sig); err != nil {
		slog.Warn("escalation_failed", "request_id", state.requestID, "error", err)
	}

	return answer
}

func (uc *AskUseCase) failedAnswer(state *pipelineState) *domain.Answer {
	score := domain.ConfidenceScore{
		Score: 0,
		Label: domain.LabelForScore(0),
	}
	return &domain.Answer{
		Text:            fallbackAnswerText,
		Sources:         state.answerCtx.Sources,
		Confidence:      score,
		WebSearchUsed:   state.webUsed,
		GroundingPassed: false,
		Topic:           state.prepared.Topic,
	}
}

// finish publishes the pipeline event consumed by the anomaly monitor.
func (uc *AskUseCase) finish(ctx context.Context, state *pipelineState, answer *domain.Answer, pipelineError bool) {
	if uc.events == nil {
		return
	}
	event := domain.PipelineEvent{
		RequestID:     state.requestID,
		Topic:         state.prepared.Topic,
		LatencyMillis: float64(time.Since(state.started).Microseconds()) / 1000.0,
		Confidence:    answer.Confidence.Score,
		SourceCount:   len(answer.Sources),
		WebSearchUsed: answer.WebSearchUsed,
		PipelineError: pipelineError,
		Timestamp:     time.Now().UTC(),
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := uc.events.PublishPipelineEvent(publishCtx, event); err != nil {
		slog.Warn("pipeline_event_publish_failed", "request_id", state.requestID, "error", err)
	}
}

func (uc *AskUseCase) meanTrust(results []domain.ScoredResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += uc.registry.TrustScore(r.Hit.SourceID)
	}
	return sum / float64(len(results))
}

// tokenStream is the channel-backed TokenStream handed to the HTTP layer.
type tokenStream struct {
	tokens    chan string
	err       error
	once      sync.Once
	quit      chan struct{}
	closeOnce sync.Once
}

func newTokenStream(buffer int) *tokenStream {
	return &tokenStream{
		tokens: make(chan string, buffer),
		quit:   make(chan struct{}),
	}
}

func (s *tokenStream) Tokens() <-chan string { return s.tokens }
func (s *tokenStream) Err() error            { return s.err }

// Close signals the forwarding goroutine that the consumer is gone.
func (s *tokenStream) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

func (s *tokenStream) close(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.tokens)
	})
}

func newStaticStream(text string) *tokenStream {
	s := newTokenStream(1)
	s.tokens <- text
	s.close(nil)
	return s
}
