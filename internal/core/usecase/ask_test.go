package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

type pipelineGeneratorFake struct {
	answer       string
	genErr       error
	streamErr    error
	groundingOut string
	stream       ports.TokenStream
}

func (f *pipelineGeneratorFake) GenerateAnswer(context.Context, string, string, []domain.ConversationTurn) (string, error) {
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.answer, nil
}

func (f *pipelineGeneratorFake) StreamAnswer(context.Context, string, string, []domain.ConversationTurn) (ports.TokenStream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.genErr != nil {
		return nil, f.genErr
	}
	if f.stream != nil {
		return f.stream, nil
	}
	stream := newTokenStream(8)
	go func() {
		for _, word := range strings.SplitAfter(f.answer, " ") {
			stream.tokens <- word
		}
		stream.close(nil)
	}()
	return stream, nil
}

func (f *pipelineGeneratorFake) GenerateJSON(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "fact-checker") {
		if f.groundingOut == "" {
			return `{"grounded": true, "confidence": 0.9}`, nil
		}
		return f.groundingOut, nil
	}
	// Query rewrite: decline so the pipeline uses synonym expansion.
	return "", errors.New("rewrite unavailable")
}

type eventBusFake struct {
	events []domain.PipelineEvent
}

func (f *eventBusFake) PublishPipelineEvent(_ context.Context, event domain.PipelineEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *eventBusFake) SubscribePipelineEvents(context.Context, func(context.Context, domain.PipelineEvent) error) error {
	return nil
}

type pipelineFixture struct {
	registry    *Registry
	searcher    *vectorSearcherFake
	generator   *pipelineGeneratorFake
	events      *eventBusFake
	escalations *escalationStoreFake
	uc          *AskUseCase
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	fx := &pipelineFixture{
		registry: NewRegistry(testSources()),
		searcher: &vectorSearcherFake{hitsBySource: map[string][]domain.SearchHit{}},
		generator: &pipelineGeneratorFake{
			answer: "Apply Heritage at 0.2 oz per 1000 sq ft on a 14 day interval. Rotate to a contact fungicide like chlorothalonil between applications to protect against resistance on your bentgrass greens.",
		},
		events:      &eventBusFake{},
		escalations: newEscalationStoreFake(),
	}

	calibration := NewCalibrationEngine(&calibrationStoreFake{})
	fx.uc = NewAskUseCase(
		NewPreprocessor(fx.generator),
		NewRetriever(&embedderFake{}, fx.searcher, nil, fx.registry),
		NewScorer(fx.registry, nil),
		NewContextBuilder(fx.generator, fx.registry, nil),
		fx.generator,
		NewConfidenceScorer(),
		calibration,
		NewEscalationEngine(fx.escalations),
		fx.registry,
		fx.events,
		nil,
		NewFlagSet(DefaultFlags()),
	)
	return fx
}

func (fx *pipelineFixture) seedStrongHits() {
	fx.searcher.hitsBySource["labels"] = []domain.SearchHit{
		{Title: "Heritage Label", Text: "heritage azoxystrobin apply 0.2 oz per 1000 sq ft dollar spot bentgrass", VectorScore: 0.92},
		{Title: "Daconil Label", Text: "chlorothalonil contact fungicide dollar spot rotation", VectorScore: 0.85},
	}
	fx.searcher.hitsBySource["university"] = []domain.SearchHit{
		{Title: "Dollar Spot Management", Text: "dollar spot control bentgrass fungicide rotation program", VectorScore: 0.80},
	}
}

func TestAskStrongEvidenceYieldsHighConfidence(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()

	answer, err := fx.uc.Ask(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Confidence.Score < 75 {
		t.Fatalf("confidence = %v, want >= 75 with three strong grounded sources", answer.Confidence.Score)
	}
	if answer.Confidence.Label != domain.ConfidenceHigh {
		t.Fatalf("label = %s, want high", answer.Confidence.Label)
	}
	if !answer.GroundingPassed {
		t.Fatalf("grounding should pass")
	}
	if len(answer.Sources) != 3 {
		t.Fatalf("expected 3 cited sources, got %d", len(answer.Sources))
	}
	if answer.WebSearchUsed {
		t.Fatalf("web fallback must not run with strong internal hits")
	}
	if len(fx.escalations.items) != 0 {
		t.Fatalf("healthy answer must not be escalated")
	}
	if len(fx.events.events) != 1 {
		t.Fatalf("expected one pipeline event, got %d", len(fx.events.events))
	}
	if fx.events.events[0].PipelineError {
		t.Fatalf("pipeline event should not flag an error")
	}
}

func TestAskAllBreakersOpenDegradesAndEscalates(t *testing.T) {
	fx := newPipelineFixture(t)
	for i := 0; i < 5; i++ {
		fx.registry.RecordFailure("labels")
		fx.registry.RecordFailure("university")
	}

	answer, err := fx.uc.Ask(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("total source outage must degrade, not error: %v", err)
	}

	if answer.Confidence.Score >= 55 {
		t.Fatalf("confidence = %v, want < 55 with zero sources", answer.Confidence.Score)
	}
	if answer.Confidence.Label != domain.ConfidenceLow {
		t.Fatalf("label = %s, want low", answer.Confidence.Label)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(answer.Sources))
	}

	var modes []domain.FailureMode
	for _, esc := range fx.escalations.items {
		modes = append(modes, esc.FailureMode)
	}
	if len(modes) != 1 || modes[0] != domain.FailureInsufficientSources {
		t.Fatalf("expected one insufficient_sources escalation, got %v", modes)
	}
}

func TestAskGenerationFailureReturnsFallbackAnswer(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()
	fx.generator.genErr = errors.New("ollama down")

	answer, err := fx.uc.Ask(context.Background(), domain.Query{Text: "dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("generation outage must degrade, not error: %v", err)
	}
	if answer.Text != fallbackAnswerText {
		t.Fatalf("expected fallback answer text, got %q", answer.Text)
	}
	if answer.Confidence.Label != domain.ConfidenceLow {
		t.Fatalf("fallback answer must be labeled low, got %s", answer.Confidence.Label)
	}
	if len(fx.events.events) != 1 || !fx.events.events[0].PipelineError {
		t.Fatalf("pipeline error should be flagged on the event: %+v", fx.events.events)
	}
}

func TestAskUngroundedAnswerEscalatesAsHallucination(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()
	fx.generator.groundingOut = `{"grounded": false, "confidence": 0.2, "unsupported_claims": ["invented a 5 oz rate"]}`

	answer, err := fx.uc.Ask(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.GroundingPassed {
		t.Fatalf("grounding verdict ignored")
	}
	if answer.Text == fallbackAnswerText {
		t.Fatalf("failed grounding flags the answer, it must not suppress it")
	}

	found := false
	for _, esc := range fx.escalations.items {
		if esc.FailureMode == domain.FailureHallucination {
			found = true
			if esc.Priority != domain.FailureHallucination.BasePriority() {
				t.Fatalf("priority = %d, want %d", esc.Priority, domain.FailureHallucination.BasePriority())
			}
		}
	}
	if !found {
		t.Fatalf("ungrounded answer must open a hallucination escalation")
	}
}

func TestAskEmptyQuestionRejected(t *testing.T) {
	fx := newPipelineFixture(t)
	_, err := fx.uc.Ask(context.Background(), domain.Query{Text: "   "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Ask() with empty question error = %v, want ErrInvalidInput", err)
	}
}

func TestAskStreamDeliversTokensThenAnswer(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()

	stream, answers, err := fx.uc.AskStream(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}

	var sb strings.Builder
	for token := range stream.Tokens() {
		sb.WriteString(token)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if sb.String() != fx.generator.answer {
		t.Fatalf("streamed text differs from generated answer:\n%q\n%q", sb.String(), fx.generator.answer)
	}

	answer := <-answers
	if answer == nil {
		t.Fatalf("no final answer after stream")
	}
	if answer.Confidence.Label != domain.ConfidenceHigh {
		t.Fatalf("final label = %s, want high", answer.Confidence.Label)
	}
	if len(answer.Sources) != 3 {
		t.Fatalf("final answer missing sources: %d", len(answer.Sources))
	}
}

// endlessStreamFake produces tokens until Close, like a generation backend
// that has not finished when the client goes away.
type endlessStreamFake struct {
	tokens   chan string
	released chan struct{}
	once     sync.Once
}

func newEndlessStreamFake() *endlessStreamFake {
	s := &endlessStreamFake{tokens: make(chan string), released: make(chan struct{})}
	go func() {
		defer close(s.tokens)
		for {
			select {
			case s.tokens <- "tok ":
			case <-s.released:
				return
			}
		}
	}()
	return s
}

func (s *endlessStreamFake) Tokens() <-chan string { return s.tokens }
func (s *endlessStreamFake) Err() error            { return nil }
func (s *endlessStreamFake) Close()                { s.once.Do(func() { close(s.released) }) }

func TestAskStreamClientCancelReleasesGenerator(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()
	upstream := newEndlessStreamFake()
	fx.generator.stream = upstream

	ctx, cancel := context.WithCancel(context.Background())
	stream, _, err := fx.uc.AskStream(ctx, domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}

	<-stream.Tokens()
	cancel()

	select {
	case <-upstream.released:
	case <-time.After(2 * time.Second):
		t.Fatalf("generator stream not released after client cancellation")
	}
}

func TestAskStreamConsumerCloseReleasesGenerator(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()
	upstream := newEndlessStreamFake()
	fx.generator.stream = upstream

	stream, _, err := fx.uc.AskStream(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}

	<-stream.Tokens()
	stream.Close()

	select {
	case <-upstream.released:
	case <-time.After(2 * time.Second):
		t.Fatalf("generator stream not released after consumer close")
	}
}

func TestAskStreamDegradesToBlockingWhenStreamingUnavailable(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()
	fx.generator.streamErr = errors.New("streaming unsupported")

	stream, answers, err := fx.uc.AskStream(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}

	var tokens []string
	for token := range stream.Tokens() {
		tokens = append(tokens, token)
	}
	if len(tokens) != 1 || tokens[0] != fx.generator.answer {
		t.Fatalf("degraded stream should emit the whole answer as one token, got %d tokens", len(tokens))
	}
	if answer := <-answers; answer == nil || answer.Text != fx.generator.answer {
		t.Fatalf("degraded stream lost the final answer")
	}
}

func TestFlagDisablesGroundingCheck(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()
	fx.generator.groundingOut = `{"grounded": false, "confidence": 0.1}`
	fx.uc.flags.Update(func(f *FeatureFlags) { f.GroundingCheck = false })

	answer, err := fx.uc.Ask(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.GroundingPassed {
		t.Fatalf("disabled grounding check must default to passed")
	}
}

func TestFlagUpdateBumpsVersion(t *testing.T) {
	flags := NewFlagSet(DefaultFlags())
	before := flags.Snapshot().Version

	updated := flags.Update(func(f *FeatureFlags) { f.WebFallback = false })
	if updated.Version != before+1 {
		t.Fatalf("version = %d, want %d", updated.Version, before+1)
	}
	if flags.Snapshot().WebFallback {
		t.Fatalf("flag change not visible in next snapshot")
	}
}
