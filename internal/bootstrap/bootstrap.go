package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/config"
	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
	"github.com/ccrossmock13/turf-ai/internal/core/usecase"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/images"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/llm/ollama"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/queue/nats"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/repository/postgres"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/resilience"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/vector/qdrant"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/weather"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/websearch"
)

// App wires the full answer pipeline. Both the api and worker binaries build
// one App and pick the pieces they serve.
type App struct {
	Config config.Config

	AskUC       *usecase.AskUseCase
	FeedbackUC  *usecase.FeedbackUseCase
	Escalation  *usecase.EscalationEngine
	Calibration *usecase.CalibrationEngine
	Monitor     *usecase.AnomalyMonitor
	Registry    *usecase.Registry
	Flags       *usecase.FlagSet
	Events      *nats.Queue
	Images      *images.Library

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	calibrationRepo := postgres.NewCalibrationRepository(db)
	escalationRepo := postgres.NewEscalationRepository(db)
	breakerRepo := postgres.NewBreakerRepository(db)
	anomalyRepo := postgres.NewAnomalyRepository(db)
	feedbackRepo := postgres.NewFeedbackRepository(db)

	if err := seedAlertRules(ctx, cfg, anomalyRepo); err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, executor)
	generator := ollama.NewGenerator(ollamaClient, executor)
	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	var webSearcher ports.WebSearcher
	if cfg.WebSearchURL != "" {
		webSearcher = websearch.New(cfg.WebSearchURL, executor)
	}
	var weatherProvider ports.WeatherProvider
	if cfg.WeatherURL != "" {
		weatherProvider = weather.New(cfg.WeatherURL)
	}

	imageLibrary, err := images.NewLibrary(cfg.ImagesDir)
	if err != nil {
		return nil, fmt.Errorf("init image library: %w", err)
	}

	registry := usecase.NewRegistry(
		sourceDescriptors(cfg.Sources, webSearcher != nil),
		usecase.WithFailureThreshold(cfg.BreakerFailureThreshold),
		usecase.WithRecoveryWindow(time.Duration(cfg.BreakerRecoverySeconds)*time.Second),
		usecase.WithBreakerStore(breakerRepo),
	)
	if trust, err := breakerRepo.LoadTrust(ctx); err != nil {
		slog.Warn("trust_restore_failed", "error", err)
	} else {
		registry.RestoreTrust(trust)
	}

	calibration := usecase.NewCalibrationEngine(calibrationRepo)
	escalation := usecase.NewEscalationEngine(escalationRepo)
	monitor := usecase.NewAnomalyMonitor(anomalyRepo)
	flags := usecase.NewFlagSet(usecase.DefaultFlags())

	preprocessor := usecase.NewPreprocessor(generator)
	retriever := usecase.NewRetriever(embedder, vectorDB, webSearcher, registry,
		usecase.WithPerSourceTopK(cfg.RetrieveTopK),
		usecase.WithWebTopK(cfg.WebSearchTopK))
	scorer := usecase.NewScorer(registry, ollama.NewReranker(generator))
	contextBuilder := usecase.NewContextBuilder(generator, registry, imageLibrary,
		usecase.WithTokenBudget(cfg.ContextTokenBudget))

	askUC := usecase.NewAskUseCase(
		preprocessor,
		retriever,
		scorer,
		contextBuilder,
		generator,
		usecase.NewConfidenceScorer(),
		calibration,
		escalation,
		registry,
		queue,
		weatherProvider,
		flags,
	)
	feedbackUC := usecase.NewFeedbackUseCase(feedbackRepo, calibration, escalation, registry)

	return &App{
		Config: cfg,

		AskUC:       askUC,
		FeedbackUC:  feedbackUC,
		Escalation:  escalation,
		Calibration: calibration,
		Monitor:     monitor,
		Registry:    registry,
		Flags:       flags,
		Events:      queue,
		Images:      imageLibrary,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// seedAlertRules upserts the configured rules. Fire counts and last-fired
// timestamps on existing rules survive the upsert.
func seedAlertRules(ctx context.Context, cfg config.Config, repo *postgres.AnomalyRepository) error {
	rules, err := config.LoadAlertRules(cfg.AlertRulesPath)
	if err != nil {
		return fmt.Errorf("load alert rules: %w", err)
	}
	for _, rule := range rules {
		if err := repo.SaveRule(ctx, rule); err != nil {
			return fmt.Errorf("seed alert rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

// webSourceTrust starts the fallback well below internal sources; feedback
// can still earn it up.
const webSourceTrust = 0.4

// sourceDescriptors builds registry entries from SOURCES. When a web searcher
// is configured and SOURCES carries no web entry of its own, the fallback
// source is appended so its breaker and trust state exist and Allow("web")
// can pass.
func sourceDescriptors(specs []config.SourceSpec, webEnabled bool) []domain.SourceDescriptor {
	out := make([]domain.SourceDescriptor, 0, len(specs)+1)
	hasWeb := false
	for _, spec := range specs {
		if spec.ID == usecase.WebSourceID {
			hasWeb = true
		}
		out = append(out, domain.SourceDescriptor{
			ID:       spec.ID,
			Name:     spec.Name,
			Category: domain.SourceCategory(spec.Category),
		})
	}
	if webEnabled && !hasWeb {
		out = append(out, domain.SourceDescriptor{
			ID:         usecase.WebSourceID,
			Name:       "Web Search",
			Category:   domain.SourceCategoryWeb,
			TrustScore: webSourceTrust,
		})
	}
	return out
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
