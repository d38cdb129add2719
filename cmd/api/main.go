package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	httpadapter "github.com/ccrossmock13/turf-ai/internal/adapters/http"
	"github.com/ccrossmock13/turf-ai/internal/bootstrap"
	"github.com/ccrossmock13/turf-ai/internal/config"
	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/observability/logging"
	"github.com/ccrossmock13/turf-ai/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app.Registry.SetTripNotifier(func(sourceID string) {
		httpMetrics.RecordBreakerTrip("api", sourceID)
	})
	app.Escalation.SetNotifier(func(mode domain.FailureMode) {
		httpMetrics.RecordEscalation("api", string(mode))
	})

	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Ask:         app.AskUC,
		Feedback:    app.FeedbackUC,
		Escalations: app.Escalation,
		Calibration: app.Calibration,
		Anomalies:   app.Monitor,
		Registry:    app.Registry,
		Flags:       app.Flags,
		Metrics:     httpMetrics,
		ImagesDir:   cfg.ImagesDir,
		RateLimit:   rate.Limit(cfg.APIRateLimitRPS),
		RateBurst:   cfg.APIRateLimitBurst,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
