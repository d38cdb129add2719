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

	"github.com/ccrossmock13/turf-ai/internal/bootstrap"
	"github.com/ccrossmock13/turf-ai/internal/config"
	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/observability/logging"
	"github.com/ccrossmock13/turf-ai/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics()
	app.Monitor.SetAlertNotifier(func(rule domain.AlertRule, _ float64) {
		workerMetrics.RecordAlertFired("worker", rule.ID)
	})
	go serveMetrics(ctx, cfg.WorkerMetricsPort, workerMetrics)
	go runSweeps(ctx, app, workerMetrics, time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	go runTraining(ctx, app, workerMetrics, time.Duration(cfg.TrainIntervalSeconds)*time.Second)

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Events.SubscribePipelineEvents(ctx, func(_ context.Context, event domain.PipelineEvent) error {
		app.Monitor.Observe(event)
		workerMetrics.FinishEvent("worker", event.Timestamp, nil)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func serveMetrics(ctx context.Context, port string, m *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("worker_metrics_server_error", "error", err)
	}
}

func runSweeps(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			events, err := app.Monitor.Sweep(sweepCtx)
			cancel()

			severities := make([]string, 0, len(events))
			for _, event := range events {
				severities = append(severities, string(event.Severity))
			}
			m.FinishSweep("worker", severities, err)
		}
	}
}

// runTraining retrains the satisfaction model on a schedule. Too few
// calibration points is the expected state early on, not a failure.
func runTraining(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trainCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			err := app.Calibration.Train(trainCtx)
			if err != nil && domain.IsKind(err, domain.ErrNotEnoughData) {
				slog.Info("calibration_training_skipped", "reason", "not enough data")
				cancel()
				continue
			}

			ece := 0.0
			if err == nil {
				if report, reportErr := app.Calibration.Report(trainCtx, ""); reportErr == nil {
					ece = report.ECE
				}
			}
			cancel()
			m.FinishTrain("worker", ece, err)
		}
	}
}
