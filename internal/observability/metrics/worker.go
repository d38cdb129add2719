package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	eventLag       *prometheus.HistogramVec
	sweepsTotal    *prometheus.CounterVec
	anomaliesTotal *prometheus.CounterVec
	alertsTotal    *prometheus.CounterVec
	trainTotal     *prometheus.CounterVec
	calibrationECE *prometheus.GaugeVec
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "pipeline_events_total",
			Help:      "Total pipeline events consumed by status.",
		},
		[]string{"service", "status"},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between event emission and consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	sweepsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "anomaly_sweeps_total",
			Help:      "Total anomaly detection sweeps by status.",
		},
		[]string{"service", "status"},
	)
	anomaliesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "anomalies_detected_total",
			Help:      "Total anomalies detected by severity.",
		},
		[]string{"service", "severity"},
	)
	alertsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "alerts_fired_total",
			Help:      "Total threshold alert rules fired.",
		},
		[]string{"service", "rule"},
	)
	trainTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "calibration_train_total",
			Help:      "Total calibration training runs by status.",
		},
		[]string{"service", "status"},
	)
	calibrationECE := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "turfai",
			Subsystem: "worker",
			Name:      "calibration_ece",
			Help:      "Expected calibration error from the latest training run.",
		},
		[]string{"service"},
	)

	registry.MustRegister(eventsTotal, eventLag, sweepsTotal, anomaliesTotal, alertsTotal, trainTotal, calibrationECE)

	return &WorkerMetrics{
		registry:       registry,
		eventsTotal:    eventsTotal,
		eventLag:       eventLag,
		sweepsTotal:    sweepsTotal,
		anomaliesTotal: anomaliesTotal,
		alertsTotal:    alertsTotal,
		trainTotal:     trainTotal,
		calibrationECE: calibrationECE,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) FinishEvent(service string, emittedAt time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(service, status).Inc()

	lag := time.Since(emittedAt)
	if !emittedAt.IsZero() && lag >= 0 {
		m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
	}
}

func (m *WorkerMetrics) FinishSweep(service string, anomalies []string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sweepsTotal.WithLabelValues(service, status).Inc()
	for _, severity := range anomalies {
		m.anomaliesTotal.WithLabelValues(service, severity).Inc()
	}
}

func (m *WorkerMetrics) RecordAlertFired(service, rule string) {
	if rule == "" {
		rule = "unknown"
	}
	m.alertsTotal.WithLabelValues(service, rule).Inc()
}

func (m *WorkerMetrics) FinishTrain(service string, ece float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.trainTotal.WithLabelValues(service, status).Inc()
	if err == nil {
		m.calibrationECE.WithLabelValues(service).Set(ece)
	}
}
