package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal         *prometheus.CounterVec
	askDuration      *prometheus.HistogramVec
	retrievedSources *prometheus.HistogramVec
	webSearchTotal   *prometheus.CounterVec
	confidenceScore  *prometheus.HistogramVec
	groundingTotal   *prometheus.CounterVec
	escalationsTotal *prometheus.CounterVec
	breakerTrips     *prometheus.CounterVec
	feedbackTotal    *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turfai",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "turfai",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "ask_total",
			Help:      "Total answered questions by outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end answer pipeline duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"service", "endpoint"},
	)
	retrievedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "retrieved_sources",
			Help:      "Distribution of distinct sources cited per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "endpoint"},
	)
	webSearchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "web_search_total",
			Help:      "Total answers that fell back to web search.",
		},
		[]string{"service", "endpoint"},
	)
	confidenceScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "confidence_score",
			Help:      "Distribution of predicted confidence scores, 0-100.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 55, 60, 70, 75, 80, 90, 100},
		},
		[]string{"service", "label"},
	)
	groundingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "grounding_checks_total",
			Help:      "Total grounding check verdicts.",
		},
		[]string{"service", "verdict"},
	)
	escalationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "escalations_total",
			Help:      "Total escalations created by failure mode.",
		},
		[]string{"service", "failure_mode"},
	)
	breakerTrips := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "breaker_trips_total",
			Help:      "Total circuit breaker trips by knowledge source.",
		},
		[]string{"service", "source"},
	)
	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "pipeline",
			Name:      "feedback_total",
			Help:      "Total feedback submissions by rating.",
		},
		[]string{"service", "rating"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfai",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service", "path"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askDuration,
		retrievedSources,
		webSearchTotal,
		confidenceScore,
		groundingTotal,
		escalationsTotal,
		breakerTrips,
		feedbackTotal,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		askTotal:         askTotal,
		askDuration:      askDuration,
		retrievedSources: retrievedSources,
		webSearchTotal:   webSearchTotal,
		confidenceScore:  confidenceScore,
		groundingTotal:   groundingTotal,
		escalationsTotal: escalationsTotal,
		breakerTrips:     breakerTrips,
		feedbackTotal:    feedbackTotal,
		rateLimitedTotal: rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/admin/escalations/") && strings.HasSuffix(path, "/resolve"):
		return "/v1/admin/escalations/{id}/resolve"
	case strings.HasPrefix(path, "/v1/admin/anomalies/") && strings.HasSuffix(path, "/ack"):
		return "/v1/admin/anomalies/{id}/ack"
	case strings.HasPrefix(path, "/images/"):
		return "/images/{file}"
	default:
		return path
	}
}

// RecordAsk records one completed pipeline run. outcome is "ok", "fallback"
// or "error".
func (m *HTTPServerMetrics) RecordAsk(service, endpoint, outcome string, sourceCount int, webSearchUsed bool, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.askTotal.WithLabelValues(service, endpoint, outcome).Inc()
	m.askDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.retrievedSources.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	if webSearchUsed {
		m.webSearchTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordConfidence(service, label string, score float64) {
	if label == "" {
		label = "unknown"
	}
	m.confidenceScore.WithLabelValues(service, label).Observe(score)
}

func (m *HTTPServerMetrics) RecordGrounding(service string, grounded bool) {
	verdict := "grounded"
	if !grounded {
		verdict = "hallucination"
	}
	m.groundingTotal.WithLabelValues(service, verdict).Inc()
}

func (m *HTTPServerMetrics) RecordEscalation(service, failureMode string) {
	if failureMode == "" {
		failureMode = "unknown"
	}
	m.escalationsTotal.WithLabelValues(service, failureMode).Inc()
}

func (m *HTTPServerMetrics) RecordBreakerTrip(service, source string) {
	if source == "" {
		source = "unknown"
	}
	m.breakerTrips.WithLabelValues(service, source).Inc()
}

func (m *HTTPServerMetrics) RecordFeedback(service, rating string) {
	if rating == "" {
		rating = "unknown"
	}
	m.feedbackTotal.WithLabelValues(service, rating).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service, path string) {
	m.rateLimitedTotal.WithLabelValues(service, normalizePath(path)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
