package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
	"github.com/ccrossmock13/turf-ai/internal/core/usecase"
	"github.com/ccrossmock13/turf-ai/internal/observability/metrics"
)

const serviceName = "api"

type RouterDeps struct {
	Ask         ports.AskService
	Feedback    ports.FeedbackService
	Escalations ports.EscalationService
	Calibration ports.CalibrationService
	Anomalies   ports.AnomalyService
	Registry    ports.SourceRegistry
	Flags       *usecase.FlagSet
	Metrics     *metrics.HTTPServerMetrics
	ImagesDir   string
	RateLimit   rate.Limit
	RateBurst   int
}

type Router struct {
	ask         ports.AskService
	feedback    ports.FeedbackService
	escalations ports.EscalationService
	calibration ports.CalibrationService
	anomalies   ports.AnomalyService
	registry    ports.SourceRegistry
	flags       *usecase.FlagSet
	metrics     *metrics.HTTPServerMetrics
	imagesDir   string
	limiter     *rate.Limiter
}

func NewRouter(deps RouterDeps) *Router {
	var limiter *rate.Limiter
	if deps.RateLimit > 0 {
		burst := deps.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(deps.RateLimit, burst)
	}
	return &Router{
		ask:         deps.Ask,
		feedback:    deps.Feedback,
		escalations: deps.Escalations,
		calibration: deps.Calibration,
		anomalies:   deps.Anomalies,
		registry:    deps.Registry,
		flags:       deps.Flags,
		metrics:     deps.Metrics,
		imagesDir:   deps.ImagesDir,
		limiter:     limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.askBlocking)
	mux.HandleFunc("/v1/ask/stream", rt.askStream)
	mux.HandleFunc("/v1/feedback", rt.recordFeedback)
	mux.HandleFunc("/v1/admin/escalations", rt.listEscalations)
	mux.HandleFunc("/v1/admin/escalations/", rt.escalationSubroute)
	mux.HandleFunc("/v1/admin/breakers", rt.listBreakers)
	mux.HandleFunc("/v1/admin/calibration", rt.calibrationReport)
	mux.HandleFunc("/v1/admin/calibration/train", rt.trainCalibration)
	mux.HandleFunc("/v1/admin/flags", rt.featureFlags)
	mux.HandleFunc("/v1/admin/anomalies", rt.listAnomalies)
	mux.HandleFunc("/v1/admin/anomalies/", rt.acknowledgeAnomaly)
	mux.HandleFunc("/v1/admin/alerts", rt.listAlertRules)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	if rt.imagesDir != "" {
		mux.Handle("/images/", http.StripPrefix("/images/", http.FileServer(http.Dir(rt.imagesDir))))
	}

	var handler http.Handler = mux
	handler = rt.rateLimitMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question       string                    `json:"question"`
	ConversationID string                    `json:"conversation_id,omitempty"`
	History        []domain.ConversationTurn `json:"history,omitempty"`
	Latitude       *float64                  `json:"latitude,omitempty"`
	Longitude      *float64                  `json:"longitude,omitempty"`
}

func (req askRequest) toQuery() domain.Query {
	return domain.Query{
		Text:           req.Question,
		ConversationID: req.ConversationID,
		History:        req.History,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	}
}

func (rt *Router) askBlocking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	started := time.Now()
	answer, err := rt.ask.Ask(r.Context(), req.toQuery())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordAnswerMetrics("/v1/ask", answer, time.Since(started))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recordFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var fb domain.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := rt.feedback.Record(r.Context(), fb); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordFeedback(serviceName, fb.Rating)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (rt *Router) listEscalations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	items, err := rt.escalations.ListOpen(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	stats, err := rt.escalations.Stats(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"escalations": items,
		"stats":       stats,
	})
}

func (rt *Router) escalationSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/escalations/")
	id, action, found := strings.Cut(rest, "/")
	if !found || action != "resolve" || id == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ResolvedBy string `json:"resolved_by"`
		Action     string `json:"action"`
		Fix        string `json:"fix,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	err := rt.escalations.Resolve(r.Context(), id, req.ResolvedBy, domain.ResolutionAction(req.Action), req.Fix)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (rt *Router) listBreakers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"breakers": rt.registry.BreakerStatuses(),
		"sources":  rt.registry.Sources(),
	})
}

func (rt *Router) calibrationReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report, err := rt.calibration.Report(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) trainCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.calibration.Train(r.Context()); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "trained"})
}

func (rt *Router) featureFlags(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.flags.Snapshot())

	case http.MethodPost:
		var req struct {
			QueryRewrite   *bool `json:"query_rewrite,omitempty"`
			Reranking      *bool `json:"reranking,omitempty"`
			GroundingCheck *bool `json:"grounding_check,omitempty"`
			WebFallback    *bool `json:"web_fallback,omitempty"`
			WeatherContext *bool `json:"weather_context,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}

		updated := rt.flags.Update(func(f *usecase.FeatureFlags) {
			if req.QueryRewrite != nil {
				f.QueryRewrite = *req.QueryRewrite
			}
			if req.Reranking != nil {
				f.Reranking = *req.Reranking
			}
			if req.GroundingCheck != nil {
				f.GroundingCheck = *req.GroundingCheck
			}
			if req.WebFallback != nil {
				f.WebFallback = *req.WebFallback
			}
			if req.WeatherContext != nil {
				f.WeatherContext = *req.WeatherContext
			}
		})
		writeJSON(w, http.StatusOK, updated)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	events, err := rt.anomalies.Recent(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": events})
}

func (rt *Router) acknowledgeAnomaly(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/anomalies/")
	id, action, found := strings.Cut(rest, "/")
	if !found || action != "ack" || id == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.anomalies.Acknowledge(r.Context(), id); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (rt *Router) listAlertRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rules, err := rt.anomalies.Rules(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (rt *Router) recordAnswerMetrics(endpoint string, answer *domain.Answer, took time.Duration) {
	if rt.metrics == nil || answer == nil {
		return
	}
	outcome := "ok"
	if !answer.GroundingPassed && answer.Confidence.Score == 0 {
		outcome = "fallback"
	}
	rt.metrics.RecordAsk(serviceName, endpoint, outcome, len(answer.Sources), answer.WebSearchUsed, took)
	rt.metrics.RecordConfidence(serviceName, string(answer.Confidence.Label), answer.Confidence.Score)
	rt.metrics.RecordGrounding(serviceName, answer.GroundingPassed)
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
