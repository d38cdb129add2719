package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

// askStream serves the answer pipeline over SSE: one "token" event per
// generated token, then a terminal "metadata" event with sources and
// confidence. Client disconnect cancels the request context, which releases
// the in-flight generation call.
func (rt *Router) askStream(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	started := time.Now()
	stream, answers, err := rt.ask.AskStream(r.Context(), req.toQuery())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	// A write failure below means the client is gone; releasing the stream
	// unblocks the pipeline goroutine feeding it.
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for token := range stream.Tokens() {
		if err := writeSSEEvent(w, "token", map[string]string{"token": token}); err != nil {
			return
		}
		flusher.Flush()
	}
	if err := stream.Err(); err != nil {
		_ = writeSSEEvent(w, "error", map[string]string{"error": err.Error()})
		flusher.Flush()
	}

	select {
	case answer, ok := <-answers:
		if !ok || answer == nil {
			return
		}
		_ = writeSSEEvent(w, "metadata", streamMetadata{
			Sources: answer.Sources,
			Confidence: streamConfidence{
				Score: answer.Confidence.Score,
				Label: string(answer.Confidence.Label),
			},
			WebSearchUsed: answer.WebSearchUsed,
		})
		flusher.Flush()
		rt.recordAnswerMetrics("/v1/ask/stream", answer, time.Since(started))
	case <-r.Context().Done():
	}
}

type streamConfidence struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

type streamMetadata struct {
	Sources       []domain.SourceRef `json:"sources"`
	Confidence    streamConfidence   `json:"confidence"`
	WebSearchUsed bool               `json:"web_search_used"`
}

func writeSSEEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return nil
}
