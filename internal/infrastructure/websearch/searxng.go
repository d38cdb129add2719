package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/resilience"
)

// Client queries a SearxNG instance's JSON API. Web results are normalized
// to SearchHits at this boundary; their relevance decays with rank so a web
// page never outranks a strong internal document.
type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		exec:       exec,
	}
}

const topRankScore = 0.55

func (c *Client) Search(ctx context.Context, query string, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 5
	}

	var hits []domain.SearchHit
	call := func(callCtx context.Context) error {
		results, err := c.search(callCtx, query)
		if err != nil {
			return err
		}
		if len(results) > topK {
			results = results[:topK]
		}
		hits = hits[:0]
		for i, r := range results {
			hits = append(hits, domain.SearchHit{
				Title:       r.Title,
				URL:         r.URL,
				Text:        r.Content,
				Category:    string(domain.SourceCategoryWeb),
				VectorScore: topRankScore * float64(topK-i) / float64(topK),
			})
		}
		return nil
	}

	if c.exec == nil {
		if err := call(ctx); err != nil {
			return nil, err
		}
		return hits, nil
	}
	if err := c.exec.Execute(ctx, "websearch", call, classifySearchError); err != nil {
		return nil, err
	}
	return hits, nil
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (c *Client) search(ctx context.Context, query string) ([]searchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{status: resp.Status, code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var parsed struct {
		Results []searchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Results, nil
}

type statusError struct {
	status string
	code   int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("web search status: %s", e.status)
	}
	return fmt.Sprintf("web search status: %s: %s", e.status, e.body)
}

func classifySearchError(err error) resilience.ErrorClassification {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		retryable := statusErr.code == http.StatusTooManyRequests || statusErr.code >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
