package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
	"github.com/ccrossmock13/turf-ai/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type Embedder struct {
	client *Client
	exec   *resilience.Executor
}

func NewEmbedder(client *Client, exec *resilience.Executor) *Embedder {
	return &Embedder{client: client, exec: exec}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if e.exec == nil {
		return fn(ctx)
	}
	return e.exec.Execute(ctx, operation, fn, classifyOllamaError)
}

// Generator drives the generative model for answers, rewrites and checks.
type Generator struct {
	client *Client
	exec   *resilience.Executor
}

func NewGenerator(client *Client, exec *resilience.Executor) *Generator {
	return &Generator{client: client, exec: exec}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question, context_ string, history []domain.ConversationTurn) (string, error) {
	text, err := g.generate(ctx, "ollama.generate", map[string]any{
		"model":  g.client.genModel,
		"prompt": buildAnswerPrompt(question, context_, history),
		"stream": false,
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate answer", err)
	}
	return text, nil
}

func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, "ollama.generate_json", map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate json", err)
	}
	return text, nil
}

// StreamAnswer opens an NDJSON generation stream. Retries cover only the
// connection attempt; once tokens flow, a mid-stream failure surfaces on the
// stream's Err.
func (g *Generator) StreamAnswer(ctx context.Context, question, context_ string, history []domain.ConversationTurn) (ports.TokenStream, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": buildAnswerPrompt(question, context_, history),
		"stream": true,
	}

	var stream ports.TokenStream
	err := g.execute(ctx, "ollama.stream", func(callCtx context.Context) error {
		body, err := g.client.postStream(ctx, "/api/generate", reqBody, "stream")
		if err != nil {
			return err
		}
		stream = newGenerateStream(body)
		return nil
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("stream answer", err)
	}
	return stream, nil
}

func (g *Generator) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	err := g.execute(ctx, operation, func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (g *Generator) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if g.exec == nil {
		return fn(ctx)
	}
	return g.exec.Execute(ctx, operation, fn, classifyOllamaError)
}
