package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder. An empty baseURL uses
// the public API endpoint.
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		Model:      model,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	var err error

	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			// Wait before retrying
			select {
			case <-time.After(time.Duration(retries) * time.Second):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrProvider, ctx.Err())
			}
		}

		resp, err = e.createEmbeddings(ctx, texts)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: after %d retries: %v", ErrProvider, e.MaxRetries, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProvider, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) createEmbeddings(ctx context.Context, texts []string) (openai.EmbeddingResponse, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	return e.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.Model),
		Input: texts,
	})
}
