// Package embedding wraps the text-embedding providers behind one interface.
package embedding

import (
	"context"
	"errors"
)

// ErrProvider marks quota or network failures from the embedding provider.
// Callers treat it as retryable or degrade to lexical-only retrieval.
var ErrProvider = errors.New("embedding provider unavailable")

// Provider turns text into fixed-dimension vectors.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
