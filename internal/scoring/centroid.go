// Package scoring computes party/topic affinity: centroid vectors per
// (party, topic) and the weighted match aggregation across topics.
package scoring

import (
	"context"
	"log/slog"

	"partimatch/internal/models"
	"partimatch/internal/vectormath"
)

// DefaultCentroidK bounds how many excerpt embeddings feed one centroid.
// The corpus is small, so recomputing per call is cheaper than caching.
const DefaultCentroidK = 30

// Store is the document store query surface the scorer depends on.
type Store interface {
	QueryByPartyTopic(ctx context.Context, party, topic string, limit int) ([]models.Excerpt, error)
}

// CentroidScorer derives a party's stance vector on a topic as the unweighted
// mean of its excerpt embeddings.
type CentroidScorer struct {
	store  Store
	logger *slog.Logger

	// K is the maximum number of embeddings averaged per centroid.
	K int
}

// NewCentroidScorer creates a centroid scorer over the given store.
func NewCentroidScorer(store Store, logger *slog.Logger) *CentroidScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CentroidScorer{
		store:  store,
		logger: logger,
		K:      DefaultCentroidK,
	}
}

// Centroid returns the mean embedding of up to K excerpts for the (party,
// topic) pair. It returns nil both when no excerpts match and when the store
// is unreachable; scoring treats nil as "no data" and the party simply
// contributes nothing for the topic.
func (s *CentroidScorer) Centroid(ctx context.Context, party, topic string) []float32 {
	excerpts, err := s.store.QueryByPartyTopic(ctx, party, topic, s.K)
	if err != nil {
		s.logger.Warn("centroid query failed", "party", party, "topic", topic, "error", err)
		return nil
	}
	if len(excerpts) == 0 {
		return nil
	}

	embeddings := make([][]float32, 0, len(excerpts))
	for _, excerpt := range excerpts {
		if len(excerpt.Embedding) > 0 {
			embeddings = append(embeddings, excerpt.Embedding)
		}
	}
	return vectormath.Mean(embeddings)
}

// Similarity scores a user-interest vector against the (party, topic)
// centroid. No data scores 0.
func (s *CentroidScorer) Similarity(ctx context.Context, userEmbedding []float32, party, topic string) float64 {
	centroid := s.Centroid(ctx, party, topic)
	if centroid == nil {
		return 0
	}
	return vectormath.Cosine(userEmbedding, centroid)
}
