// Package retrieval implements the hybrid lexical+vector retriever, the MMR
// diversifier and the context assembler over the manifesto corpus.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"partimatch/internal/embedding"
	"partimatch/internal/models"
)

const (
	// DefaultK is the number of excerpts returned when the caller does not ask
	// for a specific count.
	DefaultK = 6

	// Blending weights for the candidate score.
	vectorWeight  = 0.6
	lexicalWeight = 0.4

	// The candidate pool is oversized relative to k so MMR has room to trade
	// relevance for variety.
	minPoolSize = 12
)

// Store is the document store query surface the retriever depends on.
type Store interface {
	QueryByPartyTopic(ctx context.Context, party, topic string, limit int) ([]models.Excerpt, error)
	QueryHybrid(ctx context.Context, queryEmbedding []float32, queryText, party, topic string, limit int) ([]models.Candidate, error)
}

// Retriever produces diversified, cited excerpt sets for one (party, topic)
// pair. It is read-only and safe for concurrent use.
type Retriever struct {
	store    Store
	embedder embedding.Provider
	fallback *LocalCorpus
	logger   *slog.Logger

	// Lambda is the MMR relevance/diversity trade-off.
	Lambda float64
}

// NewRetriever creates a retriever. The fallback corpus may be empty but not
// nil; it is consulted only when the store is unreachable.
func NewRetriever(store Store, embedder embedding.Provider, fallback *LocalCorpus, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		fallback: fallback,
		logger:   logger,
		Lambda:   DefaultLambda,
	}
}

// Pool holds one retrieval call's candidate set together with the embedding
// of the composite query that produced it. QueryEmbedding is nil when the
// embedding provider was unavailable.
type Pool struct {
	Candidates     []models.Candidate
	QueryEmbedding []float32
}

// CandidatePool returns up to max(12, 4k) candidates for the (party, topic)
// pair, ranked by the blended score. Provider and store failures degrade to
// lexical-only scoring and the local corpus respectively; neither is surfaced
// as an error.
func (r *Retriever) CandidatePool(ctx context.Context, party, topic string, k int) (*Pool, error) {
	if !models.IsKnownParty(party) {
		return nil, fmt.Errorf("unknown party %q", party)
	}
	if !models.IsKnownTopic(topic) {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
	if k <= 0 {
		k = DefaultK
	}

	limit := 4 * k
	if limit < minPoolSize {
		limit = minPoolSize
	}
	query := party + " " + topic

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("embedding provider failed, falling back to lexical retrieval",
			"party", party, "topic", topic, "error", err)
		return &Pool{Candidates: r.lexicalPool(ctx, query, party, topic, limit)}, nil
	}

	candidates, err := r.store.QueryHybrid(ctx, queryEmbedding, query, party, topic, limit)
	if err != nil {
		r.logger.Warn("document store unreachable, using local corpus",
			"party", party, "topic", topic, "error", err)
		return &Pool{
			Candidates:     r.fallback.Search(query, party, topic, limit),
			QueryEmbedding: queryEmbedding,
		}, nil
	}

	blendScores(candidates)
	return &Pool{Candidates: candidates, QueryEmbedding: queryEmbedding}, nil
}

// Retrieve runs the full pipeline: candidate pool, MMR diversification, and
// context assembly.
func (r *Retriever) Retrieve(ctx context.Context, party, topic string, k int) (*models.RetrievedContext, error) {
	if k <= 0 {
		k = DefaultK
	}

	pool, err := r.CandidatePool(ctx, party, topic, k)
	if err != nil {
		return nil, err
	}

	selected := Diversify(pool.QueryEmbedding, pool.Candidates, k, r.Lambda)
	return Assemble(selected), nil
}

// lexicalPool scores store rows by term overlap when no query embedding is
// available. If the store is also unreachable it drops to the local corpus.
func (r *Retriever) lexicalPool(ctx context.Context, query, party, topic string, limit int) []models.Candidate {
	excerpts, err := r.store.QueryByPartyTopic(ctx, party, topic, limit)
	if err != nil {
		r.logger.Warn("document store unreachable, using local corpus",
			"party", party, "topic", topic, "error", err)
		return r.fallback.Search(query, party, topic, limit)
	}

	candidates := make([]models.Candidate, 0, len(excerpts))
	for _, excerpt := range excerpts {
		score := lexicalScore(query, excerpt.Content)
		candidates = append(candidates, models.Candidate{
			Excerpt:      excerpt,
			LexicalScore: score,
			Blended:      score,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Blended > candidates[j].Blended
	})
	return candidates
}

// blendScores normalizes lexical scores to rank positions and combines them
// with vector similarity into the blended score, ordering the slice by it.
func blendScores(candidates []models.Candidate) {
	n := len(candidates)
	if n == 0 {
		return
	}

	// Rank-normalize the raw ts_rank values: best lexical match gets 1.0,
	// worst gets 1/n.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].LexicalScore > candidates[order[b]].LexicalScore
	})
	for rank, idx := range order {
		candidates[idx].LexicalScore = 1 - float64(rank)/float64(n)
	}

	for i := range candidates {
		candidates[i].Blended = vectorWeight*candidates[i].VectorScore + lexicalWeight*candidates[i].LexicalScore
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Blended > candidates[j].Blended
	})
}

// lexicalScore is the term-overlap count against the query plus a small
// length-based tie-breaker.
func lexicalScore(query, text string) float64 {
	hay := strings.ToLower(text)
	var score float64
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(hay, term) {
			score++
		}
	}

	lengthBonus := float64(len(text)) / 500
	if lengthBonus > 1 {
		lengthBonus = 1
	}
	return score + lengthBonus
}
