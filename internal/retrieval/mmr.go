package retrieval

import (
	"partimatch/internal/models"
	"partimatch/internal/vectormath"
)

// DefaultLambda favors relevance over diversity. Tunable; 0.7 is the default
// the corpus was calibrated with.
const DefaultLambda = 0.7

// Diversify re-ranks the candidate pool with Maximal Marginal Relevance and
// returns min(k, len(pool)) candidates. Pure top-k by relevance tends to pick
// near-duplicate excerpts from the same manifesto paragraph; MMR trades a
// controlled amount of relevance for variety in the citations shown to the
// user.
//
// When the pool already fits within k the pool is returned as-is. Ties
// resolve to the first-seen candidate, so the output is deterministic for a
// given pool order.
func Diversify(queryEmbedding []float32, pool []models.Candidate, k int, lambda float64) []models.Candidate {
	if len(pool) <= k {
		return pool
	}
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultLambda
	}

	remaining := make([]models.Candidate, len(pool))
	copy(remaining, pool)

	// Relevance to the query is fixed per candidate; compute it once.
	relevance := make([]float64, len(remaining))
	for i, candidate := range remaining {
		relevance[i] = vectormath.Cosine(queryEmbedding, candidate.Embedding)
	}

	selected := make([]models.Candidate, 0, k)
	for len(selected) < k && len(remaining) > 0 {
		best := 0
		bestScore := mmrScore(remaining[0], relevance[0], selected, lambda)
		for i := 1; i < len(remaining); i++ {
			if score := mmrScore(remaining[i], relevance[i], selected, lambda); score > bestScore {
				best = i
				bestScore = score
			}
		}

		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
		relevance = append(relevance[:best], relevance[best+1:]...)
	}

	return selected
}

func mmrScore(candidate models.Candidate, relevance float64, selected []models.Candidate, lambda float64) float64 {
	var penalty float64
	for _, s := range selected {
		if sim := vectormath.Cosine(candidate.Embedding, s.Embedding); sim > penalty {
			penalty = sim
		}
	}
	return lambda*relevance - (1-lambda)*penalty
}
