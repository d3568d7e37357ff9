package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"partimatch/internal/models"
)

// LocalCorpus is a small, pre-loaded lexical-only copy of the excerpt corpus.
// It backs retrieval when the document store is unreachable. The corpus is
// constructed once and passed in; it holds no hidden process-wide state.
type LocalCorpus struct {
	docs []models.Excerpt
}

// NewLocalCorpus wraps an already-loaded document set.
func NewLocalCorpus(docs []models.Excerpt) *LocalCorpus {
	return &LocalCorpus{docs: docs}
}

// LoadLocalCorpus reads the fallback document set from a JSON file. A missing
// file yields an empty corpus, not an error: the fallback then simply returns
// no results.
func LoadLocalCorpus(path string) (*LocalCorpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LocalCorpus{}, nil
		}
		return nil, fmt.Errorf("failed to read fallback corpus: %w", err)
	}

	var docs []models.Excerpt
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse fallback corpus: %w", err)
	}
	return &LocalCorpus{docs: docs}, nil
}

// Len returns the number of documents in the corpus.
func (c *LocalCorpus) Len() int {
	return len(c.docs)
}

// Search returns up to limit candidates matching the (party, topic) filter,
// scored by term overlap with the query plus a length tie-breaker. The
// returned candidates carry no embeddings.
func (c *LocalCorpus) Search(query, party, topic string, limit int) []models.Candidate {
	var candidates []models.Candidate
	for _, doc := range c.docs {
		if !strings.EqualFold(doc.Party, party) || !strings.EqualFold(doc.Topic, topic) {
			continue
		}
		score := lexicalScore(query, doc.Content)
		candidates = append(candidates, models.Candidate{
			Excerpt:      doc,
			LexicalScore: score,
			Blended:      score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Blended > candidates[j].Blended
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
