package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"partimatch/internal/embedding"
	"partimatch/internal/models"
	"partimatch/internal/retrieval"
	"partimatch/internal/vectormath"
)

const (
	// NeutralScore is assigned to every party when min-max scaling cannot
	// discriminate (all raw scores equal, or only one party has data).
	NeutralScore = 0.5

	topParties        = 3
	citationsPerParty = 4
	citationTopics    = 3
)

// Aggregator combines per-topic similarity into normalized per-party match
// scores with supporting citations.
type Aggregator struct {
	embedder  embedding.Provider
	centroids *CentroidScorer
	retriever *retrieval.Retriever
	logger    *slog.Logger
}

// NewAggregator creates a match aggregator. The retriever is only used for
// attaching citations to the top parties and may be nil in claims mode.
func NewAggregator(embedder embedding.Provider, centroids *CentroidScorer, retriever *retrieval.Retriever, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		embedder:  embedder,
		centroids: centroids,
		retriever: retriever,
		logger:    logger,
	}
}

// ScoreSummary runs summary-similarity mode: per topic, embed the topic plus
// the user's interest summary, score it against every party's centroid, and
// accumulate with the topic weights. Provider failures on single topics are
// logged and contribute nothing; the result is always structurally valid.
func (a *Aggregator) ScoreSummary(ctx context.Context, summary string, weights map[string]float64) (*models.MatchResult, error) {
	if len(weights) == 0 {
		weights = models.DefaultTopicWeights
	}

	raw := make(map[string]float64, len(models.Parties))
	for _, party := range models.Parties {
		raw[party] = 0
	}
	perTopic := make(map[string]map[string]float64)

	// Topics are independent of each other; fan out to cut latency. The
	// mutex only guards the result maps.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for topic, weight := range weights {
		if weight == 0 {
			continue
		}
		g.Go(func() error {
			query := fmt.Sprintf("%s %s", topic, summary)
			userEmbedding, err := a.embedder.Embed(gctx, query)
			if err != nil {
				a.logger.Warn("topic embedding failed, topic contributes nothing",
					"topic", topic, "error", err)
				return nil
			}

			topicScores := make(map[string]float64, len(models.Parties))
			for _, party := range models.Parties {
				centroid := a.centroids.Centroid(gctx, party, topic)
				if centroid == nil {
					continue
				}
				topicScores[party] = vectormath.Cosine(userEmbedding, centroid)
			}

			mu.Lock()
			perTopic[topic] = topicScores
			for party, similarity := range topicScores {
				raw[party] += weight * similarity
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scaled := minMaxScale(raw)
	top := a.topMatches(ctx, scaled, perTopic, weights)

	return &models.MatchResult{Scores: scaled, Top: top, PerTopic: perTopic}, nil
}

// ScoreClaims runs claims-matching mode against externally built party
// profiles. It is a pure computation: malformed inputs have already been
// reduced to empty values by the parse boundary.
func (a *Aggregator) ScoreClaims(claims []models.Claim, profiles map[string]map[string]models.TopicProfile, weights map[string]float64) *models.MatchResult {
	if len(weights) == 0 {
		weights = models.DefaultTopicWeights
	}

	byTopic := make(map[string][]models.Claim)
	for _, claim := range claims {
		if claim.Strength <= 0 {
			continue
		}
		byTopic[claim.Topic] = append(byTopic[claim.Topic], claim)
	}

	raw := make(map[string]float64, len(models.Parties))
	for _, party := range models.Parties {
		raw[party] = 0
	}
	perTopic := make(map[string]map[string]float64)

	for topic, topicClaims := range byTopic {
		weight := weights[topic]
		if weight == 0 {
			continue
		}

		topicScores := make(map[string]float64, len(models.Parties))
		for _, party := range models.Parties {
			profile, ok := profiles[party][topic]
			if !ok {
				continue
			}
			topicScores[party] = profileSimilarity(topicClaims, profile)
			raw[party] += weight * topicScores[party]
		}
		perTopic[topic] = topicScores
	}

	scaled := minMaxScale(raw)
	top := topFromProfiles(scaled, perTopic, profiles)

	return &models.MatchResult{Scores: scaled, Top: top, PerTopic: perTopic}
}

// profileSimilarity converts claim/profile agreement into a [0,1] score:
// full credit for exact value matches, half credit where the profile is
// "unknown" (or silent), normalized by the total claim strength.
func profileSimilarity(claims []models.Claim, profile models.TopicProfile) float64 {
	var points, total float64
	for _, claim := range claims {
		total += claim.Strength

		value, ok := profile.Values[claim.Dimension]
		switch {
		case !ok || value == "unknown":
			points += claim.Strength / 2
		case value == claim.Value:
			points += claim.Strength
		}
	}
	if total == 0 {
		return 0
	}
	return points / total
}

// minMaxScale rescales raw scores to [0,1] across parties. When max == min
// there is nothing to discriminate and every party gets the neutral value.
func minMaxScale(raw map[string]float64) map[string]float64 {
	scaled := make(map[string]float64, len(raw))
	if len(raw) == 0 {
		return scaled
	}

	first := true
	var minScore, maxScore float64
	for _, v := range raw {
		if first {
			minScore, maxScore = v, v
			first = false
			continue
		}
		if v < minScore {
			minScore = v
		}
		if v > maxScore {
			maxScore = v
		}
	}

	for party, v := range raw {
		if maxScore == minScore {
			scaled[party] = NeutralScore
		} else {
			scaled[party] = (v - minScore) / (maxScore - minScore)
		}
	}
	return scaled
}

// rankParties orders parties by scaled score descending, breaking ties by
// label so the output is deterministic.
func rankParties(scaled map[string]float64) []string {
	parties := make([]string, 0, len(scaled))
	for party := range scaled {
		parties = append(parties, party)
	}
	sort.Slice(parties, func(i, j int) bool {
		if scaled[parties[i]] != scaled[parties[j]] {
			return scaled[parties[i]] > scaled[parties[j]]
		}
		return parties[i] < parties[j]
	})
	return parties
}

// topMatches selects the top parties and attaches citations retrieved from
// their strongest topics plus short rationale phrases.
func (a *Aggregator) topMatches(ctx context.Context, scaled map[string]float64, perTopic map[string]map[string]float64, weights map[string]float64) []models.PartyMatch {
	var top []models.PartyMatch
	for _, party := range rankParties(scaled) {
		if len(top) == topParties {
			break
		}

		match := models.PartyMatch{
			Party:     party,
			Score:     scaled[party],
			Why:       rationale(party, perTopic),
			Citations: []models.Citation{},
		}

		if a.retriever != nil {
			for _, topic := range topWeightedTopics(weights, citationTopics) {
				retrieved, err := a.retriever.Retrieve(ctx, party, topic, 2)
				if err != nil {
					continue
				}
				match.Citations = append(match.Citations, retrieved.Citations...)
				if len(match.Citations) >= citationsPerParty {
					break
				}
			}
			if len(match.Citations) > citationsPerParty {
				match.Citations = match.Citations[:citationsPerParty]
			}
		}

		top = append(top, match)
	}
	return top
}

// topFromProfiles mirrors topMatches for claims mode, where citations come
// from the party profiles instead of a retrieval pass.
func topFromProfiles(scaled map[string]float64, perTopic map[string]map[string]float64, profiles map[string]map[string]models.TopicProfile) []models.PartyMatch {
	var top []models.PartyMatch
	for _, party := range rankParties(scaled) {
		if len(top) == topParties {
			break
		}

		match := models.PartyMatch{
			Party:     party,
			Score:     scaled[party],
			Why:       rationale(party, perTopic),
			Citations: []models.Citation{},
		}
		for _, profile := range profiles[party] {
			match.Citations = append(match.Citations, profile.Citations...)
			if len(match.Citations) >= citationsPerParty {
				break
			}
		}
		if len(match.Citations) > citationsPerParty {
			match.Citations = match.Citations[:citationsPerParty]
		}

		top = append(top, match)
	}
	return top
}

// rationale names the party's strongest topics as short phrases.
func rationale(party string, perTopic map[string]map[string]float64) []string {
	type topicScore struct {
		topic string
		score float64
	}
	var scores []topicScore
	for topic, parties := range perTopic {
		if s, ok := parties[party]; ok {
			scores = append(scores, topicScore{topic, s})
		}
	}
	if len(scores) == 0 {
		return []string{"limited manifesto coverage"}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].topic < scores[j].topic
	})

	why := make([]string, 0, 2)
	for i := 0; i < len(scores) && i < 2; i++ {
		why = append(why, fmt.Sprintf("alignment on %s", scores[i].topic))
	}
	return why
}

// topWeightedTopics returns up to n topics ordered by descending weight.
func topWeightedTopics(weights map[string]float64, n int) []string {
	topics := make([]string, 0, len(weights))
	for topic, weight := range weights {
		if weight > 0 {
			topics = append(topics, topic)
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		if weights[topics[i]] != weights[topics[j]] {
			return weights[topics[i]] > weights[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	return topics
}
