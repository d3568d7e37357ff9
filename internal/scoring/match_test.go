package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partimatch/internal/models"
)

type fakeEmbedder struct {
	vec []float32
	err error

	mu      sync.Mutex
	queries []string
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries = append(e.queries, text)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestScoreSummary_RankingAndScaling(t *testing.T) {
	store := &fakeStore{byPair: map[string][]models.Excerpt{
		"Ap/klima": {{ID: "a", Embedding: []float32{1, 0}}},
		"H/klima":  {{ID: "b", Embedding: []float32{0, 1}}},
	}}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	agg := NewAggregator(embedder, NewCentroidScorer(store, quietLogger()), nil, quietLogger())

	result, err := agg.ScoreSummary(context.Background(), "mer klimahandling", map[string]float64{"klima": 1})
	require.NoError(t, err)

	// Ap aligns perfectly, H is orthogonal, everyone else has no corpus.
	assert.InDelta(t, 1.0, result.Scores["Ap"], 1e-9)
	assert.InDelta(t, 0.0, result.Scores["H"], 1e-9)
	assert.Len(t, result.Scores, len(models.Parties))

	require.Len(t, result.Top, 3)
	assert.Equal(t, "Ap", result.Top[0].Party)
	assert.Equal(t, []string{"alignment on klima"}, result.Top[0].Why)
	assert.InDelta(t, 1.0, result.Top[0].Score, 1e-9)
}

func TestScoreSummary_NoCorpusIsNeutral(t *testing.T) {
	store := &fakeStore{byPair: map[string][]models.Excerpt{}}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	agg := NewAggregator(embedder, NewCentroidScorer(store, quietLogger()), nil, quietLogger())

	result, err := agg.ScoreSummary(context.Background(), "noe", map[string]float64{"klima": 1})
	require.NoError(t, err)

	for _, party := range models.Parties {
		assert.Equal(t, NeutralScore, result.Scores[party], party)
	}
}

func TestScoreSummary_EmbedderDownIsNeutral(t *testing.T) {
	store := &fakeStore{byPair: map[string][]models.Excerpt{
		"Ap/klima": {{ID: "a", Embedding: []float32{1, 0}}},
	}}
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	agg := NewAggregator(embedder, NewCentroidScorer(store, quietLogger()), nil, quietLogger())

	result, err := agg.ScoreSummary(context.Background(), "noe", map[string]float64{"klima": 1})
	require.NoError(t, err)

	for _, party := range models.Parties {
		assert.Equal(t, NeutralScore, result.Scores[party], party)
	}
	assert.Empty(t, result.PerTopic)
}

func TestScoreSummary_ZeroWeightTopicSkipped(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	agg := NewAggregator(embedder, NewCentroidScorer(&fakeStore{}, quietLogger()), nil, quietLogger())

	_, err := agg.ScoreSummary(context.Background(), "noe", map[string]float64{"klima": 0, "skatt": 1})
	require.NoError(t, err)

	require.Len(t, embedder.queries, 1)
	assert.Equal(t, "skatt noe", embedder.queries[0])
}

func TestScoreClaims_Credit(t *testing.T) {
	claims := []models.Claim{
		{Topic: "klima", Dimension: "utslippskutt", Value: "ja", Strength: 2},
		{Topic: "klima", Dimension: "co2-avgift", Value: "ja", Strength: 1},
	}
	profiles := map[string]map[string]models.TopicProfile{
		"Ap": {"klima": {Values: map[string]string{"utslippskutt": "ja", "co2-avgift": "ja"}}},
		"H":  {"klima": {Values: map[string]string{"utslippskutt": "ja", "co2-avgift": "nei"}}},
		"SV": {"klima": {Values: map[string]string{"utslippskutt": "nei", "co2-avgift": "unknown"}}},
	}

	agg := NewAggregator(nil, nil, nil, quietLogger())
	result := agg.ScoreClaims(claims, profiles, map[string]float64{"klima": 1})

	// Raw: Ap full credit 1.0, H mismatches one dimension (2/3), SV gets
	// half credit on the unknown only (1/6), everyone else 0. Min-max keeps
	// Ap at 1 and the profileless parties at 0.
	assert.InDelta(t, 1.0, result.Scores["Ap"], 1e-9)
	assert.InDelta(t, 2.0/3.0, result.Scores["H"], 1e-9)
	assert.InDelta(t, 1.0/6.0, result.Scores["SV"], 1e-9)
	assert.InDelta(t, 0.0, result.Scores["FrP"], 1e-9)

	require.Len(t, result.Top, 3)
	assert.Equal(t, "Ap", result.Top[0].Party)
	assert.Equal(t, "H", result.Top[1].Party)
	assert.Equal(t, "SV", result.Top[2].Party)
}

func TestScoreClaims_CitationsFromProfiles(t *testing.T) {
	claims := []models.Claim{
		{Topic: "klima", Dimension: "utslippskutt", Value: "ja", Strength: 1},
	}
	profiles := map[string]map[string]models.TopicProfile{
		"MDG": {"klima": {
			Values:    map[string]string{"utslippskutt": "ja"},
			Citations: []models.Citation{{ID: "x", Party: "MDG", Year: "2025"}},
		}},
	}

	agg := NewAggregator(nil, nil, nil, quietLogger())
	result := agg.ScoreClaims(claims, profiles, map[string]float64{"klima": 1})

	require.NotEmpty(t, result.Top)
	assert.Equal(t, "MDG", result.Top[0].Party)
	require.Len(t, result.Top[0].Citations, 1)
	assert.Equal(t, "x", result.Top[0].Citations[0].ID)
}

func TestProfileSimilarity(t *testing.T) {
	claims := []models.Claim{
		{Topic: "skatt", Dimension: "formuesskatt", Value: "nei", Strength: 3},
		{Topic: "skatt", Dimension: "selskapsskatt", Value: "ned", Strength: 1},
	}

	full := models.TopicProfile{Values: map[string]string{"formuesskatt": "nei", "selskapsskatt": "ned"}}
	assert.InDelta(t, 1.0, profileSimilarity(claims, full), 1e-9)

	unknown := models.TopicProfile{Values: map[string]string{"formuesskatt": "unknown"}}
	// Half credit on both the unknown and the missing dimension.
	assert.InDelta(t, 0.5, profileSimilarity(claims, unknown), 1e-9)

	mismatch := models.TopicProfile{Values: map[string]string{"formuesskatt": "ja", "selskapsskatt": "opp"}}
	assert.InDelta(t, 0.0, profileSimilarity(claims, mismatch), 1e-9)

	assert.Equal(t, 0.0, profileSimilarity(nil, full))
}

func TestMinMaxScale(t *testing.T) {
	scaled := minMaxScale(map[string]float64{"a": 0.2, "b": 0.6, "c": 0.4})
	assert.InDelta(t, 0.0, scaled["a"], 1e-9)
	assert.InDelta(t, 1.0, scaled["b"], 1e-9)
	assert.InDelta(t, 0.5, scaled["c"], 1e-9)

	flat := minMaxScale(map[string]float64{"a": 0.3, "b": 0.3})
	assert.Equal(t, NeutralScore, flat["a"])
	assert.Equal(t, NeutralScore, flat["b"])

	assert.Empty(t, minMaxScale(nil))
}

func TestTopWeightedTopics(t *testing.T) {
	weights := map[string]float64{"klima": 0.3, "skatt": 0.25, "skole": 0.2, "helse": 0, "miljø": 0.07}
	assert.Equal(t, []string{"klima", "skatt", "skole"}, topWeightedTopics(weights, 3))
	assert.Equal(t, []string{"klima"}, topWeightedTopics(weights, 1))
}
