package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partimatch/internal/models"
	"partimatch/internal/retrieval"
	"partimatch/internal/scoring"
)

type stubStore struct {
	excerpts []models.Excerpt
}

func (s *stubStore) QueryByPartyTopic(ctx context.Context, party, topic string, limit int) ([]models.Excerpt, error) {
	var out []models.Excerpt
	for _, e := range s.excerpts {
		if strings.EqualFold(e.Party, party) && strings.EqualFold(e.Topic, topic) {
			out = append(out, e)
		}
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) QueryHybrid(ctx context.Context, queryEmbedding []float32, queryText, party, topic string, limit int) ([]models.Candidate, error) {
	excerpts, _ := s.QueryByPartyTopic(ctx, party, topic, limit)
	candidates := make([]models.Candidate, len(excerpts))
	for i, e := range excerpts {
		candidates[i] = models.Candidate{Excerpt: e, VectorScore: 0.9, LexicalScore: 0.1}
	}
	return candidates, nil
}

type stubEmbedder struct {
	vec []float32
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func newTestServer(t *testing.T, excerpts []models.Excerpt) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &stubStore{excerpts: excerpts}
	embedder := &stubEmbedder{vec: []float32{1, 0}}

	retriever := retrieval.NewRetriever(store, embedder, retrieval.NewLocalCorpus(nil), logger)
	centroids := scoring.NewCentroidScorer(store, logger)
	aggregator := scoring.NewAggregator(embedder, centroids, retriever, logger)

	return New(retriever, aggregator, models.DefaultTopicWeights, 0, logger)
}

func corpusFixture() []models.Excerpt {
	return []models.Excerpt{
		{ID: "a", Content: "Vi vil kutte utslippene.", Party: "Ap", Topic: "klima", Year: "2025", Embedding: []float32{1, 0}},
		{ID: "b", Content: "Fornybar energi skal bygges ut.", Party: "Ap", Topic: "klima", Year: "2025", Embedding: []float32{0.9, 0.1}},
		{ID: "c", Content: "Formuesskatten skal bestå.", Party: "Ap", Topic: "skatt", Year: "2025", Embedding: []float32{0, 1}},
	}
}

func doRequest(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func jsonDecode(rec *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRetrieveEndpoint(t *testing.T) {
	s := newTestServer(t, corpusFixture())
	rec := doRequest(s, http.MethodGet, "/api/retrieve?party=Ap&topic=klima&k=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "[SOURCE: Ap, 2025]")
	assert.Contains(t, body, "Vi vil kutte utslippene.")
}

func TestRetrieveEndpoint_UnknownParty(t *testing.T) {
	s := newTestServer(t, corpusFixture())
	rec := doRequest(s, http.MethodGet, "/api/retrieve?party=Piratpartiet&topic=klima", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"error"`)
	assert.Contains(t, body, `"citations":[]`)
}

func TestMatchCompute_SummaryMode(t *testing.T) {
	s := newTestServer(t, corpusFixture())
	payload := `{"summary": "mer klimahandling", "weights": {"klima": 1}}`
	rec := doRequest(s, http.MethodPost, "/api/match/compute", strings.NewReader(payload))

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.MatchResult
	require.NoError(t, jsonDecode(rec, &result))
	assert.Len(t, result.Scores, len(models.Parties))
	assert.InDelta(t, 1.0, result.Scores["Ap"], 1e-6)
	require.NotEmpty(t, result.Top)
	assert.Equal(t, "Ap", result.Top[0].Party)
}

func TestMatchCompute_ClaimsMode(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{
		"claims": [{"topic": "klima", "dimension": "utslippskutt", "value": "ja", "strength": 1}],
		"profiles": {"MDG": {"klima": {"values": {"utslippskutt": "ja"}}}},
		"weights": {"klima": 1}
	}`
	rec := doRequest(s, http.MethodPost, "/api/match/compute", strings.NewReader(payload))

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.MatchResult
	require.NoError(t, jsonDecode(rec, &result))
	assert.InDelta(t, 1.0, result.Scores["MDG"], 1e-6)
	require.NotEmpty(t, result.Top)
	assert.Equal(t, "MDG", result.Top[0].Party)
}

func TestMatchCompute_GarbageBodyDegrades(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/api/match/compute", strings.NewReader("{not json"))

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.MatchResult
	require.NoError(t, jsonDecode(rec, &result))
	for _, party := range models.Parties {
		assert.Equal(t, scoring.NeutralScore, result.Scores[party], party)
	}
}

func TestMatchPreview(t *testing.T) {
	s := newTestServer(t, corpusFixture())
	rec := doRequest(s, http.MethodGet, "/api/match/preview", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scores map[string]float64 `json:"scores"`
	}
	require.NoError(t, jsonDecode(rec, &body))
	assert.Len(t, body.Scores, len(models.Parties))
}
