package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"partimatch/internal/models"
	"partimatch/internal/scoring"
)

// previewWeights is the reduced weighting scheme used by the quick preview
// endpoint before a real conversation summary exists.
var previewWeights = map[string]float64{
	"klima": 0.4,
	"skatt": 0.3,
	"skole": 0.2,
	"helse": 0.1,
}

const previewSummary = "viktige hensyn og verdier"

type retrieveResponse struct {
	Context   string            `json:"context"`
	Citations []models.Citation `json:"citations"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleRetrieve serves GET /api/retrieve?party=Ap&topic=klima&k=6. Backend
// failures have already been degraded inside the retriever, so the response
// body is always structurally complete.
func (s *Server) handleRetrieve(c echo.Context) error {
	party := c.QueryParam("party")
	topic := c.QueryParam("topic")
	k := s.defaultK
	if v := c.QueryParam("k"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			k = parsed
		}
	}

	retrieved, err := s.retriever.Retrieve(c.Request().Context(), party, topic, k)
	if err != nil {
		// Unknown party or topic: a caller error, but keep the body shape.
		return c.JSON(http.StatusBadRequest, retrieveResponse{
			Context:   "",
			Citations: []models.Citation{},
			Error:     err.Error(),
		})
	}

	return c.JSON(http.StatusOK, retrieveResponse{
		Context:   retrieved.Context,
		Citations: retrieved.Citations,
	})
}

type computeRequest struct {
	Summary  string                                    `json:"summary"`
	Weights  map[string]float64                        `json:"weights"`
	Claims   json.RawMessage                           `json:"claims"`
	Profiles map[string]map[string]models.TopicProfile `json:"profiles"`
}

// handleMatchCompute serves POST /api/match/compute. With claims and
// profiles present it runs claims-matching mode, otherwise summary-similarity
// mode. Partial backend failure degrades to neutral scores, never an error
// page.
func (s *Server) handleMatchCompute(c echo.Context) error {
	var req computeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("unreadable compute request", "error", err)
		req = computeRequest{}
	}

	weights := req.Weights
	if len(weights) == 0 {
		weights = s.weights
	}

	if len(req.Claims) > 0 && len(req.Profiles) > 0 {
		claims := scoring.ParseClaims(string(req.Claims))
		result := s.aggregator.ScoreClaims(claims, req.Profiles, weights)
		return c.JSON(http.StatusOK, result)
	}

	result, err := s.aggregator.ScoreSummary(c.Request().Context(), req.Summary, weights)
	if err != nil {
		s.logger.Error("match computation failed", "error", err)
		return c.JSON(http.StatusOK, neutralResult())
	}
	return c.JSON(http.StatusOK, result)
}

// handleMatchPreview serves GET /api/match/preview: a quick neutral-summary
// score across the reduced topic set.
func (s *Server) handleMatchPreview(c echo.Context) error {
	result, err := s.aggregator.ScoreSummary(c.Request().Context(), previewSummary, previewWeights)
	if err != nil {
		s.logger.Error("match preview failed", "error", err)
		return c.JSON(http.StatusOK, neutralResult())
	}

	return c.JSON(http.StatusOK, map[string]any{"scores": result.Scores})
}

// neutralResult is the structurally valid fallback body: every party at the
// neutral score, no explanations.
func neutralResult() *models.MatchResult {
	scores := make(map[string]float64, len(models.Parties))
	for _, party := range models.Parties {
		scores[party] = scoring.NeutralScore
	}
	return &models.MatchResult{Scores: scores, Top: []models.PartyMatch{}}
}
