package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/enclaro/backend/internal/analysis"
)

// analyzeRequest is the wire shape of POST /api/analyze.
type analyzeRequest struct {
	Text            string         `json:"text"`
	Module          string         `json:"module"`
	UserEmail       string         `json:"user_email"`
	UserProfile     map[string]any `json:"user_profile"`
	ScenarioContext map[string]any `json:"scenario_context"`
}

// analyzeResponse is the wire shape of a successful analysis.
type analyzeResponse struct {
	Result string `json:"result"`
}

// analyzeText handles POST /api/analyze.
func (s *Server) analyzeText(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Petición no válida.")
	}

	result, err := s.service.Analyze(c.Request().Context(), analysis.Request{
		Text:            req.Text,
		Module:          req.Module,
		UserEmail:       req.UserEmail,
		UserProfile:     req.UserProfile,
		ScenarioContext: req.ScenarioContext,
	})
	if err != nil {
		kind := analysis.KindOf(err)
		if kind == analysis.KindUpstream || kind == analysis.KindInternal {
			log.Error().Err(err).Str("module", req.Module).Msg("Analysis failed")
		}
		return echo.NewHTTPError(statusForKind(kind), analysis.UserMessage(err))
	}

	return c.JSON(http.StatusOK, analyzeResponse{Result: result})
}

// getHistory handles GET /api/history?email=...
func (s *Server) getHistory(c echo.Context) error {
	email := c.QueryParam("email")

	records, err := s.service.History(c.Request().Context(), email)
	if err != nil {
		log.Error().Err(err).Msg("History lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, analysis.UserMessage(err))
	}

	return c.JSON(http.StatusOK, records)
}

// statusForKind maps the error taxonomy to HTTP status codes.
func statusForKind(kind analysis.Kind) int {
	switch kind {
	case analysis.KindInputTooLong, analysis.KindInvalidModule:
		return http.StatusBadRequest
	case analysis.KindAuthentication:
		return http.StatusUnauthorized
	case analysis.KindForbidden:
		return http.StatusForbidden
	case analysis.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
