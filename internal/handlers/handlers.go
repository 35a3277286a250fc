package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"typing-duel/internal/bus"
	"typing-duel/internal/middleware/ratelimit"
	"typing-duel/internal/models"
	"typing-duel/internal/services"
	"typing-duel/internal/session"
)

const maxNameLength = 24

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc         *services.MatchService
	bus         bus.Bus
	tokens      *session.Tokens
	rateLimiter *ratelimit.RateLimiter
	store       Pinger
	results     Pinger
}

// NewHandler wires the HTTP surface. results may be nil when no archive is
// configured.
func NewHandler(
	svc *services.MatchService,
	b bus.Bus,
	tokens *session.Tokens,
	rateLimiter *ratelimit.RateLimiter,
	store Pinger,
	results Pinger,
) *Handler {
	return &Handler{
		svc:         svc,
		bus:         b,
		tokens:      tokens,
		rateLimiter: rateLimiter,
		store:       store,
		results:     results,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.HealthCheck)
	e.POST("/matches", h.CreateMatch)
	e.POST("/matches/practice", h.CreatePracticeMatch)
	e.POST("/matches/:code/join", h.JoinMatch)
	e.GET("/matches/:code", h.GetMatch)
	e.GET("/ws/:code", h.WebSocket)
}

type createRequest struct {
	Name       string   `json:"name"`
	Difficulty string   `json:"difficulty"`
	Powers     []string `json:"powers"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

func (h *Handler) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	status := "healthy"
	storeStatus := "healthy"
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
		status = "degraded"
	}

	resultsStatus := "disabled"
	if h.results != nil {
		resultsStatus = "healthy"
		if err := h.results.Ping(ctx); err != nil {
			resultsStatus = "unhealthy"
		}
	}

	response := models.HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Redis:     storeStatus,
		Results:   resultsStatus,
	}
	if status != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, response)
}

func (h *Handler) CreateMatch(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	name, err := playerName(req.Name)
	if err != nil {
		return err
	}
	difficulty := models.Difficulty(strings.ToLower(req.Difficulty))
	if difficulty == "" {
		difficulty = models.DifficultyEasy
	}

	code, pid, err := h.svc.CreateMatch(c.Request().Context(), name, difficulty, req.Powers)
	if err != nil {
		return httpError(err)
	}
	return h.issue(c, http.StatusCreated, code, pid)
}

func (h *Handler) CreatePracticeMatch(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	name, err := playerName(req.Name)
	if err != nil {
		return err
	}

	code, pid, err := h.svc.CreatePracticeMatch(c.Request().Context(), name, models.Difficulty(strings.ToLower(req.Difficulty)))
	if err != nil {
		return httpError(err)
	}
	return h.issue(c, http.StatusCreated, code, pid)
}

func (h *Handler) JoinMatch(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	name, err := playerName(req.Name)
	if err != nil {
		return err
	}
	code := matchCode(c)

	pid, err := h.svc.JoinMatch(c.Request().Context(), code, name)
	if err != nil {
		return httpError(err)
	}
	return h.issue(c, http.StatusOK, code, pid)
}

func (h *Handler) GetMatch(c echo.Context) error {
	view, err := h.svc.GetSnapshot(c.Request().Context(), matchCode(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) issue(c echo.Context, status int, code, pid string) error {
	token, err := h.tokens.Issue(code, pid)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("issue session token")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue session")
	}
	return c.JSON(status, sessionResponse{Code: code, PlayerID: pid, Token: token})
}

func matchCode(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}

func playerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return "", echo.NewHTTPError(http.StatusBadRequest, "name is too long")
	}
	return name, nil
}

// httpError maps engine errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Match not found")
	case errors.Is(err, models.ErrInvalidConfig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "Not allowed")
	case errors.Is(err, models.ErrFull):
		return echo.NewHTTPError(http.StatusConflict, "Match is full")
	case errors.Is(err, models.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, "Match is not accepting that")
	case errors.Is(err, models.ErrCodeTaken), errors.Is(err, models.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "Try again")
	case errors.Is(err, models.ErrTransient):
		log.Warn().Err(err).Msg("store unavailable")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service unavailable")
	default:
		log.Error().Err(err).Msg("unexpected error")
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal error")
	}
}
