package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/kubewizard/kubewizard/internal/agent"
	"github.com/kubewizard/kubewizard/internal/memory"
)

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

type memoryResponse struct {
	UserID   string           `json:"user_id"`
	Messages []memory.Message `json:"messages"`
}

func (s *Server) handleChat(c *echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	reply, err := s.converse(c.Request().Context(), req.UserID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrReasoningUnreachable) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, chatResponse{
		Reply:     reply,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetMemory(c *echo.Context) error {
	userID := c.Param("user_id")
	var limit int
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	msgs, err := s.store.Read(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if msgs == nil {
		msgs = []memory.Message{}
	}
	return c.JSON(http.StatusOK, memoryResponse{UserID: userID, Messages: msgs})
}

func (s *Server) handleClearMemory(c *echo.Context) error {
	userID := c.Param("user_id")
	if err := s.store.Clear(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "cleared": true})
}

func (s *Server) handleRoot(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name": "kubewizard",
		"endpoints": []string{
			"POST /api/chat",
			"GET /api/memory/:user_id",
			"DELETE /api/memory/:user_id",
			"GET /healthz",
		},
	})
}

func (s *Server) handleHealthz(c *echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK
	checks := make(map[string]string, len(s.check))
	for name, fn := range s.check {
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	return c.JSON(status, map[string]any{"status": overall, "checks": checks})
}
