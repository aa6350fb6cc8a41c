// Package http provides the HTTP transport for the interview service.
package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mariusarnbjerg/Morton/internal/domain"
	"github.com/mariusarnbjerg/Morton/internal/extract"
	"github.com/mariusarnbjerg/Morton/internal/orchestrator"
	"github.com/mariusarnbjerg/Morton/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	orch       *orchestrator.Orchestrator
	registry   *store.Registry
	transcript store.TranscriptStore
}

// NewHandler creates a new handler.
func NewHandler(orch *orchestrator.Orchestrator, registry *store.Registry, transcript store.TranscriptStore) *Handler {
	return &Handler{
		orch:       orch,
		registry:   registry,
		transcript: transcript,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/conversations", h.CreateConversation)
	e.POST("/v1/conversations/:conversation_id/turns", h.HandleTurn)
	e.POST("/v1/conversations/:conversation_id/summary", h.BuildSummary)
	e.GET("/v1/conversations/:conversation_id/messages", h.GetMessages)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// CreateConversation starts a new interview and returns the first
// question.
// POST /v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	conv := domain.NewConversation(uuid.NewString())
	if err := h.registry.Create(conv); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()
	var res domain.TurnResult
	err := h.registry.With(conv.ConversationID, func(conv *domain.Conversation) error {
		var err error
		res, err = h.orch.Start(ctx, conv)
		return err
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"conversation_id": conv.ConversationID,
		"text":            res.Text,
		"done":            res.Done,
	})
}

// TurnRequest is one patient utterance.
type TurnRequest struct {
	Text string      `json:"text"`
	Mode domain.Mode `json:"mode,omitempty"`
}

// HandleTurn processes one patient turn.
// POST /v1/conversations/:conversation_id/turns
func (h *Handler) HandleTurn(c echo.Context) error {
	conversationID := c.Param("conversation_id")

	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Mode == "" {
		req.Mode = domain.ModeAnswer
	}
	if req.Mode != domain.ModeAnswer && req.Mode != domain.ModeChat {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "mode must be 'answer' or 'chat'"})
	}

	ctx := c.Request().Context()
	var res domain.TurnResult
	err := h.registry.With(conversationID, func(conv *domain.Conversation) error {
		var err error
		res, err = h.orch.HandleTurn(ctx, conv, req.Text, req.Mode)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, res)
}

// BuildSummary finalizes a completed interview.
// POST /v1/conversations/:conversation_id/summary
func (h *Handler) BuildSummary(c echo.Context) error {
	conversationID := c.Param("conversation_id")

	ctx := c.Request().Context()
	var summary map[string]any
	err := h.registry.With(conversationID, func(conv *domain.Conversation) error {
		var err error
		summary, err = h.orch.Finalize(ctx, conv)
		return err
	})

	switch {
	case err == nil:
		return c.JSON(http.StatusOK, summary)
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	case errors.Is(err, orchestrator.ErrNotDone):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrNoSummarizer), errors.Is(err, orchestrator.ErrNoTemplate):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) {
			return c.JSON(http.StatusBadGateway, map[string]interface{}{
				"error":       exErr.Error(),
				"last_output": exErr.LastOutput,
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// GetMessages returns the full transcript for a conversation.
// GET /v1/conversations/:conversation_id/messages
func (h *Handler) GetMessages(c echo.Context) error {
	conversationID := c.Param("conversation_id")

	if _, err := h.registry.Snapshot(conversationID); errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}

	ctx := c.Request().Context()
	messages, err := h.transcript.Transcript(ctx, conversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}
