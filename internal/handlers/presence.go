package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/presence"
)

// PresenceService is the part of the presence engine exposed over HTTP.
type PresenceService interface {
	Get(ctx context.Context, userID int64) (models.PresenceState, error)
	Touch(ctx context.Context, userID int64) error
	SetStatus(ctx context.Context, userID int64, status models.PresenceStatus) (models.PresenceState, error)
}

type PresenceHandler struct {
	engine PresenceService
}

func NewPresenceHandler(engine PresenceService) *PresenceHandler {
	return &PresenceHandler{engine: engine}
}

type presenceResponse struct {
	models.PresenceState
	DisplayLabel string `json:"displayLabel"`
	ColorHint    string `json:"colorHint"`
}

func newPresenceResponse(st models.PresenceState) presenceResponse {
	label, color := presence.Describe(st.Status)
	return presenceResponse{PresenceState: st, DisplayLabel: label, ColorHint: color}
}

// Get handles GET /presence/:user_id.
func (h *PresenceHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	st, err := h.engine.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPresenceResponse(st))
}

// SetStatus handles PUT /presence/status.
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Status models.PresenceStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrMalformedMessage))
		return
	}
	st, err := h.engine.SetStatus(c.Request.Context(), userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPresenceResponse(st))
}

// Heartbeat handles POST /presence/heartbeat.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.engine.Touch(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
