package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/repositories"
)

// HistoryHandler serves paged room history.
type HistoryHandler struct {
	members  repositories.MembershipRepository
	messages repositories.MessageRepository
}

func NewHistoryHandler(members repositories.MembershipRepository, messages repositories.MessageRepository) *HistoryHandler {
	return &HistoryHandler{members: members, messages: messages}
}

// GetMessages handles GET /rooms/:type/:id/messages?before=&limit=.
func (h *HistoryHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	room, ok := parseRoom(c)
	if !ok {
		return
	}

	before := time.Now().UTC()
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(c, apperrors.WithMessage(apperrors.ErrMalformedMessage, "before must be RFC3339"))
			return
		}
		before = parsed
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperrors.WithMessage(apperrors.ErrMalformedMessage, "limit must be a number"))
			return
		}
		limit = parsed
	}

	member, err := h.members.IsMember(c.Request.Context(), userID, room)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	msgs, err := h.messages.Page(c.Request.Context(), room, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"messages": msgs}
	if len(msgs) > 0 {
		resp["next_before"] = msgs[len(msgs)-1].CreatedAt
	}
	c.JSON(http.StatusOK, resp)
}
