package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
)

// ArchiveIndexer stores and searches tagged archive items.
type ArchiveIndexer interface {
	Index(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error)
	Autocomplete(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, archiveItemID int64) (models.ArchiveItem, error)
	Remove(ctx context.Context, archiveItemID, uploaderID int64) error
}

// ArchiveHandler manages archive items and tag search.
type ArchiveHandler struct {
	members repositories.MembershipRepository
	indexer ArchiveIndexer
	audit   *telemetry.AuditEmitter
}

func NewArchiveHandler(members repositories.MembershipRepository, indexer ArchiveIndexer, audit *telemetry.AuditEmitter) *ArchiveHandler {
	return &ArchiveHandler{members: members, indexer: indexer, audit: audit}
}

// Autocomplete handles GET /archives/tags?prefix=.
func (h *ArchiveHandler) Autocomplete(c *gin.Context) {
	names, err := h.indexer.Autocomplete(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": names})
}

// Create handles POST /archives.
func (h *ArchiveHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		RoomType string `json:"roomType" binding:"required,oneof=group archive"`
		RoomID   int64  `json:"roomId" binding:"required,gt=0"`
		FileURL  string `json:"fileUrl" binding:"required"`
		FileName string `json:"fileName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrMalformedMessage))
		return
	}

	room := models.RoomRef{Kind: models.RoomKind(req.RoomType), ID: req.RoomID}
	member, err := h.members.IsMember(c.Request.Context(), userID, room)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		h.audit.Emit(c.Request.Context(), "WARN", "archive upload refused", room.String(), requestIDFromContext(c), userIDFromContext(c))
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	item, err := h.indexer.Index(c.Request.Context(), models.ArchiveItem{
		RoomRef:    room,
		UploaderID: userID,
		FileURL:    req.FileURL,
		FileName:   req.FileName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Get handles GET /archives/:id.
func (h *ArchiveHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	item, err := h.indexer.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	member, err := h.members.IsMember(c.Request.Context(), userID, item.RoomRef)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete handles DELETE /archives/:id. Only the uploader may delete.
func (h *ArchiveHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.indexer.Remove(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
