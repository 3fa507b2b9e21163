package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}
	requestID := observability.RequestIDFromRequest(c.Request)
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if identity, ok := middleware.IdentityFrom(c); ok && identity.UserID != 0 {
		value := identity.UserID
		return &value
	}
	return nil
}

// respondError writes err as {"error", "code"} with the status of its kind.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := appErr.Message
	if appErr.Code == apperrors.ErrInternal.Code {
		message = apperrors.ErrInternal.Message
	}
	c.JSON(status, gin.H{"error": message, "code": appErr.Code})
}

func currentUser(c *gin.Context) (int64, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthenticated)
		return 0, false
	}
	return identity.UserID, true
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperrors.WithMessage(apperrors.ErrMalformedRoute, "invalid "+param))
		return 0, false
	}
	return id, true
}

func parseRoom(c *gin.Context) (models.RoomRef, bool) {
	kind := models.RoomKind(c.Param("type"))
	if !kind.Valid() {
		respondError(c, apperrors.WithMessage(apperrors.ErrMalformedRoute, "unknown room type"))
		return models.RoomRef{}, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return models.RoomRef{}, false
	}
	return models.RoomRef{Kind: kind, ID: id}, true
}
