package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"chat-gateway/internal/models"
)

const (
	ContextKeyUserID   = "userID"
	ContextKeyIdentity = "identity"
)

var errInvalidToken = errors.New("invalid token")

// Claims carries the identity issued by the auth service.
type Claims struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token and returns the identity it carries. The
// subject claim holds the numeric user id.
func ParseToken(tokenString, secret string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, errInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return models.Identity{}, errInvalidToken
	}
	return models.Identity{UserID: userID, Nickname: claims.Nickname, Email: claims.Email}, nil
}

// GenerateToken signs a token for identity. Used by tooling and tests.
func GenerateToken(identity models.Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Nickname: identity.Nickname,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// AuthMiddleware validates the bearer token from the Authorization header, or the
// token query parameter browsers use for websocket handshakes.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
				return
			}
			raw = parts[1]
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		identity, err := ParseToken(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity attached by AuthMiddleware.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := val.(models.Identity)
	return identity, ok
}

// SetIdentity attaches identity to the request context.
func SetIdentity(c *gin.Context, identity models.Identity) {
	c.Set(ContextKeyUserID, identity.UserID)
	c.Set(ContextKeyIdentity, identity)
}
