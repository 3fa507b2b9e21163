package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/models"
)

const testSecret = "test-secret"

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, identity)
	})
	return r
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	token, err := GenerateToken(models.Identity{UserID: 42, Nickname: "kim", Email: "kim@example.com"}, testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	setupAuthRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":42,"nickname":"kim","email":"kim@example.com"}`, rec.Body.String())
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	token, err := GenerateToken(models.Identity{UserID: 7}, testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	rec := httptest.NewRecorder()
	setupAuthRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	expired, err := GenerateToken(models.Identity{UserID: 7}, testSecret, -time.Minute)
	require.NoError(t, err)
	foreign, err := GenerateToken(models.Identity{UserID: 7}, "other-secret", time.Hour)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":        "",
		"wrong scheme":   "Basic abc",
		"expired":        "Bearer " + expired,
		"foreign secret": "Bearer " + foreign,
		"garbage":        "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			setupAuthRouter().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestParseTokenRequiresNumericSubject(t *testing.T) {
	token, err := GenerateToken(models.Identity{UserID: 0}, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}
