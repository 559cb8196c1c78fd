package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/jwt"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authEngine(tokens TokenValidator, optional bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/me", JWTAuth(tokens, logger.Nop(), optional), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	tokens := jwt.NewService("secret", time.Hour)
	token, err := tokens.GenerateToken("alice", "Alice")
	require.NoError(t, err)

	tests := []struct {
		name     string
		optional bool
		header   string
		status   int
		body     string
	}{
		{"missing header", false, "", http.StatusUnauthorized, ""},
		{"missing header optional", true, "", http.StatusOK, ""},
		{"bad token", true, "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", false, "Bearer " + token, http.StatusOK, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			authEngine(tokens, tt.optional).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
