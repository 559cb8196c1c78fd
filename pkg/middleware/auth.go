package middleware

import (
	"strings"

	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/jwt"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the authenticated user id
const ContextUserID = "userID"

// TokenValidator checks a bearer token
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// JWTAuth validates the Authorization bearer token. With optional set,
// requests without a header pass through unauthenticated; a bad token is
// still rejected.
func JWTAuth(tokens TokenValidator, log *logger.Logger, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if optional {
				c.Next()
				return
			}
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Authorization header is required"))
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if tokens == nil {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "token authentication is not configured"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Warn("invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}
