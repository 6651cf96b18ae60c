package middleware

import (
	"strings"

	"github.com/geolens/engine/internal/pkg/jwt"
	"github.com/geolens/engine/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const ContextKeyOperator = "operator"

// Auth returns a middleware that requires a valid operator bearer token.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := NormalizeToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c)
			return
		}
		claims, err := jwt.Parse(token)
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyOperator, claims.Operator)
		c.Next()
	}
}

// CurrentOperator extracts the authenticated operator from context.
func CurrentOperator(c *gin.Context) string {
	v, _ := c.Get(ContextKeyOperator)
	op, _ := v.(string)
	return op
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
