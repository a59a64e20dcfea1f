package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusperks/backend/internal/auth"
	"github.com/campusperks/backend/pkg/response"
)

const (
	// ContextAccountID is the key for the authenticated account ID in gin context.
	ContextAccountID = "account_id"
	// ContextRole is the key for the account role in gin context.
	ContextRole = "account_role"
	// ContextEmail is the key for the account email in gin context.
	ContextEmail = "account_email"
)

// JWT returns a middleware that validates a session JWT and sets account claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.ValidateSession(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextAccountID, claims.AccountID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}
