package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextActor is the key for the authenticated models.Actor.
	ContextActor = "actor"
)

// TokenVerifier validates an access token and returns its caller.
type TokenVerifier interface {
	VerifyAccess(token string) (models.Actor, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JWT returns a middleware that validates the bearer token and sets the caller in context.
func JWT(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := BearerToken(header)
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		actor, err := verifier.VerifyAccess(token)
		if err != nil {
			logger.Debug("token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextActor, actor)
		c.Set(ContextUserID, actor.ID)
		c.Set(ContextUserRole, string(actor.Role))
		c.Set(ContextUserEmail, actor.Email)
		c.Next()
	}
}

// CurrentActor returns the authenticated caller set by JWT.
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return models.Actor{}, false
	}
	a, ok := v.(models.Actor)
	return a, ok
}

// MustActor is CurrentActor for routes mounted behind JWT.
func MustActor(c *gin.Context) models.Actor {
	return c.MustGet(ContextActor).(models.Actor)
}
