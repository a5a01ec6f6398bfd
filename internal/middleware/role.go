package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/response"
)

var errNoActor = apperr.Authentication("authentication required")

// RequireRole lets through callers whose role is one of roles. It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := apperr.Forbidden("requires role: " + strings.Join(names, " or "))

	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			response.Error(c, errNoActor)
			c.Abort()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		response.Error(c, denied)
		c.Abort()
	}
}
