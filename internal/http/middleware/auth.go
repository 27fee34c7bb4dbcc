// README: JWT auth middleware; the actor's role is bound to the token at
// issue time and never read from the request.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cookroute/internal/infra"
)

const actorKey = "actor"

func Auth(codec *infra.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := codec.Verify(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(actorKey, claims)
		c.Next()
	}
}

// RequireRole gates a route group to one role. Runs after Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Actor(c)
		if !ok || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Actor returns the verified claims set by Auth.
func Actor(c *gin.Context) (infra.ActorClaims, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return infra.ActorClaims{}, false
	}
	claims, ok := v.(infra.ActorClaims)
	return claims, ok
}
