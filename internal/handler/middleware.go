package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck/chat-core/internal/auth"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/pkg/response"
)

const (
	identityKey   = "identity"
	userIDKey     = "user_id"
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// RequireAuth returns a Gin middleware that resolves the caller's
// connection credential and stores the verified identity in the request
// context.
func RequireAuth(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			response.Unauthorized(c, "invalid credential")
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Set(userIDKey, identity.UserID)
		c.Next()
	}
}

// identityFrom extracts the verified identity set by RequireAuth.
func identityFrom(c *gin.Context) *domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*domain.Identity); ok {
			return id
		}
	}
	return nil
}
