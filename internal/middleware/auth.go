package middleware

import (
	"collab-docs/internal/auth"
	"collab-docs/internal/errors"
	"strings"

	"github.com/gin-gonic/gin"
)

type Auth struct {
	JWTSecret      []byte
	InternalSecret string
}

// AuthMiddleWare resolves the provider token to a user identity. The
// token rides the Authorization header, or the token query param for
// websocket upgrades where headers can't be set by browsers.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		var token string
		tokenQuery := ctx.Query("token")

		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if tokenQuery != "" {
			token = tokenQuery
		} else {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		identity, err := auth.VerifyToken(m.JWTSecret, token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", identity.UserID)
		ctx.Set("user_name", identity.Name)
		ctx.Set("user_email", identity.Email)
		ctx.Next()
	}
}

// InternalAuthMiddleware guards server-to-server routes with a shared
// secret instead of a user token.
func (m *Auth) InternalAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(
			ctx.GetHeader("Authorization"),
			"Bearer ",
		)

		if token != m.InternalSecret {
			ctx.Error(errors.Unauthorized("Unauthorized internal call!", nil))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
