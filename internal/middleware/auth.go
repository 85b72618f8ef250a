package middleware

import (
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/auth"
	"order-workflow/internal/handler/response"
	"order-workflow/internal/model"
	"order-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
)

// AuthMiddleware はJWT認証ミドルウェア
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Error(c, apperror.SessionExpired("Token requerido"))
			c.Abort()
			return
		}

		// 失効・無効化済みユーザーもここで弾かれる
		identity, _, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// GetIdentityFromContext はコンテキストから認証済みユーザーを取得
func GetIdentityFromContext(c *gin.Context) (*model.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*model.Identity)
	return identity, ok
}

// ActorFromContext returns the workflow actor of the authenticated request.
func ActorFromContext(c *gin.Context) (workflow.Actor, bool) {
	identity, ok := GetIdentityFromContext(c)
	if !ok {
		return workflow.Actor{}, false
	}
	return workflow.ActorFrom(*identity), true
}

// GetTokenFromContext returns the raw bearer token accepted by AuthMiddleware.
func GetTokenFromContext(c *gin.Context) string {
	return c.GetString(tokenKey)
}
