package middleware

import (
	"order-workflow/internal/apperror"
	"order-workflow/internal/authz"
	"order-workflow/internal/handler/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequirePermission はロールの権限表でルートへのアクセスを判定する
func RequirePermission(authorizer *authz.Authorizer, logger *zap.Logger, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := GetIdentityFromContext(c)
		if !exists {
			response.Error(c, apperror.SessionExpired("Sesión no válida"))
			c.Abort()
			return
		}

		allowed, err := authorizer.Can(identity.Role, resource, action)
		if err != nil {
			logger.Error("authorization check failed",
				zap.String("role", string(identity.Role)),
				zap.String("resource", resource),
				zap.String("action", action),
				zap.Error(err))
			response.Error(c, apperror.Server("Error al comprobar permisos"))
			c.Abort()
			return
		}

		if !allowed {
			response.Error(c, apperror.NotAuthorized("No tienes permiso para esta acción"))
			c.Abort()
			return
		}

		c.Next()
	}
}
