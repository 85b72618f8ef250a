package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows only the frontend origin in production and every origin otherwise.
func CORS(frontendURL string, production bool) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if production && frontendURL != "" {
		cfg.AllowOrigins = []string{frontendURL}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition")
	cfg.AllowCredentials = true
	return cors.New(cfg)
}
