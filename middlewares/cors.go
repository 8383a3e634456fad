package middlewares

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddlewares allows the configured origin, or any origin when it is empty.
func CORSMiddlewares(allowedOrigin string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowedOrigin == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{allowedOrigin}
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
