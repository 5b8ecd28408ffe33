// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"placement-backend/internal/common/auth"
	"placement-backend/internal/common/logger"
)

// NewRouter wires the public surface: health and metrics unauthenticated,
// everything under /api behind the JWT middleware.
func NewRouter(handlers *Handlers, jwtSecret string, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	apiGroup.Use(auth.Middleware(jwtSecret))
	{
		apiGroup.POST("/search", handlers.Search)
		apiGroup.POST("/students/:id/view-cv", handlers.ViewCV)
		apiGroup.POST("/students/:id/contact", handlers.ContactStudent)
		apiGroup.GET("/tokens/balance", handlers.TokenBalance)
		apiGroup.POST("/tokens/purchase", handlers.PurchaseTokens)
	}

	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Info("request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(started).Milliseconds(),
		})
	}
}
