package http

import (
	"github.com/gin-gonic/gin"

	"github.com/powderchaser/backend/config"
	"github.com/powderchaser/backend/internal/infrastructure/metrics"
	"github.com/powderchaser/backend/internal/pkg/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, m *metrics.Metrics, log logger.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check and metrics endpoints
	router.GET("/health", handler.HealthCheck)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst, log))
	{
		resorts := v1.Group("/resorts")
		{
			resorts.GET("", handler.ListResorts)
			resorts.GET("/:id", handler.GetResort)
			resorts.GET("/:id/conditions", handler.GetConditions)
			resorts.GET("/:id/snow-quality", handler.GetQualitySummary)
			resorts.GET("/:id/timeline", handler.GetTimeline)
		}

		v1.GET("/conditions/batch", handler.GetBatchConditions)
		v1.GET("/snow-quality/batch", handler.GetBatchQuality)

		recommendations := v1.Group("/recommendations")
		{
			recommendations.GET("", handler.GetRecommendations)
			recommendations.GET("/best", handler.GetBestRecommendations)
		}

		v1.GET("/favorites/overview", handler.GetFavoritesOverview)
		v1.DELETE("/cache", handler.ClearCache)
	}

	return router
}
