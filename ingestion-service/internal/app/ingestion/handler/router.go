package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mlreviews/pkg/logger"
	"mlreviews/pkg/metrics"
)

const ServiceName = "ingestion-service"

// Handlers - все обработчики HTTP API
type Handlers struct {
	Catalog   *CatalogHandler
	Stats     *StatsHandler
	Ingestion *IngestionHandler
	Health    *HealthHandler
}

// SetupRoutes настраивает все маршруты приложения
func SetupRoutes(h Handlers, authMiddleware *AuthMiddleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware(ServiceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", h.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/products", h.Catalog.ListProducts)
		api.GET("/products/:id", h.Catalog.GetProduct)
		api.GET("/products/:id/reviews", h.Catalog.ProductReviews)
		api.GET("/brands/:brand/products", h.Catalog.ProductsByBrand)

		api.GET("/reviews/rating/:rating", h.Catalog.ReviewsByRating)
		api.GET("/reviews/sentiment/:label", h.Catalog.ReviewsBySentiment)
		api.GET("/reviews/recent", h.Catalog.RecentReviews)

		api.GET("/stats/products", h.Stats.ProductStats)
		api.GET("/stats/reviews", h.Stats.ReviewStats)
		api.GET("/stats/timeline", h.Stats.Timeline)

		api.GET("/search", h.Catalog.Search)

		// Загрузка и разметка - только для администраторов
		admin := api.Group("")
		admin.Use(authMiddleware.Authenticate())
		admin.Use(authMiddleware.RequireRole("admin"))
		{
			admin.POST("/ingest", h.Ingestion.Ingest)
			admin.POST("/enrichment/run", h.Ingestion.RunEnrichment)
		}
	}

	return router
}
