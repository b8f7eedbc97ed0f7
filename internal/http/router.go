package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r-ford/enso-api/internal/domain"
	"github.com/r-ford/enso-api/internal/observability"
	"github.com/r-ford/enso-api/internal/usecase"
)

// SetupRouter creates and configures the Gin router. allowedOrigins
// empty means all origins are allowed.
func SetupRouter(computeUC *usecase.ComputeUseCase, regions []domain.Region, allowedOrigins []string, metrics *observability.Metrics) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(computeUC, regions, metrics)

	// API v1 routes.
	v1 := router.Group("/v1")
	enso := v1.Group("/enso")
	enso.GET("/index", handler.GetIndex)

	v1.GET("/regions", handler.GetRegions)
	v1.GET("/catalog", handler.GetCatalog)

	// Health check and metrics.
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
