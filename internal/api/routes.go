package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-compatibility/internal/metrics"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, recorder *metrics.Recorder) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(RequestID())
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger())
	router.Use(Metrics(recorder))

	router.GET("/", handler.Root)
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(recorder.Handler()))
	router.GET("/analyze-compatibility", handler.AnalyzeCompatibility)

	return router
}
