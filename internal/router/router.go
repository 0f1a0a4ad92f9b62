package router

import (
	"github.com/gin-gonic/gin"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/handler"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/middleware"
)

// Setup configures the worker's health server.
func Setup(healthH *handler.HealthHandler) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	return r
}
