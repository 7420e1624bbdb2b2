package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/api/handlers"
	"github.com/customeros/mailchannel/api/middleware"
	"github.com/customeros/mailchannel/internal/tracing"
)

const AppSource = "mailchannel"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, h *handlers.APIHandlers, apiKey string) {
	if h == nil {
		panic("Handlers cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", h.Status.Status())

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apiKey,
	}))
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		api.GET("/accounts", h.Status.Accounts())
		api.POST("/probe", h.Status.Probe())

		messages := api.Group("/messages")
		{
			messages.POST("/:id/reply", h.Messages.Reply())
		}
	}
}
