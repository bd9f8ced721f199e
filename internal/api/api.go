// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/andresuchdata/stockrecon/internal/api/handlers"
	"github.com/andresuchdata/stockrecon/internal/api/middleware"
	"github.com/andresuchdata/stockrecon/internal/lifecycle"
	"github.com/andresuchdata/stockrecon/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Lifecycle *lifecycle.Service
	Planning  *service.PlanningService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.Lifecycle != nil {
			orderHandler := handlers.NewOrderHandler(services.Lifecycle)
			orderGroup := apiGroup.Group("/orders")
			{
				orderGroup.POST("", orderHandler.Create)
				orderGroup.GET("/:id", orderHandler.Get)
				orderGroup.POST("/:id/confirm", orderHandler.Confirm)
				orderGroup.POST("/:id/ship", orderHandler.Ship)
				orderGroup.POST("/:id/receive", orderHandler.Receive)
				orderGroup.POST("/:id/discrepancy", orderHandler.RecordDiscrepancy)
				orderGroup.POST("/:id/replacements", orderHandler.ReceiveReplacement)
				orderGroup.POST("/:id/complete", orderHandler.CompleteReconciliation)
			}
		}

		if services.Planning != nil {
			planningHandler := handlers.NewPlanningHandler(services.Planning)
			planningGroup := apiGroup.Group("/planning")
			{
				planningGroup.GET("/reorder", planningHandler.ListSuggestions)
				planningGroup.GET("/reorder/export", planningHandler.ExportSuggestions)
				planningGroup.GET("/products/:sku", planningHandler.GetSuggestion)
				planningGroup.PUT("/products/:sku", planningHandler.UpdatePlanningParams)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
