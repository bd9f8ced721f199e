// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/stockrecon/internal/api"
	"github.com/andresuchdata/stockrecon/internal/cache"
	"github.com/andresuchdata/stockrecon/internal/config"
	"github.com/andresuchdata/stockrecon/internal/inventorysync"
	"github.com/andresuchdata/stockrecon/internal/lifecycle"
	"github.com/andresuchdata/stockrecon/internal/reconcile"
	"github.com/andresuchdata/stockrecon/internal/repository/postgres"
	"github.com/andresuchdata/stockrecon/internal/resolver"
	"github.com/andresuchdata/stockrecon/internal/service"
	"github.com/andresuchdata/stockrecon/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		logger.UseJSON()
		gin.SetMode(gin.ReleaseMode)
	}
	logger.SetLevel(cfg.Log.Level)

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	locker, err := cache.NewOrderLocker(cfg.Cache, cfg.Reconcile.LockTTL())
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize order locker")
	}

	if cfg.Sync.APIToken == "" || cfg.Sync.TenantID == "" {
		logger.Log.Warn().Msg("Inventory sync is not configured; pushes will fail with a configuration error")
	}

	// Initialize services
	stockRepo := postgres.NewStockRepository(db)
	orderRepo := postgres.NewPORepository(db)

	res := resolver.New(stockRepo, resolver.WithMaxParallel(cfg.Reconcile.ResolverMaxParallel))
	syncClient := inventorysync.NewClient(cfg.Sync)
	orchestrator := reconcile.NewOrchestrator(res, stockRepo, syncClient, reconcile.Options{
		TenantID:    cfg.Sync.TenantID,
		SyncTimeout: cfg.Sync.Timeout(),
	})

	services := &api.Services{
		Lifecycle: lifecycle.NewService(orderRepo, locker, orchestrator),
		Planning:  service.NewPlanningService(stockRepo),
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// in-flight reconciliations get the sync timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.Timeout()+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
