package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"contractor-sync/internal/api"
	"contractor-sync/internal/api/handlers"
	"contractor-sync/internal/auth"
	"contractor-sync/internal/config"
	"contractor-sync/internal/db"
	"contractor-sync/internal/deel"
	"contractor-sync/internal/harvest"
	"contractor-sync/internal/health"
	"contractor-sync/internal/logger"
	"contractor-sync/internal/matching"
	"contractor-sync/internal/repository"
	"contractor-sync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logger)

	logger.Info().
		Str("environment", cfg.Logger.Environment).
		Str("log_level", cfg.Logger.Level).
		Msg("configuration loaded successfully")

	logger.Info().Msg("running database migrations")
	if err := db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()
	database, err := db.NewDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("database connected successfully")

	// Wire up clients, store, and services
	harvestClient := harvest.NewClient(cfg.Harvest)
	deelClient := deel.NewClient(cfg.Deel)
	mappingRepo := repository.NewMappingRepository(database.Pool)
	matcher := matching.NewMatcher(cfg.Matcher.AutoAcceptThreshold, cfg.Matcher.ReviewThreshold)

	syncService := service.NewSyncService(harvestClient, deelClient, mappingRepo, matcher)
	reviewService := service.NewReviewService(mappingRepo, deelClient)

	syncHandler := handlers.NewSyncHandler(syncService)
	mappingHandler := handlers.NewMappingHandler(reviewService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.RequestIDMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.RecoveryMiddleware())

	router.GET("/health", health.Handler(database, cfg.Database.HealthTimeout))

	v1 := router.Group("/api/v1")
	v1.Use(auth.APIKeyMiddleware(cfg))
	{
		v1.POST("/sync/run", syncHandler.Run)

		mappings := v1.Group("/mappings")
		{
			mappings.GET("", mappingHandler.List)
			mappings.GET("/pending", mappingHandler.ListPending)
			mappings.POST("/:source_id/verify", mappingHandler.Verify)
		}
	}

	addr := cfg.GetBindAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("failed to bind listener")
	}

	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
