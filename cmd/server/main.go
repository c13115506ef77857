package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/demandcast/backend-go/internal/api"
	"github.com/demandcast/backend-go/internal/cache"
	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/features"
	"github.com/demandcast/backend-go/internal/model"
	"github.com/demandcast/backend-go/internal/repository"
	"github.com/demandcast/backend-go/internal/repository/postgres"
	"github.com/demandcast/backend-go/internal/service"
	"github.com/demandcast/backend-go/internal/storage"
	"github.com/demandcast/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var repo repository.SalesRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.EnsureSchema(context.Background()); err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to migrate schema")
		}
		repo = postgres.NewSalesRepository(db)
	}

	dashboardCache, err := cache.NewDashboardCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("cache unavailable, continuing without it")
		dashboardCache = cache.NewNoopDashboardCache()
	}

	var artifacts storage.ObjectStorage
	if cfg.Storage.Enabled {
		artifacts, err = storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to connect to object storage")
		}
	}

	models := model.NewStore(features.NewBuilder(), model.Options{
		Lambda:          cfg.Model.RidgeLambda,
		HoldoutFraction: cfg.Model.HoldoutFraction,
		Artifacts:       artifacts,
	})

	svc := service.NewDashboardService(cfg, dashboardCache, models, repo)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(svc, cfg),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Log.Info().Msg("server exiting")
}
