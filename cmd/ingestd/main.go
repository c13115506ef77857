package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/drive"
	"github.com/demandcast/backend-go/internal/repository"
	"github.com/demandcast/backend-go/internal/repository/postgres"
	"github.com/demandcast/backend-go/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	if cfg.Drive.CredentialsJSON == "" {
		logger.Log.Fatal().Msg("GOOGLE_DRIVE_CREDENTIALS_JSON is required")
	}

	ctx := context.Background()
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to initialize drive service")
	}

	var repo repository.SalesRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to migrate schema")
		}
		repo = postgres.NewSalesRepository(db)
	}

	ingestService := drive.NewIngestService(driveService, repo, cfg.App.UploadDir)

	r := mux.NewRouter()
	drive.NewHandler(driveService, ingestService).RegisterRoutes(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("ingest daemon starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Fatal().Err(err).Msg("ingest daemon stopped")
	}
}
