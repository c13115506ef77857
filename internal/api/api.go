package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/demandcast/backend-go/internal/api/handlers"
	"github.com/demandcast/backend-go/internal/api/middleware"
	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/service"
)

func NewRouter(svc *service.DashboardService, cfg *config.Config) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.Logger(),
		middleware.Recovery(),
	)

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(cfg.Server.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	dashboardHandler := handlers.NewDashboardHandler(svc, cfg.Forecast)
	modelHandler := handlers.NewModelHandler(svc)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/dashboard", dashboardHandler.GetDashboard)
		v1.GET("/replenishment", dashboardHandler.GetReplenishment)
		v1.POST("/upload", dashboardHandler.Upload)
		v1.GET("/datasets", dashboardHandler.ListDatasets)

		models := v1.Group("/models")
		{
			models.POST("/train", modelHandler.Train)
			models.GET("/forecast", modelHandler.Forecast)
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
		for _, part := range strings.Split(origin, ",") {
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
