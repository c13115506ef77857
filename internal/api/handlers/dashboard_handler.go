package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/replenish"
	"github.com/demandcast/backend-go/internal/service"
)

// maxForecastDays bounds the forecast horizon a request may ask for.
const maxForecastDays = 365

type DashboardHandler struct {
	service  *service.DashboardService
	defaults config.ForecastConfig
}

func NewDashboardHandler(svc *service.DashboardService, defaults config.ForecastConfig) *DashboardHandler {
	return &DashboardHandler{service: svc, defaults: defaults}
}

func (h *DashboardHandler) parseQuery(c *gin.Context) (domain.DashboardQuery, bool) {
	fileName := strings.TrimSpace(c.Query("file_name"))
	if fileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_name parameter is required"})
		return domain.DashboardQuery{}, false
	}

	query := domain.DashboardQuery{
		FileName:     fileName,
		ForecastDays: intQuery(c, "forecast_days", h.defaults.HorizonDays),
		LeadTimeDays: intQuery(c, "lead_time_days", h.defaults.LeadTimeDays),
		BufferDays:   intQuery(c, "buffer_days", h.defaults.BufferDays),
	}
	if query.ForecastDays > maxForecastDays {
		query.ForecastDays = maxForecastDays
	}
	return query, true
}

func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	query, ok := h.parseQuery(c)
	if !ok {
		return
	}

	data, err := h.service.Dashboard(c.Request.Context(), query)
	if err != nil {
		respondError(c, err, "failed to build dashboard")
		return
	}

	c.JSON(http.StatusOK, data)
}

func (h *DashboardHandler) GetReplenishment(c *gin.Context) {
	query, ok := h.parseQuery(c)
	if !ok {
		return
	}

	params := replenish.Params{
		Policy:       replenish.ParsePolicy(c.DefaultQuery("policy", h.defaults.ReorderPolicy)),
		LeadTimeDays: query.LeadTimeDays,
		BufferDays:   query.BufferDays,
		ForecastDays: query.ForecastDays,
	}

	report, err := h.service.Replenishment(c.Request.Context(), query.FileName, params)
	if err != nil {
		respondError(c, err, "failed to compute replenishment")
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *DashboardHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return
	}

	ext := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(fileExt(fileHeader.Filename), ".")))
	if ext != "csv" && ext != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv and .xlsx files are supported"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file", "details": err.Error()})
		return
	}
	defer src.Close()

	dataset, err := h.service.SaveUpload(c.Request.Context(), fileHeader.Filename, src)
	if err != nil {
		respondError(c, err, "failed to ingest upload")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"dataset": dataset,
	})
}

func (h *DashboardHandler) ListDatasets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	datasets, err := h.service.Datasets(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to list datasets")
		return
	}

	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func fileExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}

// respondError maps domain sentinels onto HTTP statuses.
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMissingRequiredField):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientHistory), errors.Is(err, domain.ErrModelFitting):
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}
