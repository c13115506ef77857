package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/demandcast/backend-go/internal/service"
)

type ModelHandler struct {
	service *service.DashboardService
}

func NewModelHandler(svc *service.DashboardService) *ModelHandler {
	return &ModelHandler{service: svc}
}

type trainRequest struct {
	FileName  string `json:"file_name" binding:"required"`
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id" binding:"required"`
}

func (h *ModelHandler) Train(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	m, err := h.service.Train(c.Request.Context(), req.FileName, req.StoreID, req.ProductID)
	if err != nil {
		respondError(c, err, "failed to train model")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"store_id":       m.Key.StoreID,
		"product_id":     m.Key.ProductID,
		"train_rows":     m.TrainRows,
		"validation_mae": m.ValidationMAE,
		"trained_at":     m.TrainedAt,
	})
}

func (h *ModelHandler) Forecast(c *gin.Context) {
	fileName := strings.TrimSpace(c.Query("file_name"))
	productID := strings.TrimSpace(c.Query("product_id"))
	if fileName == "" || productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_name and product_id parameters are required"})
		return
	}

	horizon, _ := strconv.Atoi(c.Query("days"))
	if horizon <= 0 {
		horizon, _ = strconv.Atoi(c.Query("horizon"))
	}

	entries, err := h.service.ModelForecast(c.Request.Context(), fileName, c.Query("store_id"), productID, horizon)
	if err != nil {
		respondError(c, err, "failed to forecast")
		return
	}

	c.JSON(http.StatusOK, gin.H{"forecast": entries})
}
