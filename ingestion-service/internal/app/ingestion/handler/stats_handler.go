package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
)

type StatsHandler struct {
	stats     service.StatsServiceInterface
	validator *validator.Validate
}

func NewStatsHandler(stats service.StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		stats:     stats,
		validator: validator.New(),
	}
}

// ProductStats обрабатывает GET /api/stats/products
func (h *StatsHandler) ProductStats(c *gin.Context) {
	stats, err := h.stats.ProductStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to get product stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ReviewStats обрабатывает GET /api/stats/reviews?product_id&brand&days
func (h *StatsHandler) ReviewStats(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	stats, err := h.stats.ReviewStats(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err, "Failed to get review stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Timeline обрабатывает GET /api/stats/timeline?product_id&brand&days
func (h *StatsHandler) Timeline(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	timeline, err := h.stats.Timeline(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err, "Failed to get timeline")
		return
	}
	c.JSON(http.StatusOK, timeline)
}

func (h *StatsHandler) bindFilter(c *gin.Context) (entity.StatsFilter, bool) {
	var filter entity.StatsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return filter, false
	}

	if err := h.validator.Struct(filter); err != nil {
		respondError(c, http.StatusBadRequest, formatValidationError(err))
		return filter, false
	}

	return filter, true
}
