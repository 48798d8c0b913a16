package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
)

// IngestionHandler запускает загрузку отзывов и разметку тональности
type IngestionHandler struct {
	ingestion  service.IngestionServiceInterface
	enrichment service.EnrichmentServiceInterface
	catalog    service.CatalogBatchServiceInterface
	validator  *validator.Validate
}

func NewIngestionHandler(
	ingestion service.IngestionServiceInterface,
	enrichment service.EnrichmentServiceInterface,
	catalog service.CatalogBatchServiceInterface,
) *IngestionHandler {
	return &IngestionHandler{
		ingestion:  ingestion,
		enrichment: enrichment,
		catalog:    catalog,
		validator:  validator.New(),
	}
}

// Ingest обрабатывает POST /api/ingest.
// Ответ всегда содержит сводку, ошибки отдельных товаров лежат в items.
func (h *IngestionHandler) Ingest(c *gin.Context) {
	var req entity.IngestHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		respondError(c, http.StatusBadRequest, formatValidationError(err))
		return
	}

	if req.FromCatalog {
		h.ingestCatalog(c, req)
		return
	}

	reqs := make([]entity.IngestRequest, 0, len(req.ProductIDs)+len(req.URLs))
	for _, id := range req.ProductIDs {
		reqs = append(reqs, entity.IngestRequest{ProductID: id, Target: req.Target})
	}
	for _, u := range req.URLs {
		reqs = append(reqs, entity.IngestRequest{URL: u, Target: req.Target})
	}
	if len(reqs) == 0 {
		respondError(c, http.StatusBadRequest, service.ErrNoInput.Error())
		return
	}

	summary := h.ingestion.IngestBatch(c.Request.Context(), reqs)
	c.JSON(http.StatusOK, summary)
}

func (h *IngestionHandler) ingestCatalog(c *gin.Context, req entity.IngestHTTPRequest) {
	summary, err := h.catalog.Run(c.Request.Context(), entity.CatalogBatchOptions{
		ProductID:  req.ProductID,
		MinReviews: req.MinReviews,
		Action:     req.Action,
		Target:     req.Target,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to process stored products")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunEnrichment обрабатывает POST /api/enrichment/run
func (h *IngestionHandler) RunEnrichment(c *gin.Context) {
	var req entity.EnrichmentHTTPRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		respondError(c, http.StatusBadRequest, formatValidationError(err))
		return
	}

	opts := entity.EnrichmentOptions{
		ProductID: req.ProductID,
		BatchSize: req.BatchSize,
		DryRun:    req.DryRun,
	}
	if req.FromDate != "" {
		from, err := time.Parse(time.DateOnly, req.FromDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid from_date")
			return
		}
		opts.FromDate = &from
	}

	stats, err := h.enrichment.Run(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   http.StatusText(http.StatusInternalServerError),
			"message": "Enrichment pass stopped: " + err.Error(),
			"stats":   stats,
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
