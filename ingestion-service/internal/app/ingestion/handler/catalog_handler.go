package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
	"mlreviews/pkg/logger"
)

// CatalogHandler - чтение товаров и отзывов, refresh=true перечитывает
// данные с маркетплейса перед ответом
type CatalogHandler struct {
	catalog   service.CatalogServiceInterface
	ingestion service.IngestionServiceInterface
}

func NewCatalogHandler(catalog service.CatalogServiceInterface, ingestion service.IngestionServiceInterface) *CatalogHandler {
	return &CatalogHandler{
		catalog:   catalog,
		ingestion: ingestion,
	}
}

// ListProducts обрабатывает GET /api/products?page&limit
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	resp, err := h.catalog.ListProducts(c.Request.Context(), page, limit)
	if err != nil {
		respondServiceError(c, err, "Failed to list products")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetProduct обрабатывает GET /api/products/:id?refresh=
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id := c.Param("id")

	if queryBool(c, "refresh") {
		product, err := h.ingestion.RefreshProduct(c.Request.Context(), id)
		if err != nil {
			respondServiceError(c, err, "Failed to refresh product")
			return
		}
		c.JSON(http.StatusOK, product)
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to get product")
		return
	}

	c.JSON(http.StatusOK, product)
}

// ProductReviews обрабатывает GET /api/products/:id/reviews?order_by&limit&refresh=
func (h *CatalogHandler) ProductReviews(c *gin.Context) {
	id := c.Param("id")
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	if queryBool(c, "refresh") {
		result, err := h.ingestion.IngestProduct(c.Request.Context(), entity.IngestRequest{ProductID: id})
		if err != nil {
			// partial - часть отзывов уже сохранена, отдаем то, что есть
			if result == nil || result.Status != entity.IngestPartial {
				respondServiceError(c, err, "Failed to refresh reviews")
				return
			}
			logger.Warn().Err(err).Str("product_id", id).Msg("Reviews refreshed partially")
		}
	}

	reviews, err := h.catalog.ProductReviews(c.Request.Context(), id, c.Query("order_by"), limit)
	if err != nil {
		respondServiceError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{
		Reviews: reviews,
		Total:   len(reviews),
	})
}

// ProductsByBrand обрабатывает GET /api/brands/:brand/products
func (h *CatalogHandler) ProductsByBrand(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	products, err := h.catalog.ListProductsByBrand(c.Request.Context(), c.Param("brand"), limit)
	if err != nil {
		respondServiceError(c, err, "Failed to list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
	})
}

// ReviewsByRating обрабатывает GET /api/reviews/rating/:rating
func (h *CatalogHandler) ReviewsByRating(c *gin.Context) {
	rating, err := strconv.Atoi(c.Param("rating"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid rating")
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	reviews, err := h.catalog.ReviewsByRating(c.Request.Context(), rating, limit)
	if err != nil {
		respondServiceError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{Reviews: reviews, Total: len(reviews)})
}

// ReviewsBySentiment обрабатывает GET /api/reviews/sentiment/:label
func (h *CatalogHandler) ReviewsBySentiment(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	reviews, err := h.catalog.ReviewsBySentiment(c.Request.Context(), entity.SentimentLabel(c.Param("label")), limit)
	if err != nil {
		respondServiceError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{Reviews: reviews, Total: len(reviews)})
}

// RecentReviews обрабатывает GET /api/reviews/recent?days&limit
func (h *CatalogHandler) RecentReviews(c *gin.Context) {
	days, ok := queryInt(c, "days", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	reviews, err := h.catalog.RecentReviews(c.Request.Context(), days, limit)
	if err != nil {
		respondServiceError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{Reviews: reviews, Total: len(reviews)})
}

// Search обрабатывает GET /api/search?q&limit
func (h *CatalogHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	results, err := h.catalog.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondServiceError(c, err, "Search failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}
