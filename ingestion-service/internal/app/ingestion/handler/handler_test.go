package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/marketplace"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
)

const testSecret = "test-secret-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router     *gin.Engine
	catalog    *MockCatalogService
	ingestion  *MockIngestionService
	enrichment *MockEnrichmentService
	batch      *MockCatalogBatchService
	stats      *MockStatsService
	dbErr      error
}

func setupTestEnv() *testEnv {
	env := &testEnv{
		catalog:    new(MockCatalogService),
		ingestion:  new(MockIngestionService),
		enrichment: new(MockEnrichmentService),
		batch:      new(MockCatalogBatchService),
		stats:      new(MockStatsService),
	}

	health := NewHealthHandler(ServiceName, map[string]CheckFunc{
		"database": func(ctx context.Context) error { return env.dbErr },
		"redis":    func(ctx context.Context) error { return nil },
	})

	env.router = SetupRoutes(Handlers{
		Catalog:   NewCatalogHandler(env.catalog, env.ingestion),
		Stats:     NewStatsHandler(env.stats),
		Ingestion: NewIngestionHandler(env.ingestion, env.enrichment, env.batch),
		Health:    health,
	}, NewAuthMiddleware(testSecret))

	return env
}

func (env *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, role, secret string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		UserID: "operator-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) entity.ErrorResponse {
	t.Helper()
	var resp entity.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ==================== Health Tests ====================

func TestHealthCheck_OK(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["database"])
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	env := setupTestEnv()
	env.dbErr = errors.New("connection refused")

	rec := env.do(http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks["database"], "connection refused")
	assert.Equal(t, "healthy", resp.Checks["redis"])
}

// ==================== Catalog Handler Tests ====================

func TestListProducts_Success(t *testing.T) {
	// Arrange
	env := setupTestEnv()
	env.catalog.On("ListProducts", mock.Anything, 2, 10).Return(&entity.ProductListResponse{
		Products: []entity.Product{{ID: "MLA1", Title: "Heladera"}},
		Total:    11,
		Page:     2,
		Limit:    10,
	}, nil)

	// Act
	rec := env.do(http.MethodGet, "/api/products?page=2&limit=10", nil, "")

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp entity.ProductListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.Total)
	assert.Equal(t, "MLA1", resp.Products[0].ID)
}

func TestListProducts_InvalidPage(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodGet, "/api/products?page=abc", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid page", decodeError(t, rec).Message)
	env.catalog.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetProduct_NotFound(t *testing.T) {
	env := setupTestEnv()
	env.catalog.On("GetProduct", mock.Anything, "MLA404").Return(nil, service.ErrProductNotFound)

	rec := env.do(http.MethodGet, "/api/products/MLA404", nil, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec).Error)
}

func TestGetProduct_RefreshErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "not found on marketplace",
			err:    &marketplace.PermanentFetchError{Endpoint: "items", StatusCode: 404, Err: marketplace.ErrNotFound},
			status: http.StatusNotFound,
		},
		{
			name:   "invalid reference",
			err:    fmt.Errorf("%w: %q", marketplace.ErrInvalidProductRef, "XYZ"),
			status: http.StatusBadRequest,
		},
		{
			name:   "transient",
			err:    &marketplace.TransientFetchError{Endpoint: "items", StatusCode: 503, Attempts: 4, Err: errors.New("unavailable")},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "permanent",
			err:    &marketplace.PermanentFetchError{Endpoint: "items", StatusCode: 403, Err: errors.New("forbidden")},
			status: http.StatusBadGateway,
		},
		{
			name:   "storage",
			err:    errors.New("failed to save product: connection reset"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv()
			env.ingestion.On("RefreshProduct", mock.Anything, "MLA1").Return(nil, tt.err)

			rec := env.do(http.MethodGet, "/api/products/MLA1?refresh=true", nil, "")

			assert.Equal(t, tt.status, rec.Code)
			env.catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestGetProduct_Refresh(t *testing.T) {
	env := setupTestEnv()
	env.ingestion.On("RefreshProduct", mock.Anything, "MLA1").Return(&entity.Product{ID: "MLA1", Price: 99.5}, nil)

	rec := env.do(http.MethodGet, "/api/products/MLA1?refresh=1", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var product entity.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))
	assert.Equal(t, 99.5, product.Price)
}

func TestProductReviews_Success(t *testing.T) {
	env := setupTestEnv()
	env.catalog.On("ProductReviews", mock.Anything, "MLA1", "rate", 5).Return([]entity.Review{
		{ID: "MLA1-1", Rate: 5},
		{ID: "MLA1-2", Rate: 4},
	}, nil)

	rec := env.do(http.MethodGet, "/api/products/MLA1/reviews?order_by=rate&limit=5", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp entity.ReviewListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	env.ingestion.AssertNotCalled(t, "IngestProduct", mock.Anything, mock.Anything)
}

func TestProductReviews_InvalidOrder(t *testing.T) {
	env := setupTestEnv()
	env.catalog.On("ProductReviews", mock.Anything, "MLA1", "likes", 0).
		Return(nil, fmt.Errorf("%w: invalid order", service.ErrInvalidInput))

	rec := env.do(http.MethodGet, "/api/products/MLA1/reviews?order_by=likes", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductReviews_RefreshPartialStillServes(t *testing.T) {
	// Arrange
	env := setupTestEnv()
	transient := &marketplace.TransientFetchError{Endpoint: "reviews", StatusCode: 429, Attempts: 4, Err: errors.New("too many requests")}
	env.ingestion.On("IngestProduct", mock.Anything, entity.IngestRequest{ProductID: "MLA1"}).
		Return(&entity.ProductIngestResult{Status: entity.IngestPartial, Collected: 50}, transient)
	env.catalog.On("ProductReviews", mock.Anything, "MLA1", "", 0).Return([]entity.Review{{ID: "MLA1-1"}}, nil)

	// Act
	rec := env.do(http.MethodGet, "/api/products/MLA1/reviews?refresh=true", nil, "")

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	env.ingestion.AssertExpectations(t)
}

func TestProductReviews_RefreshFailed(t *testing.T) {
	env := setupTestEnv()
	transient := &marketplace.TransientFetchError{Endpoint: "items", StatusCode: 500, Attempts: 4, Err: errors.New("boom")}
	env.ingestion.On("IngestProduct", mock.Anything, mock.Anything).
		Return(&entity.ProductIngestResult{Status: entity.IngestFailed}, transient)

	rec := env.do(http.MethodGet, "/api/products/MLA1/reviews?refresh=true", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env.catalog.AssertNotCalled(t, "ProductReviews", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewsByRating_InvalidParam(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodGet, "/api/reviews/rating/five", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewsBySentiment_Success(t *testing.T) {
	env := setupTestEnv()
	env.catalog.On("ReviewsBySentiment", mock.Anything, entity.SentimentPositive, 0).Return([]entity.Review{{ID: "r"}}, nil)

	rec := env.do(http.MethodGet, "/api/reviews/sentiment/positive", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecentReviews_PassesWindow(t *testing.T) {
	env := setupTestEnv()
	env.catalog.On("RecentReviews", mock.Anything, 14, 50).Return([]entity.Review{}, nil)

	rec := env.do(http.MethodGet, "/api/reviews/recent?days=14&limit=50", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	env.catalog.AssertExpectations(t)
}

func TestSearch_MissingQuery(t *testing.T) {
	env := setupTestEnv()
	env.catalog.On("Search", mock.Anything, "", 0).Return(nil, fmt.Errorf("%w: query is required", service.ErrInvalidInput))

	rec := env.do(http.MethodGet, "/api/search", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==================== Stats Handler Tests ====================

func TestReviewStats_BindsFilter(t *testing.T) {
	env := setupTestEnv()
	env.stats.On("ReviewStats", mock.Anything, entity.StatsFilter{Brand: "Apple", Days: 7}).Return(&entity.ReviewStats{
		TotalReviews:       3,
		RatingDistribution: map[string]int{"5_stars": 3},
	}, nil)

	rec := env.do(http.MethodGet, "/api/stats/reviews?brand=Apple&days=7", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp entity.ReviewStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalReviews)
}

func TestReviewStats_InvalidDays(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodGet, "/api/stats/reviews?days=99999", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Days validation failed", decodeError(t, rec).Message)

	rec = env.do(http.MethodGet, "/api/stats/reviews?days=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeline_Success(t *testing.T) {
	env := setupTestEnv()
	env.stats.On("Timeline", mock.Anything, entity.StatsFilter{ProductID: "MLA1"}).Return(&entity.TimelineResponse{
		Days:    30,
		Buckets: []entity.TimelineBucket{{Date: "2024-06-10", Total: 1}},
	}, nil)

	rec := env.do(http.MethodGet, "/api/stats/timeline?product_id=MLA1", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductStats_Error(t *testing.T) {
	env := setupTestEnv()
	env.stats.On("ProductStats", mock.Anything).Return(nil, errors.New("db error"))

	rec := env.do(http.MethodGet, "/api/stats/products", nil, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to get product stats", decodeError(t, rec).Message)
}

// ==================== Auth Tests ====================

func TestIngest_RequiresToken(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"product_ids": []string{"MLA1"}}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env.ingestion.AssertNotCalled(t, "IngestBatch", mock.Anything, mock.Anything)
}

func TestIngest_InvalidToken(t *testing.T) {
	env := setupTestEnv()

	cases := map[string]string{
		"wrong secret": signToken(t, "admin", "other-secret", time.Hour),
		"expired":      signToken(t, "admin", testSecret, -time.Hour),
		"garbage":      "not.a.token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"product_ids": []string{"MLA1"}}, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestIngest_RequiresAdminRole(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"product_ids": []string{"MLA1"}}, signToken(t, "viewer", testSecret, time.Hour))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticate_BadHeaderFormat(t *testing.T) {
	router := gin.New()
	router.GET("/protected", NewAuthMiddleware(testSecret).Authenticate(), func(c *gin.Context) {
		t.Error("Handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ==================== Ingestion Handler Tests ====================

func TestIngest_Success(t *testing.T) {
	// Arrange
	env := setupTestEnv()
	expected := []entity.IngestRequest{
		{ProductID: "MLA1", Target: 120},
		{URL: "https://www.mercadolibre.com.ar/x/p/MLA2", Target: 120},
	}
	env.ingestion.On("IngestBatch", mock.Anything, expected).Return(&entity.BatchSummary{
		RunID:     "run-1",
		Total:     2,
		Succeeded: 1,
		Failed:    1,
	})

	// Act
	rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{
		"product_ids": []string{"MLA1"},
		"urls":        []string{"https://www.mercadolibre.com.ar/x/p/MLA2"},
		"target":      120,
	}, signToken(t, "admin", testSecret, time.Hour))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	var summary entity.BatchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 1, summary.Failed)
}

func TestIngest_Validation(t *testing.T) {
	env := setupTestEnv()
	token := signToken(t, "admin", testSecret, time.Hour)

	rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"urls": []string{"not a url"}}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"product_ids": []string{"MLA1"}, "target": -5}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/ingest", "{broken", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.ingestion.AssertNotCalled(t, "IngestBatch", mock.Anything, mock.Anything)
}

func TestIngest_FromCatalog(t *testing.T) {
	// Arrange
	env := setupTestEnv()
	env.batch.On("Run", mock.Anything, entity.CatalogBatchOptions{
		ProductID:  "MLA1",
		MinReviews: 30,
		Action:     entity.CatalogActionReviews,
	}).Return(&entity.CatalogSummary{RunID: "run-7", Action: "reviews", Total: 1, ReviewsSucceeded: 1}, nil)

	// Act
	rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{
		"from_catalog": true,
		"product_id":   "MLA1",
		"min_reviews":  30,
		"action":       "reviews",
	}, signToken(t, "admin", testSecret, time.Hour))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	var summary entity.CatalogSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-7", summary.RunID)
	assert.Equal(t, 1, summary.ReviewsSucceeded)
	env.ingestion.AssertNotCalled(t, "IngestBatch", mock.Anything, mock.Anything)
}

func TestIngest_FromCatalogErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unknown product", err: fmt.Errorf("%w: MLA404", service.ErrProductNotFound), status: http.StatusNotFound},
		{name: "database failure", err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv()
			env.batch.On("Run", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"from_catalog": true, "product_id": "MLA404"},
				signToken(t, "admin", testSecret, time.Hour))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestIngest_FromCatalogInvalidAction(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodPost, "/api/ingest", map[string]interface{}{"from_catalog": true, "action": "extract"},
		signToken(t, "admin", testSecret, time.Hour))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Action validation failed", decodeError(t, rec).Message)
	env.batch.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRunEnrichment_Success(t *testing.T) {
	// Arrange
	env := setupTestEnv()
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	env.enrichment.On("Run", mock.Anything, entity.EnrichmentOptions{
		FromDate:  &from,
		ProductID: "MLA1",
		BatchSize: 50,
		DryRun:    true,
	}).Return(&entity.EnrichmentStats{RunID: "run-2", Processed: 10, DryRun: true}, nil)

	// Act
	rec := env.do(http.MethodPost, "/api/enrichment/run", map[string]interface{}{
		"from_date":  "2024-01-02",
		"product_id": "MLA1",
		"batch_size": 50,
		"dry_run":    true,
	}, signToken(t, "admin", testSecret, time.Hour))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats entity.EnrichmentStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 10, stats.Processed)
	env.enrichment.AssertExpectations(t)
}

func TestRunEnrichment_EmptyBody(t *testing.T) {
	env := setupTestEnv()
	env.enrichment.On("Run", mock.Anything, entity.EnrichmentOptions{}).Return(&entity.EnrichmentStats{}, nil)

	rec := env.do(http.MethodPost, "/api/enrichment/run", nil, signToken(t, "admin", testSecret, time.Hour))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunEnrichment_InvalidDate(t *testing.T) {
	env := setupTestEnv()

	rec := env.do(http.MethodPost, "/api/enrichment/run", map[string]interface{}{"from_date": "02/01/2024"}, signToken(t, "admin", testSecret, time.Hour))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FromDate validation failed", decodeError(t, rec).Message)
}

func TestRunEnrichment_Error(t *testing.T) {
	env := setupTestEnv()
	env.enrichment.On("Run", mock.Anything, mock.Anything).
		Return(&entity.EnrichmentStats{Processed: 100, Errors: 50}, errors.New("failed to apply sentiment batch: deadlock"))

	rec := env.do(http.MethodPost, "/api/enrichment/run", map[string]interface{}{}, signToken(t, "admin", testSecret, time.Hour))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadlock")
}
