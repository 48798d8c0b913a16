package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinPrometheusMiddleware("metrics-test"))
	router.GET("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"MLA1", "MLA2", "MLA3"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/products/"+id, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	count := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("metrics-test", http.MethodGet, "/api/products/:id", "200"))
	assert.Equal(t, float64(3), count)
}

func TestGinPrometheusMiddleware_SkipsHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinPrometheusMiddleware("metrics-health"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	count := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("metrics-health", http.MethodGet, "/health", "200"))
	assert.Equal(t, float64(0), count)
}

func TestMarketplaceTimer_Observe(t *testing.T) {
	before := testutil.ToFloat64(MarketplaceRequests.WithLabelValues("noindex", "reviews", "503"))

	NewMarketplaceTimer("noindex", "reviews").Observe("503")
	RecordMarketplaceRetry("noindex", "reviews")

	assert.Equal(t, before+1, testutil.ToFloat64(MarketplaceRequests.WithLabelValues("noindex", "reviews", "503")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(MarketplaceRetries.WithLabelValues("noindex", "reviews")), float64(1))
}
