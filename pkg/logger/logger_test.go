package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestInitWithWriter_AddsServiceField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("ingestion-service", "info", &buf)

	Info().Str("product_id", "MLA1").Msg("hello")
	Debug().Msg("hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ingestion-service", lines[0]["service"])
	assert.Equal(t, "MLA1", lines[0]["product_id"])
	assert.Equal(t, "hello", lines[0]["message"])
}

func TestInitWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("svc", "verbose", &buf)

	Debug().Msg("debug")
	Info().Msg("info")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("svc", "debug", &buf)

	l := Component("marketplace")
	l.Info().Msg("fetch")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "marketplace", lines[0]["component"])
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("svc", "debug", &buf)

	CronLogger{}.Info("schedule", "entry", 1)
	CronLogger{}.Error(errors.New("boom"), "job failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "cron", lines[0]["component"])
	assert.Equal(t, float64(1), lines[0]["entry"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestGinLoggerMiddleware_SetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("svc", "info", &buf)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinLoggerMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Без заголовка генерируется новый ID
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	// Переданный ID сохраняется
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-42", lines[1]["request_id"])
	assert.Equal(t, float64(200), lines[1]["status"])
}

func TestGinLoggerMiddleware_ProbesOnlyOnDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("svc", "info", &buf)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinLoggerMiddleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/products/:id", func(c *gin.Context) {
		c.Set("user_id", "operator-1")
		c.Status(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/MLA1", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "/api/products/:id", lines[0]["route"])
	assert.Equal(t, "operator-1", lines[0]["user_id"])
}
