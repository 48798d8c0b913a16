package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// probePaths опрашиваются балансировщиком и Prometheus, пишем их только на debug
var probePaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// GinLoggerMiddleware пишет одну строку access лога на запрос
// и проставляет X-Request-ID (переданный клиентом или новый uuid).
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		status := c.Writer.Status()
		ev := accessEvent(c.Request.URL.Path, status)

		ev = ev.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Str("query", c.Request.URL.RawQuery).
			Str("remote_addr", c.ClientIP()).
			Int("status", status).
			Int("size", c.Writer.Size()).
			Float64("duration_ms", float64(time.Since(start).Microseconds())/1000)

		// user_id кладет AuthMiddleware на админских маршрутах
		if userID := c.GetString("user_id"); userID != "" {
			ev = ev.Str("user_id", userID)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.String())
		}

		ev.Msg("HTTP request")
	}
}

func accessEvent(path string, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return Error()
	case status >= 400:
		return Warn()
	case probePaths[path]:
		return Debug()
	default:
		return Info()
	}
}
