package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckFunc - проверка одной зависимости (ping БД, Redis)
type CheckFunc func(ctx context.Context) error

type HealthHandler struct {
	service string
	checks  map[string]CheckFunc
}

func NewHealthHandler(service string, checks map[string]CheckFunc) *HealthHandler {
	return &HealthHandler{
		service: service,
		checks:  checks,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthCheck обрабатывает GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	overall := "ok"
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			overall = "unhealthy"
			continue
		}
		checks[name] = "healthy"
	}

	status := http.StatusOK
	if overall != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, HealthResponse{
		Status:    overall,
		Service:   h.service,
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	})
}
