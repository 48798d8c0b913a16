package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/marketplace"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
	"mlreviews/pkg/logger"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// respondServiceError переводит ошибки сервисов и маркетплейса в HTTP статус
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, marketplace.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNoInput),
		errors.Is(err, marketplace.ErrInvalidProductRef):
		respondError(c, http.StatusBadRequest, err.Error())
	case marketplace.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	case marketplace.IsPermanent(err):
		respondError(c, http.StatusBadGateway, err.Error())
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

// formatValidationError форматирует ошибки валидации
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return validationErrors[0].Field() + " validation failed"
	}
	return "Validation failed"
}

// queryInt читает необязательный целочисленный параметр запроса
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
