package marketplace

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - ресурс отсутствует на маркетплейсе (HTTP 404)
	ErrNotFound = errors.New("marketplace resource not found")
	// ErrInvalidProductRef - из входа нельзя получить ID товара
	ErrInvalidProductRef = errors.New("invalid product reference")
)

// TransientFetchError - временная ошибка (429, 5xx, сеть), попытки исчерпаны
type TransientFetchError struct {
	Endpoint   string
	URL        string
	StatusCode int // 0 для сетевых ошибок
	Attempts   int
	Err        error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient error fetching %s after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// PermanentFetchError - ошибка, которую бессмысленно повторять (4xx, битый ответ)
type PermanentFetchError struct {
	Endpoint   string
	URL        string
	StatusCode int // 0 если ответ не удалось разобрать
	Err        error
}

func (e *PermanentFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent error fetching %s (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("permanent error fetching %s: %v", e.Endpoint, e.Err)
}

func (e *PermanentFetchError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var target *TransientFetchError
	return errors.As(err, &target)
}

func IsPermanent(err error) bool {
	var target *PermanentFetchError
	return errors.As(err, &target)
}
