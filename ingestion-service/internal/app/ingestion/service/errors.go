package service

import "errors"

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoInput         = errors.New("no products to ingest")
)
