package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/marketplace"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
)

const (
	defaultListLimit  = 20
	maxListLimit      = 100
	defaultRecentDays = 7
)

// CatalogService - чтение сохраненных товаров и отзывов
type CatalogService struct {
	productRepo repository.ProductRepository
	reviewRepo  repository.ReviewRepository
	client      marketplace.Client
	now         func() time.Time
}

func NewCatalogService(productRepo repository.ProductRepository, reviewRepo repository.ReviewRepository, client marketplace.Client) *CatalogService {
	return &CatalogService{
		productRepo: productRepo,
		reviewRepo:  reviewRepo,
		client:      client,
		now:         time.Now,
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (s *CatalogService) ListProducts(ctx context.Context, page, limit int) (*entity.ProductListResponse, error) {
	if page < 1 {
		page = 1
	}
	limit = normalizeLimit(limit)

	products, total, err := s.productRepo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []entity.Product{}
	}

	return &entity.ProductListResponse{
		Products: products,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	product, err := s.productRepo.GetByID(ctx, strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *CatalogService) ListProductsByBrand(ctx context.Context, brand string, limit int) ([]entity.Product, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, fmt.Errorf("%w: brand is required", ErrInvalidInput)
	}
	return s.productRepo.ListByBrand(ctx, brand, normalizeLimit(limit))
}

func (s *CatalogService) ProductReviews(ctx context.Context, productID, orderBy string, limit int) ([]entity.Review, error) {
	reviews, err := s.reviewRepo.ListByProduct(ctx, strings.ToUpper(strings.TrimSpace(productID)), orderBy, normalizeLimit(limit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidOrder) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}
	return reviews, nil
}

func (s *CatalogService) ReviewsByRating(ctx context.Context, rating, limit int) ([]entity.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	return s.reviewRepo.ListByRating(ctx, rating, normalizeLimit(limit))
}

func (s *CatalogService) ReviewsBySentiment(ctx context.Context, label entity.SentimentLabel, limit int) ([]entity.Review, error) {
	if !label.Valid() {
		return nil, fmt.Errorf("%w: unknown sentiment label %q", ErrInvalidInput, label)
	}
	return s.reviewRepo.ListBySentiment(ctx, label, normalizeLimit(limit))
}

// RecentReviews - отзывы за последние days дней
func (s *CatalogService) RecentReviews(ctx context.Context, days, limit int) ([]entity.Review, error) {
	if days <= 0 {
		days = defaultRecentDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	return s.reviewRepo.ListRecent(ctx, &since, normalizeLimit(limit))
}

// Search проксирует поиск маркетплейса без сохранения результатов
func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]entity.RawProduct, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	return s.client.Search(ctx, query, normalizeLimit(limit))
}
