package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListProducts(ctx context.Context, page, limit int) (*entity.ProductListResponse, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProductListResponse), args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

func (m *MockCatalogService) ListProductsByBrand(ctx context.Context, brand string, limit int) ([]entity.Product, error) {
	args := m.Called(ctx, brand, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Product), args.Error(1)
}

func (m *MockCatalogService) ProductReviews(ctx context.Context, productID, orderBy string, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, productID, orderBy, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockCatalogService) ReviewsByRating(ctx context.Context, rating, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, rating, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockCatalogService) ReviewsBySentiment(ctx context.Context, label entity.SentimentLabel, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, label, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockCatalogService) RecentReviews(ctx context.Context, days, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, days, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockCatalogService) Search(ctx context.Context, query string, limit int) ([]entity.RawProduct, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RawProduct), args.Error(1)
}

type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) IngestProduct(ctx context.Context, req entity.IngestRequest) (*entity.ProductIngestResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProductIngestResult), args.Error(1)
}

func (m *MockIngestionService) IngestBatch(ctx context.Context, reqs []entity.IngestRequest) *entity.BatchSummary {
	args := m.Called(ctx, reqs)
	return args.Get(0).(*entity.BatchSummary)
}

func (m *MockIngestionService) RefreshProduct(ctx context.Context, productID string) (*entity.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

type MockEnrichmentService struct {
	mock.Mock
}

func (m *MockEnrichmentService) Run(ctx context.Context, opts entity.EnrichmentOptions) (*entity.EnrichmentStats, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EnrichmentStats), args.Error(1)
}

type MockCatalogBatchService struct {
	mock.Mock
}

func (m *MockCatalogBatchService) Run(ctx context.Context, opts entity.CatalogBatchOptions) (*entity.CatalogSummary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CatalogSummary), args.Error(1)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) ProductStats(ctx context.Context) (*entity.ProductStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProductStats), args.Error(1)
}

func (m *MockStatsService) ReviewStats(ctx context.Context, filter entity.StatsFilter) (*entity.ReviewStats, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReviewStats), args.Error(1)
}

func (m *MockStatsService) Timeline(ctx context.Context, filter entity.StatsFilter) (*entity.TimelineResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TimelineResponse), args.Error(1)
}
