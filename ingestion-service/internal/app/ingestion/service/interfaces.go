package service

import (
	"context"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

type IngestionServiceInterface interface {
	IngestProduct(ctx context.Context, req entity.IngestRequest) (*entity.ProductIngestResult, error)
	IngestBatch(ctx context.Context, reqs []entity.IngestRequest) *entity.BatchSummary
	RefreshProduct(ctx context.Context, productID string) (*entity.Product, error)
}

type EnrichmentServiceInterface interface {
	Run(ctx context.Context, opts entity.EnrichmentOptions) (*entity.EnrichmentStats, error)
}

type CatalogBatchServiceInterface interface {
	Run(ctx context.Context, opts entity.CatalogBatchOptions) (*entity.CatalogSummary, error)
}

type StatsServiceInterface interface {
	ProductStats(ctx context.Context) (*entity.ProductStats, error)
	ReviewStats(ctx context.Context, filter entity.StatsFilter) (*entity.ReviewStats, error)
	Timeline(ctx context.Context, filter entity.StatsFilter) (*entity.TimelineResponse, error)
}

type CatalogServiceInterface interface {
	ListProducts(ctx context.Context, page, limit int) (*entity.ProductListResponse, error)
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	ListProductsByBrand(ctx context.Context, brand string, limit int) ([]entity.Product, error)
	ProductReviews(ctx context.Context, productID, orderBy string, limit int) ([]entity.Review, error)
	ReviewsByRating(ctx context.Context, rating, limit int) ([]entity.Review, error)
	ReviewsBySentiment(ctx context.Context, label entity.SentimentLabel, limit int) ([]entity.Review, error)
	RecentReviews(ctx context.Context, days, limit int) ([]entity.Review, error)
	Search(ctx context.Context, query string, limit int) ([]entity.RawProduct, error)
}
