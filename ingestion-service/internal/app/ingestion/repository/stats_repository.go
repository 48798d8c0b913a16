package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/pkg/metrics"
)

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository создает репозиторий агрегатов
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

// filteredReviews применяет StatsQuery к выборке из reviews
func (r *statsRepository) filteredReviews(ctx context.Context, q StatsQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&entity.Review{})
	if q.Brand != "" {
		db = db.Joins("JOIN products ON products.id = reviews.product_id").
			Where("products.marca ILIKE ?", "%"+q.Brand+"%")
	}
	if q.ProductID != "" {
		db = db.Where("reviews.product_id = ?", q.ProductID)
	}
	if q.Since != nil {
		db = db.Where("reviews.date_created >= ?", *q.Since)
	}
	return db
}

func (r *statsRepository) ProductAggregate(ctx context.Context) (*ProductAggregate, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "products")
	defer timer.ObserveDuration()

	var agg ProductAggregate
	err := r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Select("COUNT(*) AS total_products, " +
			"COUNT(DISTINCT NULLIF(marca, '')) AS unique_brands, " +
			"COALESCE(AVG(price), 0) AS average_price").
		Scan(&agg).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to aggregate products: %w", err)
	}

	err = r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Distinct("product_id").
		Count(&agg.ProductsWithReviews).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to count products with reviews: %w", err)
	}

	return &agg, nil
}

func (r *statsRepository) RatingCounts(ctx context.Context, q StatsQuery) ([]RatingCount, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "reviews")
	defer timer.ObserveDuration()

	var rows []RatingCount
	err := r.filteredReviews(ctx, q).
		Select("reviews.rate AS rate, COUNT(*) AS count").
		Group("reviews.rate").
		Order("reviews.rate").
		Scan(&rows).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to count ratings: %w", err)
	}

	return rows, nil
}

func (r *statsRepository) SentimentCounts(ctx context.Context, q StatsQuery) ([]SentimentCount, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "reviews")
	defer timer.ObserveDuration()

	var rows []SentimentCount
	err := r.filteredReviews(ctx, q).
		Select("reviews.sentiment_label AS label, COUNT(*) AS count").
		Group("reviews.sentiment_label").
		Scan(&rows).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to count sentiment labels: %w", err)
	}

	return rows, nil
}

// DailyAggregates группирует отзывы с известной датой по дням
func (r *statsRepository) DailyAggregates(ctx context.Context, q StatsQuery) ([]DailyAggregate, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "reviews")
	defer timer.ObserveDuration()

	var rows []DailyAggregate
	err := r.filteredReviews(ctx, q).
		Where("reviews.date_created IS NOT NULL").
		Select("DATE(reviews.date_created) AS day, " +
			"COUNT(*) AS total, " +
			"COALESCE(SUM(reviews.rate), 0) AS rate_sum, " +
			"COUNT(*) FILTER (WHERE reviews.sentiment_label = 'positive') AS positive, " +
			"COUNT(*) FILTER (WHERE reviews.sentiment_label = 'negative') AS negative, " +
			"COUNT(*) FILTER (WHERE reviews.sentiment_label = 'neutral') AS neutral").
		Group("DATE(reviews.date_created)").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to aggregate timeline: %w", err)
	}

	return rows, nil
}
