package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

const serviceName = "ingestion-service"

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidOrder    = errors.New("invalid order field")
)

// UpsertOutcome - что произошло со строкой при upsert
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// IsNew - строка была вставлена этим вызовом
func (o UpsertOutcome) IsNew() bool {
	return o == OutcomeCreated
}

// PersistenceConflictError - нарушение уникальности, которое не объясняется
// повторной записью того же отзыва (например, коллизия первичного ключа)
type PersistenceConflictError struct {
	ProductID   string
	APIReviewID string
	Constraint  string
	Err         error
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("persistence conflict for review %s/%s (%s): %v", e.ProductID, e.APIReviewID, e.Constraint, e.Err)
}

func (e *PersistenceConflictError) Unwrap() error {
	return e.Err
}

const pgUniqueViolation = "23505"

// asConflict превращает unique violation PostgreSQL в PersistenceConflictError
func asConflict(err error, review *entity.Review) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &PersistenceConflictError{
			ProductID:   review.ProductID,
			APIReviewID: review.APIReviewID,
			Constraint:  pgErr.ConstraintName,
			Err:         err,
		}
	}
	return err
}

// PageResult - итог записи одной страницы отзывов
type PageResult struct {
	Created   int
	Updated   int
	Unchanged int
	Conflicts []*PersistenceConflictError
}

// UnscoredQuery - выборка отзывов без тональности (keyset по id)
type UnscoredQuery struct {
	ProductID string
	FromDate  *time.Time
	AfterID   string
	Limit     int
}

// SentimentUpdate - результат анализа для записи
type SentimentUpdate struct {
	ReviewID string
	Score    float64
	Label    entity.SentimentLabel
}

// StatsQuery - фильтр агрегатов по отзывам
type StatsQuery struct {
	ProductID string
	Brand     string
	Since     *time.Time
}

type ProductAggregate struct {
	TotalProducts       int64
	ProductsWithReviews int64
	UniqueBrands        int64
	AveragePrice        float64
}

type RatingCount struct {
	Rate  int
	Count int64
}

type SentimentCount struct {
	Label *string
	Count int64
}

// DailyAggregate - строка группировки по дню
type DailyAggregate struct {
	Day      time.Time
	Total    int64
	RateSum  int64
	Positive int64
	Negative int64
	Neutral  int64
}

// ProductReviewCount - товар и число его сохраненных отзывов
type ProductReviewCount struct {
	entity.Product
	ReviewCount int64
}

// ProductRepository определяет методы для работы с товарами в PostgreSQL
type ProductRepository interface {
	Upsert(ctx context.Context, product *entity.Product) (UpsertOutcome, error)
	EnsureExists(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	List(ctx context.Context, offset, limit int) ([]entity.Product, int64, error)
	ListByBrand(ctx context.Context, brand string, limit int) ([]entity.Product, error)
	Count(ctx context.Context) (int64, error)
	ListWithReviewCounts(ctx context.Context, productID string) ([]ProductReviewCount, error)
}

// ReviewRepository определяет методы для работы с отзывами в PostgreSQL
type ReviewRepository interface {
	Upsert(ctx context.Context, review *entity.Review) (UpsertOutcome, error)
	UpsertPage(ctx context.Context, productID string, reviews []*entity.Review) (*PageResult, error)
	FindUnscored(ctx context.Context, q UnscoredQuery) ([]entity.Review, error)
	CountUnscored(ctx context.Context, q UnscoredQuery) (int64, error)
	ApplySentiment(ctx context.Context, updates []SentimentUpdate) ([]SentimentUpdate, error)
	ListByProduct(ctx context.Context, productID, orderBy string, limit int) ([]entity.Review, error)
	ListByRating(ctx context.Context, rating, limit int) ([]entity.Review, error)
	ListBySentiment(ctx context.Context, label entity.SentimentLabel, limit int) ([]entity.Review, error)
	ListRecent(ctx context.Context, since *time.Time, limit int) ([]entity.Review, error)
}

// StatsRepository - агрегирующие запросы только на чтение
type StatsRepository interface {
	ProductAggregate(ctx context.Context) (*ProductAggregate, error)
	RatingCounts(ctx context.Context, q StatsQuery) ([]RatingCount, error)
	SentimentCounts(ctx context.Context, q StatsQuery) ([]SentimentCount, error)
	DailyAggregates(ctx context.Context, q StatsQuery) ([]DailyAggregate, error)
}
