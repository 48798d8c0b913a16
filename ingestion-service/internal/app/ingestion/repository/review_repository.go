package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/pkg/metrics"
)

const reviewSavepoint = "review_upsert"

// сортировки для ListByProduct
var reviewOrders = map[string]string{
	"date_created":    "date_created DESC NULLS LAST, id",
	"rate":            "rate DESC, id",
	"sentiment_score": "sentiment_score DESC NULLS LAST, id",
}

// reviewRepository реализует ReviewRepository для работы с PostgreSQL через GORM
type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository создает новый репозиторий отзывов
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Upsert записывает один отзыв по естественному ключу (product_id, api_review_id)
func (r *reviewRepository) Upsert(ctx context.Context, review *entity.Review) (UpsertOutcome, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpsert, "reviews")
	defer timer.ObserveDuration()

	outcome, err := upsertReview(r.db.WithContext(ctx), review)
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
		return "", err
	}
	return outcome, nil
}

// UpsertPage записывает страницу в одной транзакции.
// Каждый отзыв пишется под своим savepoint: конфликт откатывает только его,
// остальные записи страницы фиксируются.
func (r *reviewRepository) UpsertPage(ctx context.Context, productID string, reviews []*entity.Review) (*PageResult, error) {
	result := &PageResult{}
	if len(reviews) == 0 {
		return result, nil
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpsert, "reviews")
	defer timer.ObserveDuration()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, review := range reviews {
			if review.ProductID == "" {
				review.ProductID = productID
			}

			if err := tx.SavePoint(reviewSavepoint).Error; err != nil {
				return fmt.Errorf("failed to create savepoint: %w", err)
			}

			outcome, err := upsertReview(tx, review)
			if err != nil {
				var conflict *PersistenceConflictError
				if !errors.As(err, &conflict) {
					return err
				}
				if rbErr := tx.RollbackTo(reviewSavepoint).Error; rbErr != nil {
					return fmt.Errorf("failed to rollback to savepoint: %w", rbErr)
				}
				result.Conflicts = append(result.Conflicts, conflict)
				continue
			}

			switch outcome {
			case OutcomeCreated:
				result.Created++
			case OutcomeUpdated:
				result.Updated++
			default:
				result.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
		return nil, fmt.Errorf("failed to upsert review page for %s: %w", productID, err)
	}

	return result, nil
}

// upsertReview: поиск по естественному ключу, без записи если ничего не
// изменилось, вставка с ON CONFLICT DO NOTHING. Если параллельный писатель
// успел вставить ту же строку, результат - unchanged.
func upsertReview(db *gorm.DB, review *entity.Review) (UpsertOutcome, error) {
	if review.ID == "" {
		review.ID = entity.ReviewKey(review.ProductID, review.APIReviewID)
	}

	var existing entity.Review
	err := db.Where("product_id = ? AND api_review_id = ?", review.ProductID, review.APIReviewID).
		Take(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "api_review_id"}},
			DoNothing: true,
		}).Create(review)
		if res.Error != nil {
			return "", asConflict(fmt.Errorf("failed to insert review %s: %w", review.ID, res.Error), review)
		}
		if res.RowsAffected == 0 {
			return OutcomeUnchanged, nil
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find review %s: %w", review.ID, err)
	}

	// Тональность и ID остаются от существующей строки
	review.ID = existing.ID
	review.SentimentScore = existing.SentimentScore
	review.SentimentLabel = existing.SentimentLabel
	review.CreatedAt = existing.CreatedAt

	if sameReview(&existing, review) {
		return OutcomeUnchanged, nil
	}

	res := db.Model(&entity.Review{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"rate":         review.Rate,
			"title":        review.Title,
			"content":      review.Content,
			"date_created": review.DateCreated,
			"date_status":  review.DateStatus,
			"date_text":    review.DateText,
			"reviewer_id":  review.ReviewerID,
			"likes":        review.Likes,
			"dislikes":     review.Dislikes,
			"source":       review.Source,
			"media":        review.Media,
			"raw_json":     review.RawJSON,
		})
	if res.Error != nil {
		return "", asConflict(fmt.Errorf("failed to update review %s: %w", review.ID, res.Error), review)
	}

	return OutcomeUpdated, nil
}

// sameReview сравнивает изменяемые поля. Относительная дата ("hace 3 meses")
// пересчитывается при каждой загрузке, поэтому для нее сравнивается исходный текст.
func sameReview(a, b *entity.Review) bool {
	if a.Rate != b.Rate ||
		a.Title != b.Title ||
		a.Content != b.Content ||
		a.DateStatus != b.DateStatus ||
		a.DateText != b.DateText ||
		a.ReviewerID != b.ReviewerID ||
		a.Likes != b.Likes ||
		a.Dislikes != b.Dislikes ||
		a.Source != b.Source {
		return false
	}

	if b.DateStatus != entity.DateRelative && !sameTime(a.DateCreated, b.DateCreated) {
		return false
	}

	return jsonEqual(a.Media, b.Media)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// jsonEqual сравнивает JSON по значению: jsonb в PostgreSQL меняет
// порядок ключей и пробелы
func jsonEqual(a, b []byte) bool {
	a, b = bytes.TrimSpace(a), bytes.TrimSpace(b)
	if len(a) == 0 || bytes.Equal(a, []byte("null")) {
		return len(b) == 0 || bytes.Equal(b, []byte("null"))
	}
	if bytes.Equal(a, b) {
		return true
	}

	var va, vb interface{}
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func whereUnscored(db *gorm.DB, q UnscoredQuery) *gorm.DB {
	db = db.Where("sentiment_label IS NULL")
	if q.ProductID != "" {
		db = db.Where("product_id = ?", q.ProductID)
	}
	if q.FromDate != nil {
		db = db.Where("date_created >= ?", *q.FromDate)
	}
	return db
}

// FindUnscored возвращает следующую пачку отзывов без тональности после AfterID
func (r *reviewRepository) FindUnscored(ctx context.Context, q UnscoredQuery) ([]entity.Review, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "reviews")
	defer timer.ObserveDuration()

	db := whereUnscored(r.db.WithContext(ctx), q)
	if q.AfterID != "" {
		db = db.Where("id > ?", q.AfterID)
	}

	var reviews []entity.Review
	if err := db.Order("id").Limit(q.Limit).Find(&reviews).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to find unscored reviews: %w", err)
	}

	return reviews, nil
}

func (r *reviewRepository) CountUnscored(ctx context.Context, q UnscoredQuery) (int64, error) {
	var count int64
	if err := whereUnscored(r.db.WithContext(ctx).Model(&entity.Review{}), q).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unscored reviews: %w", err)
	}
	return count, nil
}

// ApplySentiment записывает пачку оценок в одной транзакции и возвращает
// записанные. Уже размеченные строки не перезаписываются и в ответ не попадают.
func (r *reviewRepository) ApplySentiment(ctx context.Context, updates []SentimentUpdate) ([]SentimentUpdate, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, "reviews")
	defer timer.ObserveDuration()

	applied := make([]SentimentUpdate, 0, len(updates))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&entity.Review{}).
				Where("id = ? AND sentiment_label IS NULL", u.ReviewID).
				Updates(map[string]interface{}{
					"sentiment_score": u.Score,
					"sentiment_label": u.Label,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update sentiment for %s: %w", u.ReviewID, res.Error)
			}
			if res.RowsAffected > 0 {
				applied = append(applied, u)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpdate)
		return nil, err
	}

	return applied, nil
}

// ListByProduct - отзывы товара, orderBy: date_created, rate, sentiment_score
func (r *reviewRepository) ListByProduct(ctx context.Context, productID, orderBy string, limit int) ([]entity.Review, error) {
	if orderBy == "" {
		orderBy = "date_created"
	}
	order, ok := reviewOrders[orderBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, orderBy)
	}

	var reviews []entity.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order(order).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for product: %w", err)
	}

	return reviews, nil
}

func (r *reviewRepository) ListByRating(ctx context.Context, rating, limit int) ([]entity.Review, error) {
	var reviews []entity.Review
	err := r.db.WithContext(ctx).
		Where("rate = ?", rating).
		Order("date_created DESC NULLS LAST, id").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews by rating: %w", err)
	}
	return reviews, nil
}

func (r *reviewRepository) ListBySentiment(ctx context.Context, label entity.SentimentLabel, limit int) ([]entity.Review, error) {
	var reviews []entity.Review
	err := r.db.WithContext(ctx).
		Where("sentiment_label = ?", label).
		Order("date_created DESC NULLS LAST, id").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews by sentiment: %w", err)
	}
	return reviews, nil
}

// ListRecent - последние отзывы, since ограничивает окно по дате отзыва
func (r *reviewRepository) ListRecent(ctx context.Context, since *time.Time, limit int) ([]entity.Review, error) {
	db := r.db.WithContext(ctx).Where("date_created IS NOT NULL")
	if since != nil {
		db = db.Where("date_created >= ?", *since)
	}

	var reviews []entity.Review
	if err := db.Order("date_created DESC, id").Limit(limit).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent reviews: %w", err)
	}
	return reviews, nil
}
