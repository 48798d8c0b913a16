package entity

import "time"

// IngestRequest - загрузка отзывов одного товара (по ID или по URL)
type IngestRequest struct {
	ProductID string
	URL       string
	Target    int
}

// ProductIngestResult - итог загрузки одного товара
type ProductIngestResult struct {
	RunID     string     `json:"run_id"`
	Input     string     `json:"input"`
	Ref       ProductRef `json:"ref"`
	Status    string     `json:"status"` // succeeded, partial, failed, skipped
	Target    int        `json:"target"`
	Collected int        `json:"collected"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Duplicate int        `json:"duplicate"`
	Rejected  int        `json:"rejected"`
	Conflicts int        `json:"conflicts"`
	Pages     int        `json:"pages"`
	Error     string     `json:"error,omitempty"`
}

const (
	IngestSucceeded = "succeeded"
	IngestPartial   = "partial"
	IngestFailed    = "failed"
	IngestSkipped   = "skipped"
)

// BatchSummary - итог пакетной загрузки
type BatchSummary struct {
	RunID     string                 `json:"run_id"`
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
	Partial   int                    `json:"partial"`
	Failed    int                    `json:"failed"`
	Skipped   int                    `json:"skipped"`
	Items     []*ProductIngestResult `json:"items"`
}

// Действия прохода по сохраненному каталогу
const (
	CatalogActionReviews   = "reviews"
	CatalogActionSentiment = "sentiment"
	CatalogActionAll       = "all"
)

// CatalogBatchOptions - повторная обработка уже сохраненных товаров
type CatalogBatchOptions struct {
	ProductID  string
	MinReviews int
	Action     string
	Target     int
}

// CatalogItemResult - итог по одному сохраненному товару
type CatalogItemResult struct {
	ProductID     string               `json:"product_id"`
	URL           string               `json:"url,omitempty"`
	ReviewsBefore int64                `json:"reviews_before"`
	Ingest        *ProductIngestResult `json:"ingest,omitempty"`
	Sentiment     *EnrichmentStats     `json:"sentiment,omitempty"`
	Skipped       []string             `json:"skipped,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// CatalogSummary - итог прохода по каталогу
type CatalogSummary struct {
	RunID              string               `json:"run_id"`
	Action             string               `json:"action"`
	MinReviews         int                  `json:"min_reviews"`
	Total              int                  `json:"total"`
	ReviewsSucceeded   int                  `json:"reviews_succeeded"`
	ReviewsPartial     int                  `json:"reviews_partial"`
	ReviewsFailed      int                  `json:"reviews_failed"`
	ReviewsSkipped     int                  `json:"reviews_skipped"`
	SentimentSucceeded int                  `json:"sentiment_succeeded"`
	SentimentFailed    int                  `json:"sentiment_failed"`
	SentimentSkipped   int                  `json:"sentiment_skipped"`
	Items              []*CatalogItemResult `json:"items"`
}

// EnrichmentOptions - параметры прохода анализа тональности
type EnrichmentOptions struct {
	FromDate  *time.Time
	ProductID string
	BatchSize int
	DryRun    bool
}

// EnrichmentStats - итог прохода анализа тональности
type EnrichmentStats struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Empty     int            `json:"empty"`
	Errors    int            `json:"errors"`
	ByLabel   map[string]int `json:"by_label"`
	DryRun    bool           `json:"dry_run"`
	Samples   []ScoredReview `json:"samples,omitempty"` // только в dry-run
}

// ScoredReview - результат оценки одного отзыва
type ScoredReview struct {
	ReviewID string         `json:"review_id"`
	Score    float64        `json:"score"`
	Label    SentimentLabel `json:"label"`
}

// StatsFilter - фильтр для агрегатов
type StatsFilter struct {
	ProductID string `form:"product_id"`
	Brand     string `form:"brand"`
	Days      int    `form:"days" validate:"omitempty,min=1,max=3650"`
}

// ReviewStats - распределения по оценкам и тональности
type ReviewStats struct {
	TotalReviews          int            `json:"total_reviews"`
	AverageRating         float64        `json:"average_rating"`
	RatingDistribution    map[string]int `json:"rating_distribution"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
}

// ProductStats - сводка по товарам
type ProductStats struct {
	TotalProducts       int     `json:"total_products"`
	ProductsWithReviews int     `json:"products_with_reviews"`
	UniqueBrands        int     `json:"unique_brands"`
	AveragePrice        float64 `json:"average_price"`
}

// TimelineBucket - агрегат за один день
type TimelineBucket struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	Total         int     `json:"total"`
	AverageRating float64 `json:"average_rating"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	Neutral       int     `json:"neutral"`
}

// ===================== HTTP DTO =====================

// IngestHTTPRequest - тело POST /api/ingest.
// С from_catalog обрабатываются уже сохраненные товары, product_ids и urls не нужны.
type IngestHTTPRequest struct {
	ProductIDs  []string `json:"product_ids" validate:"omitempty,dive,required,max=32"`
	URLs        []string `json:"urls" validate:"omitempty,dive,required,url"`
	Target      int      `json:"target" validate:"omitempty,min=1"`
	FromCatalog bool     `json:"from_catalog"`
	ProductID   string   `json:"product_id" validate:"omitempty,max=32"`
	MinReviews  int      `json:"min_reviews" validate:"omitempty,min=1"`
	Action      string   `json:"action" validate:"omitempty,oneof=reviews sentiment all"`
}

// EnrichmentHTTPRequest - тело POST /api/enrichment/run
type EnrichmentHTTPRequest struct {
	FromDate  string `json:"from_date" validate:"omitempty,datetime=2006-01-02"`
	ProductID string `json:"product_id" validate:"omitempty,max=32"`
	BatchSize int    `json:"batch_size" validate:"omitempty,min=1,max=1000"`
	DryRun    bool   `json:"dry_run"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ProductListResponse struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

type ReviewListResponse struct {
	Reviews []Review `json:"reviews"`
	Total   int      `json:"total"`
}

type TimelineResponse struct {
	Days    int              `json:"days"`
	Buckets []TimelineBucket `json:"buckets"`
}
