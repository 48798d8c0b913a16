package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Product - товар маркетплейса, ID совпадает с внешним ID (MLA123...)
type Product struct {
	ID                string            `json:"id" gorm:"type:varchar(32);primaryKey"`
	Title             string            `json:"title" gorm:"type:text;not null;default:''"`
	Price             float64           `json:"price" gorm:"not null;default:0"`
	SiteID            string            `json:"site_id" gorm:"type:varchar(8);not null;default:'MLA'"`
	CurrencyID        string            `json:"currency_id" gorm:"type:varchar(8);not null;default:'ARS'"`
	SoldQuantity      int               `json:"sold_quantity" gorm:"not null;default:0"`
	AvailableQuantity int               `json:"available_quantity" gorm:"not null;default:0"`
	Marca             string            `json:"marca" gorm:"type:varchar(128);index"`
	Modelo            string            `json:"modelo" gorm:"type:varchar(128)"`
	Caracteristicas   datatypes.JSONMap `json:"caracteristicas" gorm:"type:jsonb"`
	MLAdditionalInfo  datatypes.JSONMap `json:"ml_additional_info" gorm:"type:jsonb"`
	CreatedAt         time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}

// InfoURL - ключ ml_additional_info с исходной ссылкой на товар
const InfoURL = "url"

// SourceURL возвращает сохраненную ссылку на товар или permalink
func (p *Product) SourceURL() string {
	for _, key := range []string{InfoURL, "permalink"} {
		if v, ok := p.MLAdditionalInfo[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Review - отзыв о товаре. Естественный ключ: (product_id, api_review_id)
type Review struct {
	ID             string          `json:"id" gorm:"type:varchar(97);primaryKey"`
	ProductID      string          `json:"product_id" gorm:"type:varchar(32);not null;uniqueIndex:idx_reviews_product_api_review,priority:1;index:idx_reviews_product_date,priority:1"`
	APIReviewID    string          `json:"api_review_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_reviews_product_api_review,priority:2"`
	Rate           int             `json:"rate" gorm:"not null;check:chk_reviews_rate,rate BETWEEN 1 AND 5"`
	Title          string          `json:"title" gorm:"type:text"`
	Content        string          `json:"content" gorm:"type:text"`
	DateCreated    *time.Time      `json:"date_created" gorm:"index:idx_reviews_product_date,priority:2"`
	DateStatus     DateStatus      `json:"date_status" gorm:"type:varchar(16);not null;default:'missing'"`
	DateText       string          `json:"date_text" gorm:"type:varchar(128)"`
	ReviewerID     string          `json:"reviewer_id" gorm:"type:varchar(64)"`
	Likes          int             `json:"likes" gorm:"not null;default:0"`
	Dislikes       int             `json:"dislikes" gorm:"not null;default:0"`
	SentimentScore *float64        `json:"sentiment_score"`
	SentimentLabel *SentimentLabel `json:"sentiment_label" gorm:"type:varchar(16);index"`
	Source         ReviewSource    `json:"source" gorm:"type:varchar(16);not null;default:'api'"`
	Media          datatypes.JSON  `json:"media,omitempty" gorm:"type:jsonb"`
	RawJSON        datatypes.JSON  `json:"raw_json,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Review) TableName() string {
	return "reviews"
}

// ReviewKey строит первичный ключ отзыва из естественного ключа.
// Длина id покрывает product_id, разделитель и api_review_id.
func ReviewKey(productID, apiReviewID string) string {
	return productID + "-" + apiReviewID
}

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// ReviewSource - каким способом получен отзыв
type ReviewSource string

const (
	SourceAPI     ReviewSource = "api"
	SourceNoindex ReviewSource = "noindex"
)

// DateStatus - результат нормализации исходной даты отзыва
type DateStatus string

const (
	DateParsed     DateStatus = "parsed"
	DateCorrected  DateStatus = "corrected" // исправлен сдвиг года
	DateRelative   DateStatus = "relative"  // "hace 3 meses" относительно времени загрузки
	DateUnresolved DateStatus = "unresolved"
	DateMissing    DateStatus = "missing"
)
