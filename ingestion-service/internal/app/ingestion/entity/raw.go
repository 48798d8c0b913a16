package entity

import (
	"encoding/json"
)

// ProductRef - ссылка на товар для загрузки отзывов
type ProductRef struct {
	ID        string `json:"id"`
	SiteID    string `json:"site_id"`
	TitleHint string `json:"title_hint,omitempty"` // из URL, для товара-заглушки
	SourceURL string `json:"source_url,omitempty"`
}

// RawReview - отзыв в том виде, в котором его вернул backend, после
// разбора JSON в типизированные поля. Raw хранит исходный объект целиком.
type RawReview struct {
	APIReviewID string
	Rate        int
	Title       string
	Content     string
	DateText    string
	ReviewerID  string
	Likes       int
	Dislikes    int
	Media       json.RawMessage
	Source      ReviewSource
	Raw         json.RawMessage
}

// RejectedRecord - запись, отброшенная при разборе (нет идентификатора и т.п.)
type RejectedRecord struct {
	Reason string
	Raw    json.RawMessage
}

// ReviewPage - одна страница отзывов
type ReviewPage struct {
	Reviews  []RawReview
	Rejected []RejectedRecord
	Total    int // -1 если backend не сообщил общее количество
	HasMore  bool
}

// RawProduct - товар из API маркетплейса
type RawProduct struct {
	ID                string
	Title             string
	Price             float64
	SiteID            string
	CurrencyID        string
	SoldQuantity      int
	AvailableQuantity int
	Brand             string
	Model             string
	Attributes        map[string]interface{}
	Permalink         string
	Raw               json.RawMessage
}
