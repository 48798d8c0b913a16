package entity

import "time"

const (
	EventReviewsIngested   = "REVIEWS_INGESTED"
	EventSentimentEnriched = "SENTIMENT_ENRICHED"
)

// IngestRequestEvent - сообщение из топика ingest_requests
type IngestRequestEvent struct {
	RequestID string `json:"request_id"`
	ProductID string `json:"product_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Target    int    `json:"target,omitempty"`
}

// ReviewsIngestedEvent публикуется после обработки одного товара
type ReviewsIngestedEvent struct {
	EventType string    `json:"event_type"`
	RunID     string    `json:"run_id"`
	ProductID string    `json:"product_id"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Collected int       `json:"collected"`
	Partial   bool      `json:"partial"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SentimentEnrichedEvent публикуется после прохода анализа тональности
type SentimentEnrichedEvent struct {
	EventType string         `json:"event_type"`
	RunID     string         `json:"run_id"`
	Processed int            `json:"processed"`
	Errors    int            `json:"errors"`
	ByLabel   map[string]int `json:"by_label"`
	DryRun    bool           `json:"dry_run"`
	Timestamp time.Time      `json:"timestamp"`
}
