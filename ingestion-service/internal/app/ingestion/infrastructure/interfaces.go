package infrastructure

import (
	"context"
	"time"
)

// MessagePublisher интерфейс для отправки событий в очередь (Kafka)
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// StatsCache - кеш агрегированной статистики.
// Get возвращает false без ошибки, если ключа нет.
type StatsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
	Close() error
}
