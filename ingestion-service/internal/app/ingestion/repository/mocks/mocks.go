package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
)

// MockProductRepository мок для ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Upsert(ctx context.Context, product *entity.Product) (repository.UpsertOutcome, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(repository.UpsertOutcome), args.Error(1)
}

func (m *MockProductRepository) EnsureExists(ctx context.Context, product *entity.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, offset, limit int) ([]entity.Product, int64, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) ListByBrand(ctx context.Context, brand string, limit int) ([]entity.Product, error) {
	args := m.Called(ctx, brand, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Product), args.Error(1)
}

func (m *MockProductRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductRepository) ListWithReviewCounts(ctx context.Context, productID string) ([]repository.ProductReviewCount, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ProductReviewCount), args.Error(1)
}

// MockReviewRepository мок для ReviewRepository
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Upsert(ctx context.Context, review *entity.Review) (repository.UpsertOutcome, error) {
	args := m.Called(ctx, review)
	return args.Get(0).(repository.UpsertOutcome), args.Error(1)
}

func (m *MockReviewRepository) UpsertPage(ctx context.Context, productID string, reviews []*entity.Review) (*repository.PageResult, error) {
	args := m.Called(ctx, productID, reviews)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult), args.Error(1)
}

func (m *MockReviewRepository) FindUnscored(ctx context.Context, q repository.UnscoredQuery) ([]entity.Review, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewRepository) CountUnscored(ctx context.Context, q repository.UnscoredQuery) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReviewRepository) ApplySentiment(ctx context.Context, updates []repository.SentimentUpdate) ([]repository.SentimentUpdate, error) {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.SentimentUpdate), args.Error(1)
}

func (m *MockReviewRepository) ListByProduct(ctx context.Context, productID, orderBy string, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, productID, orderBy, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewRepository) ListByRating(ctx context.Context, rating, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, rating, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewRepository) ListBySentiment(ctx context.Context, label entity.SentimentLabel, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, label, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewRepository) ListRecent(ctx context.Context, since *time.Time, limit int) ([]entity.Review, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

// MockStatsRepository мок для StatsRepository
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) ProductAggregate(ctx context.Context) (*repository.ProductAggregate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ProductAggregate), args.Error(1)
}

func (m *MockStatsRepository) RatingCounts(ctx context.Context, q repository.StatsQuery) ([]repository.RatingCount, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.RatingCount), args.Error(1)
}

func (m *MockStatsRepository) SentimentCounts(ctx context.Context, q repository.StatsQuery) ([]repository.SentimentCount, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.SentimentCount), args.Error(1)
}

func (m *MockStatsRepository) DailyAggregates(ctx context.Context, q repository.StatsQuery) ([]repository.DailyAggregate, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.DailyAggregate), args.Error(1)
}

// MockMessagePublisher мок для Kafka MessagePublisher, сохраняет отправленные сообщения
type MockMessagePublisher struct {
	mock.Mock
	mu       sync.Mutex
	Messages [][]byte
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, value)
	m.mu.Unlock()

	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Decode разбирает i-е отправленное сообщение
func (m *MockMessagePublisher) Decode(i int, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Unmarshal(m.Messages[i], dest)
}

// MockStatsCache мок для кеша статистики
type MockStatsCache struct {
	mock.Mock
}

func (m *MockStatsCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *MockStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockStatsCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

func (m *MockStatsCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
