package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
	"mlreviews/pkg/logger"
)

const (
	defaultTimelineDays = 30
	sentimentUnscored   = "unscored"
)

// StatsService считает агрегаты по товарам и отзывам.
// Результаты кешируются в Redis, кеш сбрасывается после загрузки и разметки.
type StatsService struct {
	statsRepo repository.StatsRepository
	cache     infrastructure.StatsCache
	ttl       time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewStatsService(statsRepo repository.StatsRepository, cache infrastructure.StatsCache, ttl time.Duration) *StatsService {
	return &StatsService{
		statsRepo: statsRepo,
		cache:     cache,
		ttl:       ttl,
		now:       time.Now,
		log:       logger.Component("stats"),
	}
}

func (s *StatsService) ProductStats(ctx context.Context) (*entity.ProductStats, error) {
	const key = statsCachePrefix + "products"

	var cached entity.ProductStats
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	agg, err := s.statsRepo.ProductAggregate(ctx)
	if err != nil {
		return nil, err
	}

	stats := &entity.ProductStats{
		TotalProducts:       int(agg.TotalProducts),
		ProductsWithReviews: int(agg.ProductsWithReviews),
		UniqueBrands:        int(agg.UniqueBrands),
		AveragePrice:        round2(agg.AveragePrice),
	}

	s.toCache(ctx, key, stats)
	return stats, nil
}

// ReviewStats - распределения по оценкам и тональности. Все ключи
// присутствуют всегда, даже при нулевых значениях.
func (s *StatsService) ReviewStats(ctx context.Context, filter entity.StatsFilter) (*entity.ReviewStats, error) {
	key := fmt.Sprintf("%sreviews:%s:%s:%d", statsCachePrefix, filter.ProductID, filter.Brand, filter.Days)

	var cached entity.ReviewStats
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	q := repository.StatsQuery{ProductID: filter.ProductID, Brand: filter.Brand}
	if filter.Days > 0 {
		since := truncateDay(s.now().UTC()).AddDate(0, 0, -filter.Days)
		q.Since = &since
	}

	ratings, err := s.statsRepo.RatingCounts(ctx, q)
	if err != nil {
		return nil, err
	}
	labels, err := s.statsRepo.SentimentCounts(ctx, q)
	if err != nil {
		return nil, err
	}

	stats := &entity.ReviewStats{
		RatingDistribution: map[string]int{
			"1_stars": 0, "2_stars": 0, "3_stars": 0, "4_stars": 0, "5_stars": 0,
		},
		SentimentDistribution: map[string]int{
			string(entity.SentimentPositive): 0,
			string(entity.SentimentNegative): 0,
			string(entity.SentimentNeutral):  0,
			sentimentUnscored:                0,
		},
	}

	var rateSum int64
	for _, rc := range ratings {
		if rc.Rate < 1 || rc.Rate > 5 {
			continue
		}
		stats.RatingDistribution[fmt.Sprintf("%d_stars", rc.Rate)] += int(rc.Count)
		stats.TotalReviews += int(rc.Count)
		rateSum += int64(rc.Rate) * rc.Count
	}
	if stats.TotalReviews > 0 {
		stats.AverageRating = round2(float64(rateSum) / float64(stats.TotalReviews))
	}

	for _, sc := range labels {
		label := sentimentUnscored
		if sc.Label != nil && entity.SentimentLabel(*sc.Label).Valid() {
			label = *sc.Label
		}
		stats.SentimentDistribution[label] += int(sc.Count)
	}

	s.toCache(ctx, key, stats)
	return stats, nil
}

// Timeline - по одному бакету на каждый день окна, от старых к новым.
// Дни без отзывов заполняются нулями.
func (s *StatsService) Timeline(ctx context.Context, filter entity.StatsFilter) (*entity.TimelineResponse, error) {
	days := filter.Days
	if days <= 0 {
		days = defaultTimelineDays
	}

	key := fmt.Sprintf("%stimeline:%s:%s:%d", statsCachePrefix, filter.ProductID, filter.Brand, days)

	var cached entity.TimelineResponse
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	today := truncateDay(s.now().UTC())
	start := today.AddDate(0, 0, -(days - 1))

	rows, err := s.statsRepo.DailyAggregates(ctx, repository.StatsQuery{
		ProductID: filter.ProductID,
		Brand:     filter.Brand,
		Since:     &start,
	})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]repository.DailyAggregate, len(rows))
	for _, row := range rows {
		byDay[row.Day.UTC().Format(time.DateOnly)] = row
	}

	resp := &entity.TimelineResponse{Days: days, Buckets: make([]entity.TimelineBucket, 0, days)}
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(time.DateOnly)
		bucket := entity.TimelineBucket{Date: date}
		if row, ok := byDay[date]; ok {
			bucket.Total = int(row.Total)
			bucket.Positive = int(row.Positive)
			bucket.Negative = int(row.Negative)
			bucket.Neutral = int(row.Neutral)
			if row.Total > 0 {
				bucket.AverageRating = round2(float64(row.RateSum) / float64(row.Total))
			}
		}
		resp.Buckets = append(resp.Buckets, bucket)
	}

	s.toCache(ctx, key, resp)
	return resp, nil
}

// fromCache: ошибки Redis не ломают запрос, агрегат просто считается заново
func (s *StatsService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Stats cache read failed")
		return false
	}
	return found
}

func (s *StatsService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
