package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
	"mlreviews/ingestion-service/internal/app/ingestion/sentiment"
	"mlreviews/pkg/logger"
	"mlreviews/pkg/metrics"
)

const maxDryRunSamples = 20

// EnrichmentService размечает тональность отзывов, у которых ее еще нет
type EnrichmentService struct {
	reviewRepo       repository.ReviewRepository
	scorer           sentiment.Scorer
	publisher        infrastructure.MessagePublisher
	cache            infrastructure.StatsCache
	defaultBatchSize int
	log              zerolog.Logger
}

func NewEnrichmentService(
	reviewRepo repository.ReviewRepository,
	scorer sentiment.Scorer,
	publisher infrastructure.MessagePublisher,
	cache infrastructure.StatsCache,
	defaultBatchSize int,
) *EnrichmentService {
	if scorer == nil {
		scorer = sentiment.NewLexiconScorer()
	}
	if defaultBatchSize <= 0 {
		defaultBatchSize = 100
	}
	return &EnrichmentService{
		reviewRepo:       reviewRepo,
		scorer:           scorer,
		publisher:        publisher,
		cache:            cache,
		defaultBatchSize: defaultBatchSize,
		log:              logger.Component("enrichment"),
	}
}

// Run проходит по неразмеченным отзывам пачками по id.
// Ошибка записи пачки прерывает проход: уже записанные пачки остаются.
func (s *EnrichmentService) Run(ctx context.Context, opts entity.EnrichmentOptions) (*entity.EnrichmentStats, error) {
	start := time.Now()
	defer func() {
		metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	}()

	stats := &entity.EnrichmentStats{
		RunID:  uuid.NewString(),
		DryRun: opts.DryRun,
		ByLabel: map[string]int{
			string(entity.SentimentPositive): 0,
			string(entity.SentimentNegative): 0,
			string(entity.SentimentNeutral):  0,
		},
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.defaultBatchSize
	}

	query := repository.UnscoredQuery{
		ProductID: opts.ProductID,
		FromDate:  opts.FromDate,
		Limit:     batchSize,
	}

	log := s.log.With().Str("run_id", stats.RunID).Bool("dry_run", opts.DryRun).Logger()

	total, err := s.reviewRepo.CountUnscored(ctx, query)
	if err != nil {
		return stats, err
	}
	stats.Total = int(total)
	log.Info().Int64("eligible", total).Str("product_id", opts.ProductID).Msg("Sentiment enrichment started")

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		reviews, err := s.reviewRepo.FindUnscored(ctx, query)
		if err != nil {
			return stats, err
		}
		if len(reviews) == 0 {
			break
		}

		updates := make([]repository.SentimentUpdate, 0, len(reviews))
		for i := range reviews {
			update, empty := s.score(&reviews[i])
			if empty {
				stats.Empty++
			}
			updates = append(updates, update)
		}

		// id растет монотонно, поэтому пачка не перечитывается даже в dry-run
		query.AfterID = reviews[len(reviews)-1].ID

		if opts.DryRun {
			stats.Processed += len(updates)
			for _, u := range updates {
				stats.ByLabel[string(u.Label)]++
				if len(stats.Samples) < maxDryRunSamples {
					stats.Samples = append(stats.Samples, entity.ScoredReview{ReviewID: u.ReviewID, Score: u.Score, Label: u.Label})
				}
			}
			continue
		}

		applied, err := s.reviewRepo.ApplySentiment(ctx, updates)
		if err != nil {
			stats.Errors += len(updates)
			metrics.EnrichmentReviews.WithLabelValues("error").Add(float64(len(updates)))
			log.Error().Err(err).Int("batch", len(updates)).Msg("Failed to write sentiment batch")
			s.finish(ctx, stats, log)
			return stats, fmt.Errorf("failed to apply sentiment batch: %w", err)
		}

		// Распределение считаем только по записанным строкам, как и Processed
		stats.Processed += len(applied)
		for _, u := range applied {
			stats.ByLabel[string(u.Label)]++
			metrics.EnrichmentReviews.WithLabelValues(string(u.Label)).Inc()
		}

		log.Debug().Int("batch", len(updates)).Int("applied", len(applied)).Msg("Sentiment batch stored")

		if len(reviews) < batchSize {
			break
		}
	}

	s.finish(ctx, stats, log)
	return stats, nil
}

// score: пустой текст получает нейтральную метку с нулевой оценкой,
// чтобы после прохода не оставалось неразмеченных строк
func (s *EnrichmentService) score(review *entity.Review) (repository.SentimentUpdate, bool) {
	text := strings.TrimSpace(review.Title + " " + review.Content)
	if text == "" {
		return repository.SentimentUpdate{ReviewID: review.ID, Score: 0, Label: entity.SentimentNeutral}, true
	}

	score, label := s.scorer.Score(text)
	return repository.SentimentUpdate{ReviewID: review.ID, Score: score, Label: label}, false
}

func (s *EnrichmentService) finish(ctx context.Context, stats *entity.EnrichmentStats, log zerolog.Logger) {
	log.Info().
		Int("total", stats.Total).
		Int("processed", stats.Processed).
		Int("empty", stats.Empty).
		Int("errors", stats.Errors).
		Interface("by_label", stats.ByLabel).
		Msg("Sentiment enrichment finished")

	if stats.DryRun || stats.Processed == 0 {
		return
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePrefix(ctx, statsCachePrefix); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate stats cache")
		}
	}

	if s.publisher == nil {
		return
	}

	event := entity.SentimentEnrichedEvent{
		EventType: entity.EventSentimentEnriched,
		RunID:     stats.RunID,
		Processed: stats.Processed,
		Errors:    stats.Errors,
		ByLabel:   stats.ByLabel,
		DryRun:    stats.DryRun,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal enrichment event")
		return
	}
	if err := s.publisher.PublishMessage(ctx, stats.RunID, data); err != nil {
		log.Warn().Err(err).Msg("Failed to publish enrichment event")
	}
}
