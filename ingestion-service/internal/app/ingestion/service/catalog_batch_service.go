package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
	"mlreviews/pkg/logger"
)

const defaultMinReviews = 50

// CatalogBatchService повторно обрабатывает товары, уже сохраненные в базе:
// догружает отзывы тем, у кого их мало, и размечает тональность по товару.
type CatalogBatchService struct {
	productRepo repository.ProductRepository
	ingestion   IngestionServiceInterface
	enrichment  EnrichmentServiceInterface
	log         zerolog.Logger
}

func NewCatalogBatchService(
	productRepo repository.ProductRepository,
	ingestion IngestionServiceInterface,
	enrichment EnrichmentServiceInterface,
) *CatalogBatchService {
	return &CatalogBatchService{
		productRepo: productRepo,
		ingestion:   ingestion,
		enrichment:  enrichment,
		log:         logger.Component("catalog-batch"),
	}
}

// Run обходит сохраненные товары по порядку id. Ошибка одного товара
// попадает в его элемент сводки, проход продолжается.
func (s *CatalogBatchService) Run(ctx context.Context, opts entity.CatalogBatchOptions) (*entity.CatalogSummary, error) {
	if opts.Action == "" {
		opts.Action = entity.CatalogActionAll
	}
	if opts.MinReviews <= 0 {
		opts.MinReviews = defaultMinReviews
	}
	// Без явного target догружаем до порога
	if opts.Target <= 0 {
		opts.Target = opts.MinReviews
	}

	products, err := s.productRepo.ListWithReviewCounts(ctx, opts.ProductID)
	if err != nil {
		return nil, err
	}
	if opts.ProductID != "" && len(products) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, opts.ProductID)
	}

	summary := &entity.CatalogSummary{
		RunID:      uuid.NewString(),
		Action:     opts.Action,
		MinReviews: opts.MinReviews,
		Total:      len(products),
		Items:      make([]*entity.CatalogItemResult, 0, len(products)),
	}

	log := s.log.With().Str("run_id", summary.RunID).Str("action", opts.Action).Logger()
	log.Info().Int("products", len(products)).Int("min_reviews", opts.MinReviews).Msg("Catalog batch started")

	for i := range products {
		item := s.processProduct(ctx, &products[i], opts, summary, log)
		summary.Items = append(summary.Items, item)
	}

	log.Info().
		Int("reviews_succeeded", summary.ReviewsSucceeded).
		Int("reviews_failed", summary.ReviewsFailed).
		Int("reviews_skipped", summary.ReviewsSkipped).
		Int("sentiment_succeeded", summary.SentimentSucceeded).
		Int("sentiment_failed", summary.SentimentFailed).
		Int("sentiment_skipped", summary.SentimentSkipped).
		Msg("Catalog batch finished")

	return summary, nil
}

func (s *CatalogBatchService) processProduct(
	ctx context.Context,
	product *repository.ProductReviewCount,
	opts entity.CatalogBatchOptions,
	summary *entity.CatalogSummary,
	log zerolog.Logger,
) *entity.CatalogItemResult {
	item := &entity.CatalogItemResult{
		ProductID:     product.ID,
		URL:           product.SourceURL(),
		ReviewsBefore: product.ReviewCount,
	}
	reviews := product.ReviewCount

	if opts.Action == entity.CatalogActionReviews || opts.Action == entity.CatalogActionAll {
		switch {
		case reviews >= int64(opts.MinReviews):
			summary.ReviewsSkipped++
			item.Skipped = append(item.Skipped, "reviews: already has enough reviews")
		case ctx.Err() != nil:
			summary.ReviewsFailed++
			item.Error = ctx.Err().Error()
			return item
		default:
			result, err := s.ingestion.IngestProduct(ctx, catalogIngestRequest(item, opts.Target))
			item.Ingest = result
			if err != nil {
				item.Error = err.Error()
			}
			if result != nil {
				reviews += int64(result.Created)
				switch result.Status {
				case entity.IngestSucceeded:
					summary.ReviewsSucceeded++
				case entity.IngestPartial:
					summary.ReviewsPartial++
				default:
					summary.ReviewsFailed++
				}
			} else {
				summary.ReviewsFailed++
			}
		}
	}

	if opts.Action == entity.CatalogActionSentiment || opts.Action == entity.CatalogActionAll {
		switch {
		case reviews == 0:
			summary.SentimentSkipped++
			item.Skipped = append(item.Skipped, "sentiment: no reviews")
		case ctx.Err() != nil:
			summary.SentimentFailed++
			item.Error = ctx.Err().Error()
		default:
			stats, err := s.enrichment.Run(ctx, entity.EnrichmentOptions{ProductID: product.ID})
			item.Sentiment = stats
			if err != nil {
				summary.SentimentFailed++
				item.Error = err.Error()
				log.Warn().Err(err).Str("product_id", product.ID).Msg("Sentiment pass for product failed")
			} else {
				summary.SentimentSucceeded++
			}
		}
	}

	return item
}

// catalogIngestRequest: сохраненная ссылка дает подсказку названия для заглушки
func catalogIngestRequest(item *entity.CatalogItemResult, target int) entity.IngestRequest {
	if item.URL != "" {
		return entity.IngestRequest{URL: item.URL, Target: target}
	}
	return entity.IngestRequest{ProductID: item.ProductID, Target: target}
}
