package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/marketplace"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
	"mlreviews/pkg/logger"
	"mlreviews/pkg/metrics"
)

const (
	statsCachePrefix = "stats:"
	maxDateTextLen   = 128
)

// IngestionSettings - лимиты загрузки
type IngestionSettings struct {
	PageSize      int
	DefaultTarget int
	MaxTarget     int
}

// IngestionService загружает товары и их отзывы с маркетплейса.
// Один вызов обрабатывает товары последовательно, страница за страницей.
type IngestionService struct {
	client      marketplace.Client
	productRepo repository.ProductRepository
	reviewRepo  repository.ReviewRepository
	publisher   infrastructure.MessagePublisher
	cache       infrastructure.StatsCache
	dates       DateNormalizer
	settings    IngestionSettings
	now         func() time.Time
	log         zerolog.Logger
}

// NewIngestionService создает сервис загрузки с внедрением зависимостей.
// publisher и cache могут быть nil.
func NewIngestionService(
	client marketplace.Client,
	productRepo repository.ProductRepository,
	reviewRepo repository.ReviewRepository,
	publisher infrastructure.MessagePublisher,
	cache infrastructure.StatsCache,
	dates DateNormalizer,
	settings IngestionSettings,
) *IngestionService {
	if dates == nil {
		dates = NewSourceDateNormalizer()
	}
	if settings.DefaultTarget <= 0 {
		settings.DefaultTarget = 100
	}
	if settings.MaxTarget < settings.DefaultTarget {
		settings.MaxTarget = settings.DefaultTarget
	}

	return &IngestionService{
		client:      client,
		productRepo: productRepo,
		reviewRepo:  reviewRepo,
		publisher:   publisher,
		cache:       cache,
		dates:       dates,
		settings:    settings,
		now:         time.Now,
		log:         logger.Component("ingestion"),
	}
}

// pageSize - размер страницы из настроек, ограниченный возможностями backend
func (s *IngestionService) pageSize() int {
	max := s.client.MaxPageSize()
	if s.settings.PageSize <= 0 || s.settings.PageSize > max {
		return max
	}
	return s.settings.PageSize
}

func (s *IngestionService) target(requested int) int {
	if requested <= 0 {
		return s.settings.DefaultTarget
	}
	if requested > s.settings.MaxTarget {
		return s.settings.MaxTarget
	}
	return requested
}

func resolveRef(req entity.IngestRequest) (entity.ProductRef, string, error) {
	if req.URL != "" {
		ref, err := marketplace.ParseProductURL(req.URL)
		return ref, req.URL, err
	}
	if req.ProductID != "" {
		ref, err := marketplace.RefFromID(req.ProductID)
		return ref, req.ProductID, err
	}
	return entity.ProductRef{}, "", fmt.Errorf("%w: empty request", marketplace.ErrInvalidProductRef)
}

// IngestProduct загружает один товар и до Target его отзывов.
// Для partial и failed вместе с результатом возвращается причина.
func (s *IngestionService) IngestProduct(ctx context.Context, req entity.IngestRequest) (*entity.ProductIngestResult, error) {
	runID := uuid.NewString()

	ref, input, err := resolveRef(req)
	if err != nil {
		metrics.IngestProducts.WithLabelValues(entity.IngestSkipped).Inc()
		return &entity.ProductIngestResult{
			RunID:  runID,
			Input:  input,
			Status: entity.IngestSkipped,
			Error:  err.Error(),
		}, err
	}

	return s.ingest(ctx, runID, input, ref, s.target(req.Target))
}

// IngestBatch обрабатывает товары независимо друг от друга и всегда
// возвращает сводку. Повторы одного товара в пакете пропускаются.
func (s *IngestionService) IngestBatch(ctx context.Context, reqs []entity.IngestRequest) *entity.BatchSummary {
	summary := &entity.BatchSummary{RunID: uuid.NewString()}
	seen := make(map[string]struct{}, len(reqs))

	log := s.log.With().Str("run_id", summary.RunID).Logger()
	log.Info().Int("items", len(reqs)).Msg("Batch ingestion started")

	for _, req := range reqs {
		ref, input, err := resolveRef(req)

		var result *entity.ProductIngestResult
		switch {
		case err != nil:
			log.Warn().Err(err).Str("input", input).Msg("Skipping invalid product reference")
			metrics.IngestProducts.WithLabelValues(entity.IngestSkipped).Inc()
			result = &entity.ProductIngestResult{
				RunID:  summary.RunID,
				Input:  input,
				Status: entity.IngestSkipped,
				Error:  err.Error(),
			}

		case ctx.Err() != nil:
			result = &entity.ProductIngestResult{
				RunID:  summary.RunID,
				Input:  input,
				Ref:    ref,
				Status: entity.IngestFailed,
				Error:  ctx.Err().Error(),
			}

		default:
			if _, dup := seen[ref.ID]; dup {
				log.Debug().Str("product_id", ref.ID).Msg("Duplicate product in batch ignored")
				continue
			}
			seen[ref.ID] = struct{}{}

			result, _ = s.ingest(ctx, summary.RunID, input, ref, s.target(req.Target))
		}

		summary.Items = append(summary.Items, result)
		summary.Total++
		switch result.Status {
		case entity.IngestSucceeded:
			summary.Succeeded++
		case entity.IngestPartial:
			summary.Partial++
		case entity.IngestSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("partial", summary.Partial).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("Batch ingestion finished")

	return summary
}

// RefreshProduct перечитывает карточку товара с маркетплейса.
// Ошибки маркетплейса возвращаются вызывающему как есть.
func (s *IngestionService) RefreshProduct(ctx context.Context, productID string) (*entity.Product, error) {
	ref, err := marketplace.RefFromID(productID)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.FetchProduct(ctx, ref)
	if err != nil {
		return nil, err
	}

	product := mapProduct(raw, ref)
	if _, err := s.productRepo.Upsert(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}

	s.invalidateStats(ctx)
	return product, nil
}

func (s *IngestionService) ingest(ctx context.Context, runID, input string, ref entity.ProductRef, target int) (*entity.ProductIngestResult, error) {
	result := &entity.ProductIngestResult{
		RunID:  runID,
		Input:  input,
		Ref:    ref,
		Target: target,
	}

	log := s.log.With().Str("run_id", runID).Str("product_id", ref.ID).Logger()
	log.Info().Int("target", target).Str("backend", string(s.client.Mode())).Msg("Ingesting product")

	if err := s.ensureProduct(ctx, ref, log); err != nil {
		return s.finish(ctx, result, err, log)
	}

	err := s.collectReviews(ctx, ref, target, result, log)
	return s.finish(ctx, result, err, log)
}

// ensureProduct сохраняет карточку товара. Если маркетплейс окончательно
// отказал, создается заглушка по подсказке из URL, и загрузка отзывов
// продолжается. Временная ошибка прерывает товар.
func (s *IngestionService) ensureProduct(ctx context.Context, ref entity.ProductRef, log zerolog.Logger) error {
	raw, err := s.client.FetchProduct(ctx, ref)
	if err == nil {
		if _, err := s.productRepo.Upsert(ctx, mapProduct(raw, ref)); err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
		return nil
	}

	if !marketplace.IsPermanent(err) {
		return fmt.Errorf("failed to fetch product: %w", err)
	}

	log.Warn().Err(err).Msg("Product metadata unavailable, using placeholder")
	if err := s.productRepo.EnsureExists(ctx, placeholderProduct(ref)); err != nil {
		return fmt.Errorf("failed to save placeholder product: %w", err)
	}
	return nil
}

func (s *IngestionService) collectReviews(ctx context.Context, ref entity.ProductRef, target int, result *entity.ProductIngestResult, log zerolog.Logger) error {
	pageSize := s.pageSize()
	seen := make(map[string]struct{})
	offset := 0

	for result.Collected < target {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := pageSize
		if remaining := target - result.Collected; remaining < limit {
			limit = remaining
		}

		page, err := s.client.FetchReviewPage(ctx, ref, offset, limit)
		if err != nil {
			return fmt.Errorf("failed to fetch reviews at offset %d: %w", offset, err)
		}
		result.Pages++
		metrics.IngestPages.Inc()

		for _, rejected := range page.Rejected {
			log.Warn().Str("reason", rejected.Reason).RawJSON("record", safeRaw(rejected.Raw)).Msg("Review record rejected")
		}
		result.Rejected += len(page.Rejected)

		if len(page.Reviews) == 0 {
			log.Debug().Int("offset", offset).Msg("Empty page, stopping")
			return nil
		}

		fetchedAt := s.now()
		batch := make([]*entity.Review, 0, len(page.Reviews))
		for _, raw := range page.Reviews {
			if _, dup := seen[raw.APIReviewID]; dup {
				result.Duplicate++
				continue
			}
			seen[raw.APIReviewID] = struct{}{}
			batch = append(batch, s.mapReview(ref.ID, raw, fetchedAt, log))
		}

		// Backend игнорирует offset или повторяет страницу: дальше листать бессмысленно
		if len(batch) == 0 {
			log.Debug().Int("offset", offset).Int("received", len(page.Reviews)).Msg("No new reviews on page, stopping")
			return nil
		}

		pr, err := s.reviewRepo.UpsertPage(ctx, ref.ID, batch)
		if err != nil {
			return err
		}
		result.Created += pr.Created
		result.Updated += pr.Updated
		result.Unchanged += pr.Unchanged
		result.Conflicts += len(pr.Conflicts)
		result.Collected += pr.Created + pr.Updated

		for _, conflict := range pr.Conflicts {
			log.Warn().Err(conflict).Msg("Review skipped on persistence conflict")
		}

		log.Debug().
			Int("offset", offset).
			Int("limit", limit).
			Int("received", len(page.Reviews)).
			Int("collected", result.Collected).
			Msg("Page stored")

		offset += limit
		if !page.HasMore {
			return nil
		}
	}

	return nil
}

// finish выставляет статус, публикует событие и сбрасывает кеш статистики
func (s *IngestionService) finish(ctx context.Context, result *entity.ProductIngestResult, err error, log zerolog.Logger) (*entity.ProductIngestResult, error) {
	switch {
	case err == nil:
		result.Status = entity.IngestSucceeded
	case result.Pages > 0:
		result.Status = entity.IngestPartial
	default:
		result.Status = entity.IngestFailed
	}
	if err != nil {
		result.Error = err.Error()
	}

	metrics.IngestProducts.WithLabelValues(result.Status).Inc()
	metrics.IngestReviews.WithLabelValues("created").Add(float64(result.Created))
	metrics.IngestReviews.WithLabelValues("updated").Add(float64(result.Updated))
	metrics.IngestReviews.WithLabelValues("unchanged").Add(float64(result.Unchanged))
	metrics.IngestReviews.WithLabelValues("duplicate").Add(float64(result.Duplicate))
	metrics.IngestReviews.WithLabelValues("rejected").Add(float64(result.Rejected))
	metrics.IngestReviews.WithLabelValues("conflict").Add(float64(result.Conflicts))

	event := log.Info()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("status", result.Status).
		Int("collected", result.Collected).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("duplicate", result.Duplicate).
		Int("rejected", result.Rejected).
		Int("pages", result.Pages).
		Msg("Product ingestion finished")

	if result.Status != entity.IngestFailed {
		s.publishIngested(ctx, result)
	}
	if result.Created+result.Updated > 0 {
		s.invalidateStats(ctx)
	}

	return result, err
}

func (s *IngestionService) publishIngested(ctx context.Context, result *entity.ProductIngestResult) {
	if s.publisher == nil {
		return
	}

	event := entity.ReviewsIngestedEvent{
		EventType: entity.EventReviewsIngested,
		RunID:     result.RunID,
		ProductID: result.Ref.ID,
		Created:   result.Created,
		Updated:   result.Updated,
		Unchanged: result.Unchanged,
		Collected: result.Collected,
		Partial:   result.Status == entity.IngestPartial,
		Error:     result.Error,
		Timestamp: s.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal ingestion event")
		return
	}

	// Событие не критично: отзывы уже сохранены
	if err := s.publisher.PublishMessage(ctx, result.Ref.ID, data); err != nil {
		s.log.Warn().Err(err).Str("product_id", result.Ref.ID).Msg("Failed to publish ingestion event")
	}
}

func (s *IngestionService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, statsCachePrefix); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate stats cache")
	}
}

func (s *IngestionService) mapReview(productID string, raw entity.RawReview, fetchedAt time.Time, log zerolog.Logger) *entity.Review {
	date, status := s.dates.Normalize(raw.DateText, fetchedAt)
	metrics.ReviewDates.WithLabelValues(string(status)).Inc()
	if status == entity.DateUnresolved {
		log.Warn().
			Str("api_review_id", raw.APIReviewID).
			Str("date_text", raw.DateText).
			Msg("Review date could not be resolved")
	}

	return &entity.Review{
		ID:          entity.ReviewKey(productID, raw.APIReviewID),
		ProductID:   productID,
		APIReviewID: raw.APIReviewID,
		Rate:        raw.Rate,
		Title:       raw.Title,
		Content:     raw.Content,
		DateCreated: date,
		DateStatus:  status,
		DateText:    truncate(raw.DateText, maxDateTextLen),
		ReviewerID:  raw.ReviewerID,
		Likes:       raw.Likes,
		Dislikes:    raw.Dislikes,
		Source:      raw.Source,
		Media:       datatypes.JSON(raw.Media),
		RawJSON:     datatypes.JSON(raw.Raw),
	}
}

func mapProduct(raw *entity.RawProduct, ref entity.ProductRef) *entity.Product {
	product := &entity.Product{
		ID:                raw.ID,
		Title:             raw.Title,
		Price:             raw.Price,
		SiteID:            raw.SiteID,
		CurrencyID:        raw.CurrencyID,
		SoldQuantity:      raw.SoldQuantity,
		AvailableQuantity: raw.AvailableQuantity,
		Marca:             raw.Brand,
		Modelo:            raw.Model,
	}
	if product.ID == "" {
		product.ID = ref.ID
	}
	if product.Title == "" {
		product.Title = placeholderTitle(ref)
	}
	if product.SiteID == "" {
		product.SiteID = ref.SiteID
	}
	if product.CurrencyID == "" {
		product.CurrencyID = "ARS"
	}
	if len(raw.Attributes) > 0 {
		product.Caracteristicas = datatypes.JSONMap(raw.Attributes)
	}

	// url без SourceURL (refresh по ID) репозиторий берет из сохраненной строки
	info := datatypes.JSONMap{"external_id": product.ID}
	if ref.SourceURL != "" {
		info[entity.InfoURL] = ref.SourceURL
	}
	if raw.Permalink != "" {
		info["permalink"] = raw.Permalink
	}
	product.MLAdditionalInfo = info
	return product
}

func placeholderProduct(ref entity.ProductRef) *entity.Product {
	info := datatypes.JSONMap{"placeholder": true, "external_id": ref.ID}
	if ref.SourceURL != "" {
		info[entity.InfoURL] = ref.SourceURL
	}
	return &entity.Product{
		ID:               ref.ID,
		Title:            placeholderTitle(ref),
		SiteID:           ref.SiteID,
		CurrencyID:       "ARS",
		MLAdditionalInfo: info,
	}
}

func placeholderTitle(ref entity.ProductRef) string {
	if ref.TitleHint != "" {
		return ref.TitleHint
	}
	return "Item " + ref.ID
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// safeRaw возвращает JSON, пригодный для RawJSON в логе
func safeRaw(raw json.RawMessage) []byte {
	if len(raw) == 0 || !json.Valid(raw) {
		return []byte("null")
	}
	return raw
}

// IsTransientFailure - загрузку имеет смысл повторить позже.
// Неверная ссылка и окончательный отказ маркетплейса не повторяются.
func IsTransientFailure(err error) bool {
	if err == nil {
		return false
	}
	return !marketplace.IsPermanent(err) && !errors.Is(err, marketplace.ErrInvalidProductRef)
}
