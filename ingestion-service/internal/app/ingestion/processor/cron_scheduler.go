package processor

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
	"mlreviews/pkg/logger"
)

// CronScheduler периодически запускает разметку тональности.
// Проходы не пересекаются: пока идет предыдущий, новое срабатывание пропускается.
type CronScheduler struct {
	cron       *cron.Cron
	enrichment service.EnrichmentServiceInterface
	runOnStart bool
	entryID    cron.EntryID
	wg         sync.WaitGroup
	log        zerolog.Logger
}

func NewCronScheduler(enrichment service.EnrichmentServiceInterface, runOnStart bool) *CronScheduler {
	c := cron.New(
		cron.WithLogger(logger.CronLogger{}),
		cron.WithChain(
			cron.Recover(logger.CronLogger{}),
			cron.SkipIfStillRunning(logger.CronLogger{}),
		),
	)

	return &CronScheduler{
		cron:       c,
		enrichment: enrichment,
		runOnStart: runOnStart,
		log:        logger.Component("cron"),
	}
}

// Start регистрирует задачу по расписанию (5 полей или @every/@hourly).
// Пустое расписание отключает планировщик.
func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		s.log.Info().Msg("Enrichment schedule is empty, cron disabled")
		return nil
	}

	s.log.Info().Str("schedule", schedule).Msg("Starting cron scheduler")

	id, err := s.cron.AddFunc(schedule, func() {
		s.runEnrichment(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id

	s.cron.Start()
	s.log.Info().Msg("Cron scheduler started")

	if s.runOnStart {
		// Через обернутую задачу, чтобы первый проход тоже учитывался SkipIfStillRunning
		job := s.cron.Entry(id).WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}

	return nil
}

func (s *CronScheduler) runEnrichment(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.log.Info().Msg("Cron job triggered: sentiment enrichment")

	stats, err := s.enrichment.Run(ctx, entity.EnrichmentOptions{})
	if err != nil {
		s.log.Error().Err(err).Msg("Sentiment enrichment failed")
		return
	}

	s.log.Info().
		Str("run_id", stats.RunID).
		Int("processed", stats.Processed).
		Dur("duration", time.Since(start)).
		Msg("Cron job completed")
}

// Stop ждет завершения запущенных проходов
func (s *CronScheduler) Stop() {
	s.log.Info().Msg("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info().Msg("Cron scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}
