package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mlreviews/ingestion-service/internal/app/ingestion/config"
	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/handler"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/cache"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/marketplace"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/messaging"
	"mlreviews/ingestion-service/internal/app/ingestion/infrastructure/ratelimit"
	"mlreviews/ingestion-service/internal/app/ingestion/processor"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
	"mlreviews/ingestion-service/internal/app/ingestion/sentiment"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
	"mlreviews/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(handler.ServiceName, cfg.Log.Level)
	if cfg.Log.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.Log.LogstashAddr, handler.ServiceName, cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.Log.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// === POSTGRESQL ===
	db, err := connectDB(cfg.Database, cfg.Log.Level)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.AutoMigrate(&entity.Product{}, &entity.Review{}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database schema")
	}
	logger.Info().Msg("Connected to PostgreSQL")

	// === REDIS ===
	// Без Redis статистика считается каждый раз заново
	var statsCache infrastructure.StatsCache
	redisClient, err := connectRedis(cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, stats cache disabled")
	} else {
		defer redisClient.Close()
		statsCache = cache.NewRedisStatsCache(redisClient)
		logger.Info().Str("addr", cfg.Redis.Address()).Msg("Connected to Redis")
	}

	// === KAFKA PRODUCER ===
	var publisher infrastructure.MessagePublisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		logger.Info().Str("topic", cfg.Kafka.EventsTopic).Msg("Initialized Kafka producer")
	}
	defer publisher.Close()

	// === MARKETPLACE ===
	limiter := ratelimit.New(cfg.Marketplace.RequestDelay, nil)
	client := marketplace.NewClient(cfg.Marketplace, limiter)
	logger.Info().
		Str("mode", string(client.Mode())).
		Dur("request_delay", cfg.Marketplace.RequestDelay).
		Int("page_size", client.MaxPageSize()).
		Msg("Marketplace client initialized")

	// === REPOSITORIES & SERVICES ===
	productRepo := repository.NewProductRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	ingestionSvc := service.NewIngestionService(
		client,
		productRepo,
		reviewRepo,
		publisher,
		statsCache,
		service.NewSourceDateNormalizer(),
		service.IngestionSettings{
			PageSize:      cfg.Marketplace.PageSize,
			DefaultTarget: cfg.Ingestion.DefaultTarget,
			MaxTarget:     cfg.Ingestion.MaxTarget,
		},
	)
	enrichmentSvc := service.NewEnrichmentService(reviewRepo, sentiment.NewLexiconScorer(), publisher, statsCache, cfg.Enrichment.BatchSize)
	statsSvc := service.NewStatsService(statsRepo, statsCache, cfg.Redis.StatsTTL)
	catalogSvc := service.NewCatalogService(productRepo, reviewRepo, client)
	catalogBatchSvc := service.NewCatalogBatchService(productRepo, ingestionSvc, enrichmentSvc)

	// === KAFKA CONSUMER ===
	if cfg.Kafka.Enabled {
		consumer := processor.NewKafkaConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.IngestTopic,
			cfg.Kafka.GroupID,
			cfg.Kafka.MinBytes,
			cfg.Kafka.MaxBytes,
			ingestionSvc,
		)
		consumer.Start(ctx)
		defer consumer.Stop()
	}

	// === CRON ===
	scheduler := processor.NewCronScheduler(enrichmentSvc, cfg.Enrichment.RunOnStart)
	if err := scheduler.Start(ctx, cfg.Enrichment.Schedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Enrichment.Schedule).Msg("Failed to start cron scheduler")
	}
	defer scheduler.Stop()

	// === HTTP ===
	checks := map[string]handler.CheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	router := handler.SetupRoutes(handler.Handlers{
		Catalog:   handler.NewCatalogHandler(catalogSvc, ingestionSvc),
		Stats:     handler.NewStatsHandler(statsSvc),
		Ingestion: handler.NewIngestionHandler(ingestionSvc, enrichmentSvc, catalogBatchSvc),
		Health:    handler.NewHealthHandler(handler.ServiceName, checks),
	}, handler.NewAuthMiddleware(cfg.JWT.Secret))

	server := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Загрузка большого набора товаров идет внутри запроса
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Ingestion Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// === GRACEFUL SHUTDOWN ===
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Ingestion Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Отменяем фоновые проходы, consumer и cron останавливаются в defer
	stop()

	logger.Info().Msg("Ingestion Service stopped gracefully")
}

// connectDB устанавливает соединение с PostgreSQL используя GORM
func connectDB(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.NewGormLogger(logLevel),
		// Upsert отзывов идет по одному выражению, отдельная транзакция не нужна
		SkipDefaultTransaction: true,
	}

	// Retry logic для устойчивости при запуске в Docker
	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.URL), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.Ping(); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
				sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(1 * time.Minute)
				return db, nil
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to database, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

// connectRedis пробует подключиться несколько раз, затем сдается
func connectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	var err error
	for i := 0; i < 5; i++ {
		var client *redis.Client
		client, err = cache.NewRedisClient(cfg.Address(), cfg.Password, cfg.DB)
		if err == nil {
			return client, nil
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to Redis, retrying...")
		time.Sleep(2 * time.Second)
	}
	return nil, err
}
