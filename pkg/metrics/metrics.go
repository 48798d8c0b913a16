package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Пример запроса PromQL: rate(http_requests_total{service="ingestion-service"}[5m])
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"service", "method", "path"},
)

var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики
// =============================================================================

var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
	[]string{"service", "operation", "table"},
)

var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики
// =============================================================================

var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"},
)

var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики
// =============================================================================

var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

var KafkaMessagesConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_consumed_total",
		Help: "Total number of Kafka messages consumed",
	},
	[]string{"service", "topic", "group"},
)

var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

var KafkaConsumeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_consume_duration_seconds",
		Help:    "Duration of Kafka message processing",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	},
	[]string{"service", "topic"},
)

// operation: produce, consume, commit
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Marketplace API
// =============================================================================

// MarketplaceRequests - запросы к API маркетплейса
// status: код ответа или "network"
var MarketplaceRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketplace_requests_total",
		Help: "Total number of marketplace API requests",
	},
	[]string{"backend", "endpoint", "status"},
)

var MarketplaceRetries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketplace_retries_total",
		Help: "Total number of retried marketplace API requests",
	},
	[]string{"backend", "endpoint"},
)

var MarketplaceRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "marketplace_request_duration_seconds",
		Help:    "Duration of marketplace API requests",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	},
	[]string{"backend", "endpoint"},
)

// RateLimitWait - время ожидания в rate limiter
var RateLimitWait = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ratelimit_wait_seconds",
		Help:    "Time spent waiting for the outbound rate limiter",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
	},
)

// =============================================================================
// Ingestion / Enrichment
// =============================================================================

// outcome: created, updated, unchanged, conflict, rejected, duplicate
var IngestReviews = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_reviews_total",
		Help: "Reviews processed by the ingestion pipeline by outcome",
	},
	[]string{"outcome"},
)

// status: succeeded, partial, failed, skipped
var IngestProducts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_products_total",
		Help: "Products processed by the ingestion pipeline by status",
	},
	[]string{"status"},
)

var IngestPages = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ingest_pages_total",
		Help: "Review pages fetched and persisted",
	},
)

// label: positive, negative, neutral, error
var EnrichmentReviews = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enrichment_reviews_total",
		Help: "Reviews scored by the sentiment enrichment pass",
	},
	[]string{"label"},
)

var EnrichmentDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "enrichment_run_duration_seconds",
		Help:    "Duration of a sentiment enrichment pass",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	},
)

// status: parsed, corrected, relative, unresolved, missing
var ReviewDates = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "review_dates_total",
		Help: "Normalized review dates by status",
	},
	[]string{"status"},
)
