package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/service"
	"mlreviews/pkg/logger"
	"mlreviews/pkg/metrics"
)

const (
	serviceName = "ingestion-service"

	defaultRetryBackoff    = 2 * time.Second
	defaultRetryBackoffMax = time.Minute
)

// messageReader - часть kafka.Reader, которой пользуется consumer
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer обрабатывает запросы на загрузку из топика ingest_requests
type KafkaConsumer struct {
	reader    messageReader
	topic     string
	groupID   string
	ingestion service.IngestionServiceInterface
	cancel    context.CancelFunc
	doneChan  chan struct{}
	log       zerolog.Logger

	retryBackoff    time.Duration
	retryBackoffMax time.Duration
}

// NewKafkaConsumer создает новый Kafka consumer
func NewKafkaConsumer(
	brokers []string,
	topic string,
	groupID string,
	minBytes int,
	maxBytes int,
	ingestion service.IngestionServiceInterface,
) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: minBytes,
		MaxBytes: maxBytes,
		// Новая группа забирает и запросы, отправленные до ее первого запуска
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
	})

	return newKafkaConsumer(reader, topic, groupID, ingestion)
}

func newKafkaConsumer(reader messageReader, topic, groupID string, ingestion service.IngestionServiceInterface) *KafkaConsumer {
	return &KafkaConsumer{
		reader:    reader,
		topic:     topic,
		groupID:   groupID,
		ingestion: ingestion,
		doneChan:  make(chan struct{}),
		log:       logger.Component("kafka-consumer"),

		retryBackoff:    defaultRetryBackoff,
		retryBackoffMax: defaultRetryBackoffMax,
	}
}

// Start запускает consumer в отдельной горутине
func (c *KafkaConsumer) Start(ctx context.Context) {
	c.log.Info().Str("topic", c.topic).Str("group", c.groupID).Msg("Starting Kafka consumer...")

	ctx, c.cancel = context.WithCancel(ctx)
	go c.consume(ctx)
}

// Stop останавливает consumer и закрывает reader
func (c *KafkaConsumer) Stop() {
	c.log.Info().Msg("Stopping Kafka consumer...")
	if c.cancel != nil {
		c.cancel()
		<-c.doneChan
	}
	if err := c.reader.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to close Kafka reader")
	}
	c.log.Info().Msg("Kafka consumer stopped")
}

func (c *KafkaConsumer) consume(ctx context.Context) {
	defer close(c.doneChan)

	for {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		message, err := c.reader.FetchMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if readCtx.Err() == context.DeadlineExceeded {
				// В топике пусто
				continue
			}

			c.log.Error().Err(err).Msg("Error fetching message")
			metrics.RecordKafkaError(serviceName, c.topic, "fetch")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		start := time.Now()
		if !c.handleMessage(ctx, message) {
			// Остановка посреди повторов: offset не коммитим, сообщение придет снова
			return
		}
		metrics.RecordKafkaMessageConsumed(serviceName, c.topic, c.groupID, time.Since(start))

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Int64("offset", message.Offset).Msg("Error committing message")
			metrics.RecordKafkaError(serviceName, c.topic, "commit")
		}
	}
}

// handleMessage повторяет временные ошибки, не переходя к следующему сообщению:
// коммит более позднего offset партиции подтвердил бы и это сообщение.
// Возвращает false только при отмене контекста.
func (c *KafkaConsumer) handleMessage(ctx context.Context, message kafka.Message) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		if c.processMessage(ctx, message) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		c.log.Warn().
			Int64("offset", message.Offset).
			Int("partition", message.Partition).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying ingest request")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.retryBackoffMax {
			backoff = c.retryBackoffMax
		}
	}
}

// processMessage возвращает false, если сообщение надо обработать повторно.
// Битый JSON и постоянные ошибки коммитятся: повторная доставка их не исправит.
func (c *KafkaConsumer) processMessage(ctx context.Context, message kafka.Message) bool {
	event, err := decodeIngestRequest(message.Value)
	if err != nil {
		c.log.Error().Err(err).
			Int64("offset", message.Offset).
			Int("partition", message.Partition).
			Msg("Dropping malformed ingest request")
		metrics.RecordKafkaError(serviceName, c.topic, "decode")
		return true
	}

	c.log.Info().
		Str("request_id", event.RequestID).
		Str("product_id", event.ProductID).
		Str("url", event.URL).
		Int64("offset", message.Offset).
		Msg("Received ingest request")

	result, err := c.ingestion.IngestProduct(ctx, entity.IngestRequest{
		ProductID: event.ProductID,
		URL:       event.URL,
		Target:    event.Target,
	})
	if err == nil {
		return true
	}

	retry := service.IsTransientFailure(err) && ctx.Err() == nil
	metrics.RecordKafkaError(serviceName, c.topic, "process")

	ev := c.log.Warn().Err(err).Str("request_id", event.RequestID)
	if result != nil {
		ev = ev.Str("status", result.Status).Int("collected", result.Collected)
	}
	ev.Bool("will_retry", retry).Msg("Ingest request finished with error")

	if ctx.Err() != nil {
		return false
	}
	return !retry
}

func decodeIngestRequest(value []byte) (*entity.IngestRequestEvent, error) {
	var event entity.IngestRequestEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingest request: %w", err)
	}
	return &event, nil
}
