package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"mlreviews/pkg/metrics"
)

const serviceName = "ingestion-service"

// KafkaProducer обертка над Kafka writer.
// Публикует REVIEWS_INGESTED и SENTIMENT_ENRICHED в топик review_events.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer создает producer для топика topic
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // события одного товара в одну партицию
		// Событие отправляется в конце прогона, ждать заполнения батча незачем
		BatchSize:    1,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaProducer{writer: writer, topic: topic}
}

// PublishMessage отправляет одно сообщение, key - ID товара или ID прогона
func (p *KafkaProducer) PublishMessage(ctx context.Context, key string, value []byte) error {
	timer := metrics.NewKafkaProduceTimer(serviceName, p.topic)

	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		timer.Error()
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	timer.Success()
	return nil
}

// Close закрывает writer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// NopPublisher используется, когда Kafka отключена
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, string, []byte) error { return nil }

func (NopPublisher) Close() error { return nil }
