package kafka

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"exam-portal/logger"
	"exam-portal/metrics"
	"exam-portal/models"

	"github.com/segmentio/kafka-go"
)

const publishAttempts = 3

// Producer publishes payment events to the payments topic.
type Producer struct {
	mu        sync.Mutex
	writer    messageWriter
	topic     string
	dlq       *DLQ
	connected bool

	backoff func(attempt int) time.Duration
}

// NewProducer initializes a Kafka writer for topic. It returns nil when no
// brokers are configured; callers fall back to a no-op publisher.
func NewProducer(brokers []string, topic string, dlq *DLQ) *Producer {
	if len(brokers) == 0 {
		logger.Info("Kafka is disabled (KAFKA_BROKERS is empty)")
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}

	logger.Info("Kafka producer initialized. Brokers=%v, Topic=%s", brokers, topic)
	return newProducer(writer, topic, dlq)
}

func newProducer(w messageWriter, topic string, dlq *DLQ) *Producer {
	return &Producer{
		writer:    w,
		topic:     topic,
		dlq:       dlq,
		connected: true,
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
	}
}

// PublishPaymentEvent publishes evt keyed by registration so that events for
// one registration stay ordered on a partition.
func (p *Producer) PublishPaymentEvent(ctx context.Context, evt models.PaymentEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("Error marshaling Kafka message: %v", err)
		return err
	}
	return p.Publish(ctx, "registration-"+evt.RegistrationID, payload)
}

// Publish writes one message with exponential backoff. After the last failed
// attempt the message is handed to the DLQ.
func (p *Producer) Publish(ctx context.Context, key string, payload []byte) error {
	msg := kafka.Message{Key: []byte(key), Value: payload}

	var lastErr error
retry:
	for attempt := 0; attempt < publishAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(wctx, msg)
		cancel()

		if err == nil {
			p.setConnected(true)
			metrics.EventsPublished.WithLabelValues("ok").Inc()
			return nil
		}

		lastErr = err
		p.setConnected(false)
		logger.Warn("Kafka publish attempt %d/%d failed: %v", attempt+1, publishAttempts, err)

		if attempt < publishAttempts-1 {
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			}
		}
	}

	metrics.EventsPublished.WithLabelValues("dlq").Inc()
	logger.Info("Sending failed message to DLQ. Topic: %s, Key: %s", p.topic, key)
	if p.dlq != nil {
		if dlqErr := p.dlq.Send(context.Background(), p.topic, key, payload, lastErr.Error()); dlqErr != nil {
			logger.Error("Failed to send message to DLQ: %v", dlqErr)
		}
	}
	return lastErr
}

func (p *Producer) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// IsConnected reports whether the last write succeeded.
func (p *Producer) IsConnected() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close gracefully closes the Kafka producer
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
