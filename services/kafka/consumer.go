package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"exam-portal/logger"
	"exam-portal/models"

	"github.com/segmentio/kafka-go"
)

// EventHandler processes one payment event.
type EventHandler func(ctx context.Context, evt models.PaymentEvent) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads payment events and dispatches them by event name.
type Consumer struct {
	mu       sync.Mutex
	reader   messageReader
	dlq      *DLQ
	handlers map[string]EventHandler
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConsumer creates a consumer-group reader on topic. It returns nil when no
// brokers are configured.
func NewConsumer(brokers []string, topic, groupID string, dlq *DLQ) *Consumer {
	if len(brokers) == 0 {
		logger.Info("Kafka consumer is disabled (KAFKA_BROKERS is empty)")
		return nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:          brokers,
		Topic:            topic,
		GroupID:          groupID,
		StartOffset:      kafka.LastOffset,
		MaxBytes:         10e6,
		SessionTimeout:   20 * time.Second,
		ReadBackoffMin:   100 * time.Millisecond,
		ReadBackoffMax:   1 * time.Second,
		QueueCapacity:    100,
		RebalanceTimeout: 60 * time.Second,
	})

	logger.Info("Kafka consumer initialized. Brokers=%v, Topic=%s, ConsumerGroup=%s", brokers, topic, groupID)
	return newConsumer(reader, dlq)
}

func newConsumer(r messageReader, dlq *DLQ) *Consumer {
	return &Consumer{reader: r, dlq: dlq, handlers: map[string]EventHandler{}}
}

// Handle registers fn for events named event.
func (c *Consumer) Handle(event string, fn EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = fn
	logger.Info("Kafka handler registered for %s", event)
}

// Start consumes messages in a separate goroutine until Stop is called.
func (c *Consumer) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		logger.Warn("Consumer already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.running, c.cancel, c.done = true, cancel, make(chan struct{})
	c.mu.Unlock()

	go c.consume(ctx)
	logger.Info("Kafka consumer started")
}

func (c *Consumer) consume(ctx context.Context) {
	defer close(c.done)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			if strings.Contains(err.Error(), "Group Coordinator Not Available") {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			logger.Warn("Kafka fetch error: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		c.HandleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error("Error committing offset %d: %v", msg.Offset, err)
		}
	}
}

// HandleMessage routes one message to its handler. It returns false when the
// message was sent to the DLQ. Events nobody subscribed to are skipped.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafka.Message) bool {
	var evt models.PaymentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		logger.Error("Error unmarshaling message: %v", err)
		c.deadLetter(ctx, msg, "Failed to unmarshal JSON: "+err.Error())
		return false
	}
	if evt.Event == "" {
		logger.Warn("Message does not contain event type")
		c.deadLetter(ctx, msg, "Message does not contain valid event type")
		return false
	}

	c.mu.Lock()
	handler := c.handlers[evt.Event]
	c.mu.Unlock()

	if handler == nil {
		logger.Debug("No handler for event %s - skipping", evt.Event)
		return true
	}

	if err := handler(ctx, evt); err != nil {
		logger.Error("Error handling event type %s: %v", evt.Event, err)
		c.deadLetter(ctx, msg, "Handler error: "+err.Error())
		return false
	}
	return true
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, reason string) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Send(ctx, msg.Topic, string(msg.Key), msg.Value, reason); err != nil {
		logger.Error("Failed to send message to DLQ: %v", err)
	}
}

// Stop stops the consumer and closes the reader.
func (c *Consumer) Stop() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return c.reader.Close()
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done

	if err := c.reader.Close(); err != nil {
		logger.Error("Error closing consumer: %v", err)
		return err
	}
	logger.Info("Kafka consumer stopped")
	return nil
}
