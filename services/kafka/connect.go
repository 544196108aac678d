package kafka

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"exam-portal/logger"

	"github.com/segmentio/kafka-go"
)

// DLQStore persists dead-lettered messages.
type DLQStore interface {
	StoreDLQMessage(ctx context.Context, topic, key string, value []byte, errorMsg string) (string, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DLQ routes failed messages to the DLQ topic and always to the database.
type DLQ struct {
	mu     sync.Mutex
	writer messageWriter
	topic  string
	store  DLQStore
}

// NewDLQ creates a dead-letter sink. With no brokers or topic the Kafka side is
// skipped and messages go to the store only.
func NewDLQ(brokers []string, topic string, store DLQStore) *DLQ {
	d := &DLQ{topic: topic, store: store}
	if len(brokers) == 0 || topic == "" {
		logger.Info("Kafka DLQ topic disabled; dead letters stored in database only")
		return d
	}

	d.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}
	logger.Info("Kafka DLQ producer initialized. Brokers=%v, DLQ Topic=%s", brokers, topic)
	return d
}

// Send publishes a failed message to the DLQ topic and stores it in the database.
func (d *DLQ) Send(ctx context.Context, topic, key string, value []byte, errorMsg string) error {
	d.mu.Lock()
	writer := d.writer
	d.mu.Unlock()

	if writer != nil {
		dlqPayload, err := json.Marshal(map[string]interface{}{
			"original_topic": topic,
			"original_key":   key,
			"original_value": string(value),
			"error_message":  errorMsg,
			"timestamp":      time.Now().Unix(),
		})
		if err == nil {
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = writer.WriteMessages(wctx, kafka.Message{Key: []byte(key), Value: dlqPayload})
			cancel()
		}
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unknown topic") {
				logger.Warn("DLQ topic missing on broker; disabling DLQ producer: %v", err)
				d.mu.Lock()
				d.writer = nil
				d.mu.Unlock()
				_ = writer.Close()
			} else {
				logger.Warn("DLQ publish failed, storing to DB: %v", err)
			}
		}
	}

	if d.store == nil {
		logger.Warn("Database not available for DLQ storage - dropping message for topic %s", topic)
		return nil
	}
	id, err := d.store.StoreDLQMessage(ctx, topic, key, value, errorMsg)
	if err != nil {
		logger.Error("Error storing DLQ message in database: %v", err)
		return err
	}
	logger.Info("DLQ message %s stored. Topic: %s, Key: %s", id, topic, key)
	return nil
}

// Close closes the DLQ writer.
func (d *DLQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer != nil {
		return d.writer.Close()
	}
	return nil
}

// EnsureTopics creates the given topics in the background, retrying with
// exponential backoff while the brokers come up.
func EnsureTopics(brokers []string, topics ...string) {
	if len(brokers) == 0 {
		return
	}
	go func() {
		const maxRetries = 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)

			conn, err := kafka.Dial("tcp", brokers[0])
			if err != nil {
				if attempt == maxRetries-1 {
					logger.Warn("Could not connect to Kafka broker for topic creation after %d attempts: %v", maxRetries, err)
				}
				continue
			}

			ok := 0
			for _, topic := range topics {
				if topic == "" {
					ok++
					continue
				}
				err := conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
				if err == nil || strings.Contains(err.Error(), "already exists") {
					ok++
				}
			}
			conn.Close()

			if ok == len(topics) {
				logger.Info("Kafka topics ready: %v", topics)
				return
			}
		}
	}()
}

// Ping reports whether the first reachable broker accepts a connection.
func Ping(ctx context.Context, brokers []string) bool {
	for _, b := range brokers {
		conn, err := (&kafka.Dialer{Timeout: 2 * time.Second}).DialContext(ctx, "tcp", b)
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}
