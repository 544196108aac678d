package services

import (
	"context"
	"time"

	"exam-portal/models"

	"github.com/google/uuid"
)

// EventPublisher delivers payment events to downstream consumers.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, evt models.PaymentEvent) error
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPaymentEvent(context.Context, models.PaymentEvent) error { return nil }

func newPaymentEvent(name, registrationID string, status models.PaymentStatus, source string, now time.Time) models.PaymentEvent {
	return models.PaymentEvent{
		EventID:        uuid.NewString(),
		Event:          name,
		RegistrationID: registrationID,
		Status:         status,
		Source:         source,
		Timestamp:      now.UTC(),
	}
}
