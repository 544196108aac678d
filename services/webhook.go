package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "exam-portal/errors"
	"exam-portal/logger"
	"exam-portal/metrics"
	"exam-portal/models"

	rzputils "github.com/razorpay/razorpay-go/utils"
)

const (
	CodeInvalidWebhookSignature = "invalid_webhook_signature"
	CodeInvalidPayload          = "invalid_payload"
)

// Webhook outcomes reported back to the gateway.
const (
	WebhookProcessed    = "processed"
	WebhookAcknowledged = "acknowledged"
	WebhookIgnored      = "ignored"
)

// RazorpayWebhookPayload represents the structure of Razorpay webhook payload
type RazorpayWebhookPayload struct {
	ID        string   `json:"id"`
	Event     string   `json:"event"`
	CreatedAt int64    `json:"created_at"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity webhookOrder `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	Amount           int64           `json:"amount"`
	Status           string          `json:"status"`
	ErrorCode        string          `json:"error_code"`
	ErrorDescription string          `json:"error_description"`
	Notes            json.RawMessage `json:"notes"`
}

type webhookOrder struct {
	ID     string          `json:"id"`
	Amount int64           `json:"amount"`
	Notes  json.RawMessage `json:"notes"`
}

// WebhookResult describes what a webhook delivery did.
type WebhookResult struct {
	Status         string `json:"status"`
	Event          string `json:"event"`
	RegistrationID string `json:"registration_id,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
	PaymentID      string `json:"payment_id,omitempty"`
}

// WebhookService applies gateway webhook deliveries to registrations.
type WebhookService struct {
	store  RegistrationStore
	events EventPublisher
	secret string

	now      func() time.Time
	dispatch func(func())
}

func NewWebhookService(store RegistrationStore, events EventPublisher, secret string) *WebhookService {
	if events == nil {
		events = NopPublisher{}
	}
	return &WebhookService{
		store:    store,
		events:   events,
		secret:   secret,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
}

// VerifySignature checks the X-Razorpay-Signature header against the raw body.
// Deliveries are rejected outright when no webhook secret is configured.
func (s *WebhookService) VerifySignature(body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if s.secret == "" || signature == "" {
		return false
	}
	return rzputils.VerifyWebhookSignature(string(body), signature, s.secret)
}

// Handle authenticates and applies one webhook delivery.
func (s *WebhookService) Handle(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !s.VerifySignature(body, signature) {
		metrics.Webhooks.WithLabelValues("unknown", "bad_signature").Inc()
		logger.Warn("[WEBHOOK] Rejected delivery with invalid signature")
		return nil, apperrors.WithCode(apperrors.NewUnauthorizedError("invalid webhook signature"), CodeInvalidWebhookSignature)
	}

	var payload RazorpayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.Webhooks.WithLabelValues("unknown", "bad_payload").Inc()
		return nil, apperrors.WithCode(apperrors.E(apperrors.Invalid, "invalid webhook payload", err), CodeInvalidPayload)
	}

	logger.Info("[WEBHOOK] Received: %s", payload.Event)

	var (
		result *WebhookResult
		err    error
	)
	switch payload.Event {
	case "payment.captured", "order.paid":
		result, err = s.handleCaptured(ctx, payload)
	case "payment.failed":
		result, err = s.handleFailed(ctx, payload)
	default:
		logger.Info("[WEBHOOK] Unhandled event type: %s - acknowledging anyway", payload.Event)
		result = &WebhookResult{Status: WebhookAcknowledged, Event: payload.Event}
	}

	if err != nil {
		metrics.Webhooks.WithLabelValues(payload.Event, "error").Inc()
		return nil, err
	}
	metrics.Webhooks.WithLabelValues(payload.Event, result.Status).Inc()
	return result, nil
}

func (s *WebhookService) handleCaptured(ctx context.Context, payload RazorpayWebhookPayload) (*WebhookResult, error) {
	payment := payload.Payload.Payment.Entity
	orderID := payment.OrderID
	if orderID == "" {
		orderID = payload.Payload.Order.Entity.ID
	}
	result := &WebhookResult{Event: payload.Event, OrderID: orderID, PaymentID: payment.ID}

	reg, err := s.resolveRegistration(ctx, orderID, payment.Notes, payload.Payload.Order.Entity.Notes)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		logger.Warn("[WEBHOOK] No registration for order %s - ignoring", orderID)
		result.Status = WebhookIgnored
		return result, nil
	}
	result.RegistrationID = reg.ID

	if reg.PaymentStatus == models.PaymentStatusPaid {
		logger.Info("[WEBHOOK] Registration %s already paid - duplicate %s", reg.ID, payload.Event)
		result.Status = WebhookProcessed
		return result, nil
	}

	paid := true
	now := s.now().UTC()
	update := models.PaymentUpdate{
		Status:          models.PaymentStatusPaid,
		IsPaid:          &paid,
		PaidAt:          &now,
		RazorpayOrderID: &orderID,
	}
	if payment.ID != "" {
		update.RazorpayPaymentID = &payment.ID
	}
	if _, err := s.store.UpdatePayment(ctx, reg.ID, update); err != nil {
		logger.Error("[WEBHOOK] Error marking registration %s paid: %v", reg.ID, err)
		return nil, persistenceError(err)
	}

	logger.Info("[WEBHOOK] Registration %s payment_status -> paid (order %s, payment %s)", reg.ID, orderID, payment.ID)

	evt := newPaymentEvent(models.EventPaymentVerified, reg.ID, models.PaymentStatusPaid, "webhook", s.now())
	evt.OrderID, evt.PaymentID, evt.Amount = orderID, payment.ID, payment.Amount
	s.publish(evt)

	result.Status = WebhookProcessed
	return result, nil
}

func (s *WebhookService) handleFailed(ctx context.Context, payload RazorpayWebhookPayload) (*WebhookResult, error) {
	payment := payload.Payload.Payment.Entity
	result := &WebhookResult{Event: payload.Event, OrderID: payment.OrderID, PaymentID: payment.ID}

	reg, err := s.resolveRegistration(ctx, payment.OrderID, payment.Notes, nil)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		logger.Warn("[WEBHOOK] No registration for order %s - ignoring", payment.OrderID)
		result.Status = WebhookIgnored
		return result, nil
	}
	result.RegistrationID = reg.ID

	update := models.PaymentUpdate{
		Status:     models.PaymentStatusFailed,
		UnlessPaid: true,
	}
	if payment.ID != "" {
		update.RazorpayPaymentID = &payment.ID
	}
	applied, err := s.store.UpdatePayment(ctx, reg.ID, update)
	if err != nil {
		logger.Error("[WEBHOOK] Error marking registration %s failed: %v", reg.ID, err)
		return nil, persistenceError(err)
	}
	result.Status = WebhookProcessed
	if !applied {
		logger.Info("[WEBHOOK] Registration %s already paid; payment.failed for %s not recorded", reg.ID, payment.ID)
		return result, nil
	}

	logger.Info("[WEBHOOK] Registration %s payment_status -> failed (order %s, %s: %s)", reg.ID, payment.OrderID, payment.ErrorCode, payment.ErrorDescription)

	evt := newPaymentEvent(models.EventPaymentFailed, reg.ID, models.PaymentStatusFailed, "webhook", s.now())
	evt.OrderID, evt.PaymentID = payment.OrderID, payment.ID
	s.publish(evt)

	return result, nil
}

// resolveRegistration finds the registration owning orderID, falling back to
// the registrationId note attached at order creation. It returns nil, nil when
// the delivery belongs to no known registration.
func (s *WebhookService) resolveRegistration(ctx context.Context, orderID string, notes ...json.RawMessage) (*models.Registration, error) {
	if orderID != "" {
		reg, err := s.store.FindByOrderID(ctx, orderID)
		if err == nil {
			return reg, nil
		}
		if apperrors.KindOf(err) != apperrors.NotFound {
			return nil, apperrors.WithCode(apperrors.E(apperrors.Internal, fmt.Sprintf("error loading registration for order %s", orderID), err), CodeUnexpected)
		}
	}

	for _, raw := range notes {
		id := registrationIDFromNotes(raw)
		if id == "" {
			continue
		}
		reg, err := s.store.GetRegistration(ctx, id)
		if err == nil {
			return reg, nil
		}
		if apperrors.KindOf(err) != apperrors.NotFound {
			return nil, apperrors.WithCode(apperrors.E(apperrors.Internal, "error loading registration "+id, err), CodeUnexpected)
		}
	}
	return nil, nil
}

// registrationIDFromNotes reads notes.registrationId. Razorpay sends an empty
// array instead of an object when an entity has no notes.
func registrationIDFromNotes(raw json.RawMessage) string {
	var notes map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &notes) != nil {
		return ""
	}
	id, _ := notes["registrationId"].(string)
	return strings.TrimSpace(id)
}

func (s *WebhookService) publish(evt models.PaymentEvent) {
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.events.PublishPaymentEvent(ctx, evt); err != nil {
			logger.Warn("Warning: failed to publish %s event from webhook: %v", evt.Event, err)
		}
	})
}
