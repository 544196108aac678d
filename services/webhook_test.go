package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"exam-portal/models"
	"exam-portal/services/mocks"

	"go.uber.org/mock/gomock"
)

const webhookSecret = "whsec_test"

func webhookSign(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func paymentWebhook(event, orderID, paymentID, notes string) string {
	return fmt.Sprintf(`{"entity":"event","event":%q,"contains":["payment"],"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":35000,"status":"captured","notes":%s}}},"created_at":1700000000}`,
		event, paymentID, orderID, notes)
}

func newTestWebhookService(store RegistrationStore, pub EventPublisher) *WebhookService {
	s := NewWebhookService(store, pub, webhookSecret)
	s.dispatch = func(f func()) { f() }
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestWebhookService_Signature(t *testing.T) {
	store := newMemStore(models.Registration{ID: "r1", RazorpayOrderID: "order_O1", PaymentStatus: models.PaymentStatusCreated})
	body := paymentWebhook("payment.captured", "order_O1", "pay_P1", "[]")

	for _, sig := range []string{"", "deadbeef", webhookSign(body + " ")} {
		_, err := newTestWebhookService(store, nil).Handle(context.Background(), []byte(body), sig)
		assertCode(t, err, CodeInvalidWebhookSignature, 401)
	}
	if store.updates != 0 {
		t.Fatalf("unauthenticated delivery wrote %d updates", store.updates)
	}

	unconfigured := NewWebhookService(store, nil, "")
	if unconfigured.VerifySignature([]byte(body), webhookSign(body)) {
		t.Fatal("expected rejection without a configured secret")
	}
}

func TestWebhookService_Captured(t *testing.T) {
	t.Run("marks paid by order id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		pub := mocks.NewMockEventPublisher(ctrl)
		store := newMemStore(models.Registration{ID: "r1", RazorpayOrderID: "order_O1", PaymentStatus: models.PaymentStatusCreated})
		body := paymentWebhook("payment.captured", "order_O1", "pay_P1", "[]")

		pub.EXPECT().PublishPaymentEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, evt models.PaymentEvent) error {
			if evt.Event != models.EventPaymentVerified || evt.Source != "webhook" || evt.Amount != 35000 {
				t.Errorf("unexpected event %+v", evt)
			}
			return nil
		})

		res, err := newTestWebhookService(store, pub).Handle(context.Background(), []byte(body), webhookSign(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != WebhookProcessed || res.RegistrationID != "r1" {
			t.Fatalf("unexpected result %+v", res)
		}
		got := store.get("r1")
		if !got.IsPaid || got.PaymentStatus != models.PaymentStatusPaid || got.RazorpayPaymentID != "pay_P1" || got.PaidAt == nil {
			t.Fatalf("registration not paid: %+v", got)
		}
	})

	t.Run("falls back to notes", func(t *testing.T) {
		store := newMemStore(models.Registration{ID: "r2"})
		body := paymentWebhook("order.paid", "order_X", "pay_P2", `{"registrationId":"r2"}`)

		res, err := newTestWebhookService(store, nil).Handle(context.Background(), []byte(body), webhookSign(body))
		if err != nil || res.RegistrationID != "r2" {
			t.Fatalf("unexpected %+v %v", res, err)
		}
		if got := store.get("r2"); got.RazorpayOrderID != "order_X" || !got.IsPaid {
			t.Fatalf("registration not updated: %+v", got)
		}
	})

	t.Run("duplicate delivery", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		pub := mocks.NewMockEventPublisher(ctrl)
		store := newMemStore(models.Registration{ID: "r1", RazorpayOrderID: "order_O1", PaymentStatus: models.PaymentStatusPaid, IsPaid: true})
		body := paymentWebhook("payment.captured", "order_O1", "pay_P1", "[]")

		res, err := newTestWebhookService(store, pub).Handle(context.Background(), []byte(body), webhookSign(body))
		if err != nil || res.Status != WebhookProcessed {
			t.Fatalf("unexpected %+v %v", res, err)
		}
		if store.updates != 0 {
			t.Fatalf("duplicate delivery wrote %d updates", store.updates)
		}
	})

	t.Run("unknown order is ignored", func(t *testing.T) {
		body := paymentWebhook("payment.captured", "order_unknown", "pay_P1", "[]")
		res, err := newTestWebhookService(newMemStore(), nil).Handle(context.Background(), []byte(body), webhookSign(body))
		if err != nil || res.Status != WebhookIgnored {
			t.Fatalf("unexpected %+v %v", res, err)
		}
	})
}

func TestWebhookService_Failed(t *testing.T) {
	t.Run("marks failed", func(t *testing.T) {
		store := newMemStore(models.Registration{ID: "r1", RazorpayOrderID: "order_O1", PaymentStatus: models.PaymentStatusCreated})
		body := paymentWebhook("payment.failed", "order_O1", "pay_P1", "[]")

		if _, err := newTestWebhookService(store, nil).Handle(context.Background(), []byte(body), webhookSign(body)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.get("r1"); got.PaymentStatus != models.PaymentStatusFailed || got.IsPaid {
			t.Fatalf("registration not failed: %+v", got)
		}
	})

	t.Run("never downgrades paid", func(t *testing.T) {
		store := newMemStore(models.Registration{ID: "r1", RazorpayOrderID: "order_O1", PaymentStatus: models.PaymentStatusPaid, IsPaid: true})
		body := paymentWebhook("payment.failed", "order_O1", "pay_P9", "[]")

		if _, err := newTestWebhookService(store, nil).Handle(context.Background(), []byte(body), webhookSign(body)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.get("r1"); got.PaymentStatus != models.PaymentStatusPaid {
			t.Fatalf("paid registration downgraded: %+v", got)
		}
	})
}

func TestWebhookService_OtherEventsAcknowledged(t *testing.T) {
	body := `{"event":"refund.created","payload":{}}`
	res, err := newTestWebhookService(newMemStore(), nil).Handle(context.Background(), []byte(body), webhookSign(body))
	if err != nil || res.Status != WebhookAcknowledged || res.Event != "refund.created" {
		t.Fatalf("unexpected %+v %v", res, err)
	}
}

func TestWebhookService_BadPayload(t *testing.T) {
	body := `{"event":`
	_, err := newTestWebhookService(newMemStore(), nil).Handle(context.Background(), []byte(body), webhookSign(body))
	assertCode(t, err, CodeInvalidPayload, 400)
}
