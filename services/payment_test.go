package services

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "exam-portal/errors"
	"exam-portal/models"
	"exam-portal/services/mocks"

	"go.uber.org/mock/gomock"
)

const testSecret = "rzp_test_secret"

// memStore is an in-memory RegistrationStore with the same UnlessPaid
// semantics as the Postgres repository.
type memStore struct {
	mu      sync.Mutex
	regs    map[string]*models.Registration
	updates int
	failErr error
}

func newMemStore(regs ...models.Registration) *memStore {
	s := &memStore{regs: map[string]*models.Registration{}}
	for i := range regs {
		r := regs[i]
		s.regs[r.ID] = &r
	}
	return s
}

func (s *memStore) get(id string) models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.regs[id]
}

func (s *memStore) GetRegistration(_ context.Context, id string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, apperrors.E(apperrors.NotFound, "registration "+id+" not found")
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) FindByOrderID(_ context.Context, orderID string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regs {
		if r.RazorpayOrderID == orderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperrors.E(apperrors.NotFound, "no registration for order "+orderID)
}

func (s *memStore) UpdatePayment(_ context.Context, id string, u models.PaymentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, apperrors.E(apperrors.Persistence, "error updating registration payment", s.failErr)
	}
	r, ok := s.regs[id]
	if !ok {
		return false, apperrors.E(apperrors.NotFound, "registration "+id+" not found")
	}
	if u.UnlessPaid && r.PaymentStatus == models.PaymentStatusPaid {
		return false, nil
	}
	s.updates++
	r.PaymentStatus = u.Status
	if u.IsPaid != nil {
		r.IsPaid = *u.IsPaid
	}
	if u.PaidAt != nil {
		t := *u.PaidAt
		r.PaidAt = &t
	}
	if u.RazorpayOrderID != nil {
		r.RazorpayOrderID = *u.RazorpayOrderID
	}
	if u.RazorpayPaymentID != nil {
		r.RazorpayPaymentID = *u.RazorpayPaymentID
	}
	if u.RazorpaySignature != nil {
		r.RazorpaySignature = *u.RazorpaySignature
	}
	return true, nil
}

func fees(v int64) *int64 { return &v }

func newTestService(store RegistrationStore, gw OrderGateway, pub EventPublisher, opts PaymentOptions) *PaymentService {
	svc := NewPaymentService(store, gw, NewSignatureVerifier(testSecret), pub, opts)
	svc.dispatch = func(f func()) { f() }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestPaymentService_CreateOrder(t *testing.T) {
	t.Run("amount follows stored fee", func(t *testing.T) {
		cases := []struct {
			name   string
			reg    models.Registration
			amount int64
		}{
			{"fees 350", models.Registration{ID: "r1", Fees: fees(350)}, 35000},
			{"fees 500", models.Registration{ID: "r1", Fees: fees(500), Gender: "female"}, 50000},
			{"zero fee female", models.Registration{ID: "r1", Fees: fees(0), Gender: "Female"}, 25000},
			{"missing fee male", models.Registration{ID: "r1", Gender: "male"}, 35000},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				ctrl := gomock.NewController(t)
				gw := mocks.NewMockOrderGateway(ctrl)
				store := newMemStore(tc.reg)

				gw.EXPECT().CreateOrder(gomock.Any(), tc.amount, "INR", "r1", map[string]string{"registrationId": "r1"}).
					Return(&models.GatewayOrder{ID: "order_O1", Amount: tc.amount, Currency: "INR"}, nil)
				gw.EXPECT().KeyID().Return("rzp_test_key")

				res, err := newTestService(store, gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "r1")
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.Amount != tc.amount || res.Currency != "INR" || res.OrderID != "order_O1" || res.KeyID != "rzp_test_key" {
					t.Fatalf("unexpected result %+v", res)
				}
				got := store.get("r1")
				if got.PaymentStatus != models.PaymentStatusCreated || got.RazorpayOrderID != "order_O1" {
					t.Fatalf("registration not marked created: %+v", got)
				}
			})
		}
	})

	t.Run("blank registration id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		_, err := newTestService(newMemStore(), gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "  ")
		assertCode(t, err, CodeMissingRegistrationID, 400)
	})

	t.Run("unknown registration", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		_, err := newTestService(newMemStore(), gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "nope")
		assertCode(t, err, CodeRegistrationNotFound, 404)
	})

	t.Run("already paid", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		store := newMemStore(models.Registration{ID: "r1", PaymentStatus: models.PaymentStatusPaid, IsPaid: true})
		_, err := newTestService(store, gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "r1")
		assertCode(t, err, CodeAlreadyPaid, 409)
	})

	t.Run("failed registration can retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		store := newMemStore(models.Registration{ID: "r1", Fees: fees(350), PaymentStatus: models.PaymentStatusFailed, RazorpayOrderID: "order_old"})

		gw.EXPECT().CreateOrder(gomock.Any(), int64(35000), "INR", "r1", gomock.Any()).Return(&models.GatewayOrder{ID: "order_new"}, nil)
		gw.EXPECT().KeyID().Return("k")

		if _, err := newTestService(store, gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "r1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.get("r1"); got.PaymentStatus != models.PaymentStatusCreated || got.RazorpayOrderID != "order_new" {
			t.Fatalf("expected new order recorded, got %+v", got)
		}
	})

	t.Run("gateway rejection leaves registration untouched", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		store := newMemStore(models.Registration{ID: "r1", Fees: fees(350)})

		detail := map[string]interface{}{"error": map[string]interface{}{"description": "Authentication failed"}}
		gw.EXPECT().CreateOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, apperrors.E(apperrors.Gateway, "razorpay order creation failed", apperrors.Detail{Value: detail}))

		_, err := newTestService(store, gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "r1")
		assertCode(t, err, CodeGatewayOrderFailed, 400)

		var e *apperrors.Error
		if !errors.As(err, &e) || e.Detail == nil {
			t.Fatalf("expected gateway detail, got %v", err)
		}
		if store.updates != 0 {
			t.Fatalf("expected no writes, got %d", store.updates)
		}
	})

	t.Run("order persisted failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		store := newMemStore(models.Registration{ID: "r1", Fees: fees(350)})
		store.failErr = errors.New("connection reset")

		gw.EXPECT().CreateOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&models.GatewayOrder{ID: "order_O1"}, nil)

		_, err := newTestService(store, gw, nil, PaymentOptions{}).CreateOrder(context.Background(), "r1")
		assertCode(t, err, CodeDBUpdateFailed, 500)
	})

	t.Run("publishes order created event", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockOrderGateway(ctrl)
		pub := mocks.NewMockEventPublisher(ctrl)
		store := newMemStore(models.Registration{ID: "r1", Fees: fees(350)})

		gw.EXPECT().CreateOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&models.GatewayOrder{ID: "order_O1"}, nil)
		gw.EXPECT().KeyID().Return("k")
		pub.EXPECT().PublishPaymentEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, evt models.PaymentEvent) error {
			if evt.Event != models.EventOrderCreated || evt.OrderID != "order_O1" || evt.Amount != 35000 || evt.EventID == "" {
				t.Errorf("unexpected event %+v", evt)
			}
			return errors.New("broker down")
		})

		if _, err := newTestService(store, gw, pub, PaymentOptions{}).CreateOrder(context.Background(), "r1"); err != nil {
			t.Fatalf("publish failure must not fail the request: %v", err)
		}
	})
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	validSig := hex.EncodeToString(sign(testSecret, "order_O1", "pay_P1"))
	req := func(sig string) models.VerifyPaymentRequest {
		return models.VerifyPaymentRequest{
			RegistrationID:    "r1",
			RazorpayOrderID:   "order_O1",
			RazorpayPaymentID: "pay_P1",
			RazorpaySignature: sig,
		}
	}
	created := func() models.Registration {
		return models.Registration{ID: "r1", Fees: fees(350), PaymentStatus: models.PaymentStatusCreated, RazorpayOrderID: "order_O1"}
	}

	t.Run("authentic signature marks paid", func(t *testing.T) {
		store := newMemStore(created())
		res, err := newTestService(store, nil, nil, PaymentOptions{}).VerifyPayment(context.Background(), req(validSig))
		if err != nil || !res.Authentic {
			t.Fatalf("expected authentic, got %+v %v", res, err)
		}
		got := store.get("r1")
		if !got.IsPaid || got.PaymentStatus != models.PaymentStatusPaid || got.PaidAt == nil {
			t.Fatalf("registration not paid: %+v", got)
		}
		if got.RazorpayPaymentID != "pay_P1" || got.RazorpaySignature != validSig {
			t.Fatalf("gateway ids not stored: %+v", got)
		}
	})

	t.Run("repeat verification is idempotent", func(t *testing.T) {
		store := newMemStore(created())
		svc := newTestService(store, nil, nil, PaymentOptions{})
		for i := 0; i < 2; i++ {
			res, err := svc.VerifyPayment(context.Background(), req(validSig))
			if err != nil || !res.Authentic {
				t.Fatalf("attempt %d: %+v %v", i, res, err)
			}
		}
		if got := store.get("r1"); !got.IsPaid || got.PaymentStatus != models.PaymentStatusPaid {
			t.Fatalf("unexpected state %+v", got)
		}
	})

	t.Run("mismatch marks failed", func(t *testing.T) {
		store := newMemStore(created())
		res, err := newTestService(store, nil, nil, PaymentOptions{}).VerifyPayment(context.Background(), req("deadbeef"))
		if err != nil || res.Authentic {
			t.Fatalf("expected mismatch result, got %+v %v", res, err)
		}
		if res.Debug.Provided != "deadbeef" {
			t.Fatalf("provided signature not echoed: %+v", res.Debug)
		}
		if res.Debug.ExpectedHex != "" || res.Debug.ExpectedBase64 != "" {
			t.Fatalf("expected signatures leaked without debug: %+v", res.Debug)
		}
		got := store.get("r1")
		if got.IsPaid || got.PaymentStatus != models.PaymentStatusFailed || got.RazorpaySignature != "deadbeef" {
			t.Fatalf("registration not failed: %+v", got)
		}
	})

	t.Run("debug exposes expected encodings", func(t *testing.T) {
		store := newMemStore(created())
		res, _ := newTestService(store, nil, nil, PaymentOptions{SignatureDebug: true}).VerifyPayment(context.Background(), req("deadbeef"))
		if res.Debug.ExpectedHex != validSig || res.Debug.ExpectedBase64 == "" {
			t.Fatalf("unexpected debug %+v", res.Debug)
		}
	})

	t.Run("missing fields leave registration untouched", func(t *testing.T) {
		store := newMemStore(created())
		r := req(validSig)
		r.RazorpayPaymentID = ""
		r.RazorpaySignature = " "

		_, err := newTestService(store, nil, nil, PaymentOptions{}).VerifyPayment(context.Background(), r)
		assertCode(t, err, CodeMissingFields, 400)

		var e *apperrors.Error
		errors.As(err, &e)
		missing, _ := e.Detail.([]string)
		if len(missing) != 2 || missing[0] != "razorpay_payment_id" || missing[1] != "razorpay_signature" {
			t.Fatalf("unexpected missing list %v", e.Detail)
		}
		if store.updates != 0 {
			t.Fatalf("expected no writes, got %d", store.updates)
		}
	})

	t.Run("failure overwrites paid by default", func(t *testing.T) {
		reg := created()
		reg.PaymentStatus, reg.IsPaid = models.PaymentStatusPaid, true
		store := newMemStore(reg)

		if _, err := newTestService(store, nil, nil, PaymentOptions{}).VerifyPayment(context.Background(), req("deadbeef")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.get("r1"); got.PaymentStatus != models.PaymentStatusFailed || !got.IsPaid {
			t.Fatalf("expected status failed with is_paid kept, got %+v", got)
		}
	})

	t.Run("guard keeps paid registration", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		pub := mocks.NewMockEventPublisher(ctrl)
		reg := created()
		reg.PaymentStatus, reg.IsPaid = models.PaymentStatusPaid, true
		store := newMemStore(reg)

		res, err := newTestService(store, nil, pub, PaymentOptions{GuardPaid: true}).VerifyPayment(context.Background(), req("deadbeef"))
		if err != nil || res.Authentic {
			t.Fatalf("expected mismatch, got %+v %v", res, err)
		}
		if got := store.get("r1"); got.PaymentStatus != models.PaymentStatusPaid {
			t.Fatalf("paid registration overwritten: %+v", got)
		}
	})

	t.Run("unknown registration", func(t *testing.T) {
		r := req(validSig)
		r.RegistrationID = "ghost"
		_, err := newTestService(newMemStore(), nil, nil, PaymentOptions{}).VerifyPayment(context.Background(), r)
		assertCode(t, err, CodeRegistrationNotFound, 404)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemStore(created())
		store.failErr = errors.New("connection refused")

		_, err := newTestService(store, nil, nil, PaymentOptions{}).VerifyPayment(context.Background(), req(validSig))
		assertCode(t, err, CodeDBUpdateFailed, 500)

		var e *apperrors.Error
		errors.As(err, &e)
		if e.Detail != "connection refused" {
			t.Fatalf("expected cause in detail, got %v", e.Detail)
		}
	})

	t.Run("publishes verified event", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		pub := mocks.NewMockEventPublisher(ctrl)
		store := newMemStore(created())

		pub.EXPECT().PublishPaymentEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, evt models.PaymentEvent) error {
			if evt.Event != models.EventPaymentVerified || evt.PaymentID != "pay_P1" || evt.Status != models.PaymentStatusPaid {
				t.Errorf("unexpected event %+v", evt)
			}
			return nil
		})

		if _, err := newTestService(store, nil, pub, PaymentOptions{}).VerifyPayment(context.Background(), req(validSig)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishPaymentEvent(_ context.Context, evt models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt.Event)
	return nil
}

func TestPaymentService_VerifyPublishesOnlyOnTransition(t *testing.T) {
	validSig := hex.EncodeToString(sign(testSecret, "order_O1", "pay_P1"))
	req := models.VerifyPaymentRequest{
		RegistrationID:    "r1",
		RazorpayOrderID:   "order_O1",
		RazorpayPaymentID: "pay_P1",
		RazorpaySignature: validSig,
	}

	t.Run("repeat verifications publish once", func(t *testing.T) {
		pub := &recordingPublisher{}
		store := newMemStore(models.Registration{ID: "r1", PaymentStatus: models.PaymentStatusCreated, RazorpayOrderID: "order_O1"})
		svc := newTestService(store, nil, pub, PaymentOptions{})

		for i := 0; i < 3; i++ {
			res, err := svc.VerifyPayment(context.Background(), req)
			if err != nil || !res.Authentic {
				t.Fatalf("attempt %d: %+v %v", i, res, err)
			}
		}
		if len(pub.events) != 1 || pub.events[0] != models.EventPaymentVerified {
			t.Fatalf("expected one verified event, got %v", pub.events)
		}
	})

	t.Run("registration paid by webhook publishes nothing", func(t *testing.T) {
		pub := &recordingPublisher{}
		store := newMemStore(models.Registration{ID: "r1", PaymentStatus: models.PaymentStatusPaid, IsPaid: true, RazorpayOrderID: "order_O1"})

		res, err := newTestService(store, nil, pub, PaymentOptions{}).VerifyPayment(context.Background(), req)
		if err != nil || !res.Authentic {
			t.Fatalf("unexpected %+v %v", res, err)
		}
		if len(pub.events) != 0 {
			t.Fatalf("expected no events, got %v", pub.events)
		}
		if got := store.get("r1"); !got.IsPaid || got.RazorpayPaymentID != "pay_P1" {
			t.Fatalf("paid state not re-asserted: %+v", got)
		}
	})
}

func TestCreateThenVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockOrderGateway(ctrl)
	store := newMemStore(models.Registration{ID: "r1", Fees: fees(350)})
	svc := newTestService(store, gw, nil, PaymentOptions{})

	gw.EXPECT().CreateOrder(gomock.Any(), int64(35000), "INR", "r1", gomock.Any()).Return(&models.GatewayOrder{ID: "order_O1"}, nil)
	gw.EXPECT().KeyID().Return("rzp_test_key")

	order, err := svc.CreateOrder(context.Background(), "r1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	sig := hex.EncodeToString(sign(testSecret, order.OrderID, "pay_P1"))
	res, err := svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{
		RegistrationID:    "r1",
		RazorpayOrderID:   order.OrderID,
		RazorpayPaymentID: "pay_P1",
		RazorpaySignature: sig,
	})
	if err != nil || !res.Authentic {
		t.Fatalf("verify: %+v %v", res, err)
	}
	if got := store.get("r1"); !got.IsPaid || got.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("unexpected final state %+v", got)
	}
}

func assertCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	var e *apperrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if e.Code != code {
		t.Fatalf("expected code %q, got %q (%v)", code, e.Code, err)
	}
	if got := apperrors.HTTPStatus(err); got != status {
		t.Fatalf("expected status %d, got %d", status, got)
	}
}
