package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "exam-portal/errors"
	"exam-portal/logger"
	"exam-portal/metrics"
	"exam-portal/models"
)

// Wire error codes returned to clients.
const (
	CodeMissingRegistrationID = "missing_registrationId"
	CodeRegistrationNotFound  = "registration_not_found"
	CodeGatewayOrderFailed    = "rzp_order_failed"
	CodeMissingFields         = "missing_fields"
	CodeSignatureMismatch     = "signature_mismatch"
	CodeDBUpdateFailed        = "db_update_failed"
	CodeAlreadyPaid           = "already_paid"
	CodeUnexpected            = "unexpected"
)

// RegistrationStore reads registrations and writes their payment columns.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Registration, error)
	UpdatePayment(ctx context.Context, id string, u models.PaymentUpdate) (bool, error)
}

// PaymentOptions tunes PaymentService behaviour.
type PaymentOptions struct {
	Currency string
	// SignatureDebug includes expected encodings in mismatch results.
	SignatureDebug bool
	// GuardPaid stops failed verifications from overwriting a paid registration.
	GuardPaid bool
}

// PaymentService creates gateway orders and verifies checkout signatures.
type PaymentService struct {
	store    RegistrationStore
	gateway  OrderGateway
	verifier *SignatureVerifier
	events   EventPublisher
	opts     PaymentOptions

	now      func() time.Time
	dispatch func(func())
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(store RegistrationStore, gateway OrderGateway, verifier *SignatureVerifier, events EventPublisher, opts PaymentOptions) *PaymentService {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &PaymentService{
		store:    store,
		gateway:  gateway,
		verifier: verifier,
		events:   events,
		opts:     opts,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
}

// CreateOrder opens a gateway order for the registration's fee. The amount is
// always derived from the stored registration.
func (s *PaymentService) CreateOrder(ctx context.Context, registrationID string) (*models.OrderResult, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		metrics.OrdersCreated.WithLabelValues("bad_request").Inc()
		return nil, apperrors.WithCode(apperrors.NewInvalidParamsError("registrationId is required"), CodeMissingRegistrationID)
	}

	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.NotFound {
			metrics.OrdersCreated.WithLabelValues("not_found").Inc()
			return nil, apperrors.WithCode(err, CodeRegistrationNotFound)
		}
		metrics.OrdersCreated.WithLabelValues("error").Inc()
		return nil, apperrors.WithCode(apperrors.E(apperrors.Internal, "error loading registration", err), CodeUnexpected)
	}

	if reg.PaymentStatus == models.PaymentStatusPaid {
		metrics.OrdersCreated.WithLabelValues("already_paid").Inc()
		return nil, apperrors.WithCode(apperrors.NewConflictError(fmt.Sprintf("registration %s is already paid", reg.ID)), CodeAlreadyPaid)
	}

	amount := ToMinorUnits(ResolveFee(reg.Fees, reg.Gender))

	order, err := s.gateway.CreateOrder(ctx, amount, s.opts.Currency, reg.ID, map[string]string{"registrationId": reg.ID})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.Gateway {
			metrics.OrdersCreated.WithLabelValues("gateway_failed").Inc()
			return nil, apperrors.WithCode(err, CodeGatewayOrderFailed)
		}
		metrics.OrdersCreated.WithLabelValues("error").Inc()
		return nil, apperrors.WithCode(apperrors.E(apperrors.Internal, "error creating gateway order", err), CodeUnexpected)
	}

	orderID := order.ID
	if _, err := s.store.UpdatePayment(ctx, reg.ID, models.PaymentUpdate{
		Status:          models.PaymentStatusCreated,
		RazorpayOrderID: &orderID,
	}); err != nil {
		metrics.OrdersCreated.WithLabelValues("db_failed").Inc()
		return nil, persistenceError(err)
	}

	logger.Info("[PAYMENT] Order created - RegistrationID: %s, OrderID: %s, Amount: %d %s", reg.ID, orderID, amount, s.opts.Currency)
	metrics.OrdersCreated.WithLabelValues("ok").Inc()

	evt := newPaymentEvent(models.EventOrderCreated, reg.ID, models.PaymentStatusCreated, "checkout", s.now())
	evt.OrderID = orderID
	evt.Amount = amount
	evt.Currency = s.opts.Currency
	s.publish(evt)

	return &models.OrderResult{
		KeyID:    s.gateway.KeyID(),
		OrderID:  orderID,
		Amount:   amount,
		Currency: s.opts.Currency,
	}, nil
}

// VerifyResult is the outcome of a checkout signature verification.
type VerifyResult struct {
	Authentic bool
	Debug     models.SignatureDebug
}

// MissingVerifyFields lists the required verification fields that are blank.
func MissingVerifyFields(req models.VerifyPaymentRequest) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"registrationId", req.RegistrationID},
		{"razorpay_order_id", req.RazorpayOrderID},
		{"razorpay_payment_id", req.RazorpayPaymentID},
		{"razorpay_signature", req.RazorpaySignature},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// VerifyPayment authenticates a checkout callback and records the outcome on
// the registration. A mismatch is a normal result, not an error; errors are
// reserved for bad input and persistence failures.
func (s *PaymentService) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*VerifyResult, error) {
	if missing := MissingVerifyFields(req); len(missing) > 0 {
		metrics.Verifications.WithLabelValues("bad_request").Inc()
		return nil, apperrors.WithCode(apperrors.E(apperrors.Invalid,
			"missing fields: "+strings.Join(missing, ", "),
			apperrors.Detail{Value: missing}), CodeMissingFields)
	}
	req.RegistrationID = strings.TrimSpace(req.RegistrationID)

	authentic, expected := s.verifier.Verify(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)

	orderID, paymentID, signature := req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature
	update := models.PaymentUpdate{
		RazorpayOrderID:   &orderID,
		RazorpayPaymentID: &paymentID,
		RazorpaySignature: &signature,
	}

	var alreadyPaid bool
	if authentic {
		prior, err := s.store.GetRegistration(ctx, req.RegistrationID)
		if err != nil {
			metrics.Verifications.WithLabelValues("db_failed").Inc()
			return nil, persistenceError(err)
		}
		alreadyPaid = prior.PaymentStatus == models.PaymentStatusPaid

		paid := true
		now := s.now().UTC()
		update.Status = models.PaymentStatusPaid
		update.IsPaid = &paid
		update.PaidAt = &now
	} else {
		update.Status = models.PaymentStatusFailed
		update.UnlessPaid = s.opts.GuardPaid
	}

	applied, err := s.store.UpdatePayment(ctx, req.RegistrationID, update)
	if err != nil {
		metrics.Verifications.WithLabelValues("db_failed").Inc()
		logger.Error("[PAYMENT] Error recording verification - RegistrationID: %s, OrderID: %s: %v", req.RegistrationID, orderID, err)
		return nil, persistenceError(err)
	}

	if !authentic {
		if applied {
			logger.Info("[PAYMENT] Registration %s payment_status -> failed (order %s, payment %s)", req.RegistrationID, orderID, paymentID)
		} else {
			logger.Info("[PAYMENT] Registration %s already paid; failed attempt for order %s not recorded", req.RegistrationID, orderID)
		}
		metrics.Verifications.WithLabelValues("mismatch").Inc()

		if applied {
			evt := newPaymentEvent(models.EventPaymentFailed, req.RegistrationID, models.PaymentStatusFailed, "checkout", s.now())
			evt.OrderID, evt.PaymentID = orderID, paymentID
			s.publish(evt)
		}

		debug := models.SignatureDebug{Provided: signature}
		if s.opts.SignatureDebug {
			debug.ExpectedHex = expected.Hex
			debug.ExpectedBase64 = expected.Base64
		}
		return &VerifyResult{Authentic: false, Debug: debug}, nil
	}

	metrics.Verifications.WithLabelValues("ok").Inc()
	if alreadyPaid {
		logger.Info("[PAYMENT] Registration %s already paid; verification re-asserted (order %s, payment %s)", req.RegistrationID, orderID, paymentID)
		return &VerifyResult{Authentic: true}, nil
	}
	logger.Info("[PAYMENT] Registration %s payment_status -> paid (order %s, payment %s)", req.RegistrationID, orderID, paymentID)

	evt := newPaymentEvent(models.EventPaymentVerified, req.RegistrationID, models.PaymentStatusPaid, "checkout", s.now())
	evt.OrderID, evt.PaymentID = orderID, paymentID
	s.publish(evt)

	return &VerifyResult{Authentic: true}, nil
}

// publish hands the event to the publisher without blocking the request.
func (s *PaymentService) publish(evt models.PaymentEvent) {
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.events.PublishPaymentEvent(ctx, evt); err != nil {
			logger.Warn("Warning: failed to publish %s event for registration %s: %v", evt.Event, evt.RegistrationID, err)
		}
	})
}

func persistenceError(err error) error {
	if apperrors.KindOf(err) == apperrors.NotFound {
		return apperrors.WithCode(err, CodeRegistrationNotFound)
	}
	var e *apperrors.Error
	if apperrors.As(err, &e) && e.Kind == apperrors.Persistence {
		e.Detail = causeMessage(err)
		return apperrors.WithCode(err, CodeDBUpdateFailed)
	}
	return apperrors.WithCode(apperrors.E(apperrors.Persistence, "error updating registration", err,
		apperrors.Detail{Value: err.Error()}), CodeDBUpdateFailed)
}

// causeMessage returns the innermost error text for client diagnostics.
func causeMessage(err error) string {
	for {
		next := apperrors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
