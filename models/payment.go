package models

import "time"

// CreateOrderRequest is the body of POST /create-order.
type CreateOrderRequest struct {
	RegistrationID string `json:"registrationId" valid:"required"`
}

// OrderResult is what the client needs to open the checkout widget.
type OrderResult struct {
	KeyID    string `json:"key_id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// GatewayOrder is the gateway's view of a created order.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// VerifyPaymentRequest is the body of POST /verify-payment.
type VerifyPaymentRequest struct {
	RegistrationID    string `json:"registrationId" valid:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" valid:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" valid:"required"`
	RazorpaySignature string `json:"razorpay_signature" valid:"required"`
}

// SignatureDebug is returned with signature_mismatch responses.
type SignatureDebug struct {
	ExpectedHex    string `json:"expected_hex,omitempty"`
	ExpectedBase64 string `json:"expected_base64,omitempty"`
	Provided       string `json:"provided"`
}

// Payment event names published to Kafka.
const (
	EventOrderCreated    = "payment.order_created"
	EventPaymentVerified = "payment.verified"
	EventPaymentFailed   = "payment.failed"
)

// PaymentEvent is the JSON envelope published for every payment transition.
type PaymentEvent struct {
	EventID        string        `json:"event_id"`
	Event          string        `json:"event"`
	RegistrationID string        `json:"registration_id"`
	OrderID        string        `json:"order_id,omitempty"`
	PaymentID      string        `json:"payment_id,omitempty"`
	Amount         int64         `json:"amount,omitempty"`
	Currency       string        `json:"currency,omitempty"`
	Status         PaymentStatus `json:"status"`
	Source         string        `json:"source"`
	Timestamp      time.Time     `json:"ts"`
}

// DLQMessage is a failed event stored for inspection and retry.
type DLQMessage struct {
	MessageID    string     `json:"message_id"`
	Topic        string     `json:"topic"`
	Key          string     `json:"key"`
	Value        string     `json:"value"`
	ErrorMessage string     `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}
