package models

import (
	"time"
)

// PaymentStatus is the payment lifecycle state stored on a registration.
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = ""
	PaymentStatusCreated PaymentStatus = "created"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Registration is an exam registration. Only the payment columns are ever
// written by this service; the personal fields are read for receipts and exports.
type Registration struct {
	ID          string `json:"id"`
	StudentName string `json:"student_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	SchoolName  string `json:"school_name"`
	Class       string `json:"class"`
	Gender      string `json:"gender"`
	// Fees is nil when the registration form stored no amount.
	Fees *int64 `json:"fees,omitempty"`

	PaymentStatus     PaymentStatus `json:"payment_status"`
	IsPaid            bool          `json:"is_paid"`
	RazorpayOrderID   string        `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string        `json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string        `json:"razorpay_signature,omitempty"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// PaymentUpdate is the set of payment columns one state transition writes.
// Nil pointers leave the column untouched.
type PaymentUpdate struct {
	Status            PaymentStatus
	IsPaid            *bool
	PaidAt            *time.Time
	RazorpayOrderID   *string
	RazorpayPaymentID *string
	RazorpaySignature *string
	// UnlessPaid turns the update into a no-op for registrations already paid.
	UnlessPaid bool
}

// RegistrationFilter narrows registration listings for admin exports.
type RegistrationFilter struct {
	Status        PaymentStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
