package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentIntentStatus represents the settlement state of a checkout session
type PaymentIntentStatus string

const (
	PaymentIntentStatusPending PaymentIntentStatus = "pending"
	PaymentIntentStatusPaid    PaymentIntentStatus = "paid"
	PaymentIntentStatusFailed  PaymentIntentStatus = "failed"
)

// PaymentIntentRecord tracks one external checkout session for a booking. It
// is the sole idempotency anchor for settlement: a webhook or poll that finds
// the record no longer pending is a no-op.
type PaymentIntentRecord struct {
	SessionID string              `json:"session_id" db:"stripe_session_id"`
	BookingID uuid.UUID           `json:"booking_id" db:"booking_id"`
	UserID    uuid.UUID           `json:"user_id" db:"user_id"`
	TourID    int64               `json:"tour_id" db:"tour_id"`
	Amount    float64             `json:"amount" db:"amount"`
	Currency  string              `json:"currency" db:"currency"`
	Status    PaymentIntentStatus `json:"status" db:"status"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" db:"updated_at"`
}

// CreateCheckoutRequest is the request to start a checkout session.
type CreateCheckoutRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// ConfirmPaymentRequest is the client-poll confirmation request carrying the
// session id returned by the provider redirect.
type ConfirmPaymentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// Validate performs validation beyond binding tags
func (r *ConfirmPaymentRequest) Validate() error {
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}
	return nil
}
