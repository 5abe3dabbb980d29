package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CancelRequestStatus represents the status of a cancellation request
type CancelRequestStatus string

const (
	CancelRequestStatusPending  CancelRequestStatus = "pending"
	CancelRequestStatusApproved CancelRequestStatus = "approved"
	CancelRequestStatusRejected CancelRequestStatus = "rejected"
)

// CancellationRequest is a participant's request to release a confirmed
// booking. Only an admin may resolve it; approval forces the booking to
// cancelled. A resolved request is terminal.
type CancellationRequest struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	BookingID   uuid.UUID           `json:"booking_id" db:"booking_id"`
	UserID      uuid.UUID           `json:"user_id" db:"user_id"`
	Reason      string              `json:"reason" db:"reason"`
	Status      CancelRequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty" db:"processed_at"`
	AdminID     *uuid.UUID          `json:"admin_id,omitempty" db:"admin_id"`
}

// CreateCancelRequest is the participant request body.
type CreateCancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Validate performs validation beyond binding tags
func (r *CreateCancelRequest) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return errors.New("reason is required")
	}
	return nil
}

// ResolveCancelRequest is the admin resolution body.
type ResolveCancelRequest struct {
	Status CancelRequestStatus `json:"status" binding:"required"`
}

// Validate performs validation beyond binding tags
func (r *ResolveCancelRequest) Validate() error {
	if r.Status != CancelRequestStatusApproved && r.Status != CancelRequestStatusRejected {
		return errors.New("status must be approved or rejected")
	}
	return nil
}

// CancelRequestDetail is a cancellation request joined with booking, tour and
// user context for the admin listing.
type CancelRequestDetail struct {
	CancellationRequest
	TourID        int64         `json:"tour_id" db:"tour_id"`
	BookingStatus BookingStatus `json:"booking_status" db:"booking_status"`
	TourTitle     string        `json:"tour_title" db:"tour_title"`
	TourLocation  string        `json:"tour_location" db:"tour_location"`
	UserName      string        `json:"user_name" db:"user_name"`
	UserEmail     string        `json:"user_email" db:"user_email"`
}
