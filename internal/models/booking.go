package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// ValidBookingStatus reports whether s is a known booking status.
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus represents the payment sub-state of a booking
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = "none"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// RefundStatus represents the refund sub-state of a booking
type RefundStatus string

const (
	RefundStatusNone     RefundStatus = "none"
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// Booking represents one user's claim on a tour. At most one non-cancelled
// booking may exist per (user, tour) pair; a user may re-book the same tour
// after cancellation. ExtraPrice and TotalPrice are frozen at booking time and
// never recomputed from the catalog.
type Booking struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	UserID        uuid.UUID     `json:"user_id" db:"user_id"`
	TourID        int64         `json:"tour_id" db:"tour_id"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	ExtraPrice    float64       `json:"extra_price" db:"extra_price"`
	TotalPrice    float64       `json:"total_price" db:"total_price"`
	RefundAmount  float64       `json:"refund_amount" db:"refund_amount"`
	RefundStatus  RefundStatus  `json:"refund_status" db:"refund_status"`
	BookedAt      time.Time     `json:"booked_at" db:"booked_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
}

// BookingEquipment is the reservation of inventory units for a booking over
// its tour's date window. UnitPrice is the per-tour surcharge at booking time.
type BookingEquipment struct {
	BookingID   uuid.UUID `json:"booking_id" db:"booking_id"`
	EquipmentID int64     `json:"equipment_id" db:"equipment_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
}

// EquipmentSelection is one requested equipment item in a booking request.
type EquipmentSelection struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	TourID    int64                `json:"tour_id" binding:"required"`
	Equipment []EquipmentSelection `json:"equipment,omitempty"`
}

// Validate performs validation beyond binding tags
func (r *CreateBookingRequest) Validate() error {
	if r.TourID <= 0 {
		return errors.New("tour_id is required")
	}
	return validateSelections(r.Equipment)
}

// UpdateEquipmentRequest represents the request to replace a booking's
// equipment set. An empty list clears the set.
type UpdateEquipmentRequest struct {
	Equipment []EquipmentSelection `json:"equipment"`
}

// Validate performs validation beyond binding tags
func (r *UpdateEquipmentRequest) Validate() error {
	return validateSelections(r.Equipment)
}

func validateSelections(sel []EquipmentSelection) error {
	seen := make(map[int64]struct{}, len(sel))
	for _, s := range sel {
		if s.EquipmentID <= 0 {
			return fmt.Errorf("invalid equipment_id: %d", s.EquipmentID)
		}
		if s.Quantity <= 0 {
			return fmt.Errorf("invalid quantity %d for equipment %d", s.Quantity, s.EquipmentID)
		}
		if _, dup := seen[s.EquipmentID]; dup {
			return fmt.Errorf("duplicate equipment_id: %d", s.EquipmentID)
		}
		seen[s.EquipmentID] = struct{}{}
	}
	return nil
}

// UpdateBookingStatusRequest is the admin request to transition a booking.
type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required"`
}

func (r *UpdateBookingStatusRequest) Validate() error {
	if !ValidBookingStatus(r.Status) {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	return nil
}

// BookingSummary is a booking joined with tour display fields plus the latest
// cancellation-request status, used for participant-facing listings.
type BookingSummary struct {
	Booking
	TourTitle           string    `json:"tour_title" db:"tour_title"`
	TourLocation        string    `json:"tour_location" db:"tour_location"`
	TourStartDate       time.Time `json:"tour_start_date" db:"tour_start_date"`
	TourEndDate         time.Time `json:"tour_end_date" db:"tour_end_date"`
	CancelRequestStatus *string   `json:"cancel_request_status,omitempty" db:"cancel_request_status"`
}

// BookingAdminRow is a booking joined with tour and user fields for the admin
// console listing.
type BookingAdminRow struct {
	Booking
	TourTitle    string `json:"tour_title" db:"tour_title"`
	TourLocation string `json:"tour_location" db:"tour_location"`
	UserName     string `json:"user_name" db:"user_name"`
	UserEmail    string `json:"user_email" db:"user_email"`
}
