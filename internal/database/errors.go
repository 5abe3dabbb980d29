package database

import (
	"errors"
	"fmt"
)

// Business-rule and not-found errors surfaced by the repositories. Handlers
// map these to HTTP status codes; anything else is an internal error.
var (
	ErrTourNotFound          = errors.New("tour not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrCancelRequestNotFound = errors.New("cancellation request not found")
	ErrPaymentNotFound       = errors.New("payment record not found")

	ErrCapacityExceeded  = errors.New("tour capacity exceeded")
	ErrDuplicateBooking  = errors.New("active booking already exists for this tour")
	ErrInvalidTransition = errors.New("operation not allowed in current booking state")
	ErrAlreadyProcessed  = errors.New("cancellation request already processed")
	ErrRequestPending    = errors.New("a cancellation request is already pending for this booking")
)

// EquipmentUnavailableError reports which equipment item ran out of stock for
// the requested date window. The whole request fails; there is no partial
// allocation.
type EquipmentUnavailableError struct {
	EquipmentID int64
	Requested   int
	Available   int
}

func (e *EquipmentUnavailableError) Error() string {
	return fmt.Sprintf("equipment %d unavailable: requested %d, available %d",
		e.EquipmentID, e.Requested, e.Available)
}

// IsEquipmentUnavailable reports whether err is an EquipmentUnavailableError.
func IsEquipmentUnavailable(err error) bool {
	var e *EquipmentUnavailableError
	return errors.As(err, &e)
}
