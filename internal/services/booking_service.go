package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
)

// BookingService manages the booking lifecycle: admission, status
// transitions, equipment edits and removal. Capacity and inventory
// enforcement live in the repository's transactions; this service freezes
// prices, applies the lifecycle rules and emits membership events after the
// store has committed.
type BookingService struct {
	bookingRepo *database.BookingRepository
	tourRepo    *database.TourRepository
	cancelRepo  *database.CancellationRepository
	notifier    notifier.Notifier
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookingRepo *database.BookingRepository,
	tourRepo *database.TourRepository,
	cancelRepo *database.CancellationRepository,
	n notifier.Notifier,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		tourRepo:    tourRepo,
		cancelRepo:  cancelRepo,
		notifier:    n,
		logger:      logger,
	}
}

// Create admits a participant to a tour: validates the tour, freezes the
// price snapshot and lets the repository run the capacity, duplicate and
// inventory checks atomically with the insert.
func (s *BookingService) Create(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tour, err := s.tourRepo.GetTourByID(req.TourID)
	if err != nil {
		return nil, err
	}

	priceList, err := s.tourRepo.GetTourEquipmentPrices(tour.ID)
	if err != nil {
		return nil, err
	}

	snapshot, items, err := ComputePriceSnapshot(tour, priceList, req.Equipment)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:            uuid.New(),
		UserID:        userID,
		TourID:        tour.ID,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusNone,
		ExtraPrice:    snapshot.ExtraPrice,
		TotalPrice:    snapshot.TotalPrice,
		RefundStatus:  models.RefundStatusNone,
	}

	if err := s.bookingRepo.CreateBooking(booking, items); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"user_id":     userID,
		"tour_id":     tour.ID,
		"total_price": booking.TotalPrice,
		"items":       len(items),
	}).Info("Booking created")

	return booking, nil
}

// SetStatus transitions a booking's lifecycle status (admin action) and
// announces the membership change. Confirmation emits membership-confirmed;
// leaving confirmed, or any transition to cancelled, emits
// membership-removed.
func (s *BookingService) SetStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus) (*models.Booking, error) {
	if !models.ValidBookingStatus(status) {
		return nil, database.ErrInvalidTransition
	}

	previous, err := s.bookingRepo.UpdateStatus(bookingID, status)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from":       previous,
		"to":         status,
	}).Info("Booking status updated")

	event := membershipEventFor(previous, status)
	if event != "" {
		s.notifier.PublishMembership(ctx, event, notifier.MembershipEvent{
			TourID: booking.TourID,
			UserID: booking.UserID.String(),
			Status: string(status),
		})
	}

	return booking, nil
}

// membershipEventFor maps a status transition to the event it announces, or
// "" when nothing changed membership-wise.
func membershipEventFor(from, to models.BookingStatus) string {
	switch {
	case from == to:
		return ""
	case to == models.BookingStatusConfirmed:
		return notifier.EventMembershipConfirmed
	case to == models.BookingStatusCancelled, from == models.BookingStatusConfirmed:
		return notifier.EventMembershipRemoved
	}
	return ""
}

// UpdateEquipment replaces the caller's equipment set on a booking. Allowed
// only pre-payment and pre-cancellation; the price snapshot is refrozen and
// any refund computation is reset.
func (s *BookingService) UpdateEquipment(ctx context.Context, bookingID, userID uuid.UUID, req *models.UpdateEquipmentRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, database.ErrBookingNotFound
	}
	if booking.Status == models.BookingStatusCancelled || booking.PaymentStatus == models.PaymentStatusPaid {
		return nil, database.ErrInvalidTransition
	}

	tour, err := s.tourRepo.GetTourByID(booking.TourID)
	if err != nil {
		return nil, err
	}
	priceList, err := s.tourRepo.GetTourEquipmentPrices(tour.ID)
	if err != nil {
		return nil, err
	}

	snapshot, items, err := ComputePriceSnapshot(tour, priceList, req.Equipment)
	if err != nil {
		return nil, err
	}

	err = s.bookingRepo.ReplaceEquipment(bookingID, userID, items, snapshot.ExtraPrice, snapshot.TotalPrice)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  bookingID,
		"user_id":     userID,
		"total_price": snapshot.TotalPrice,
		"items":       len(items),
	}).Info("Booking equipment updated")

	return s.bookingRepo.GetByID(bookingID)
}

// SelfCancel withdraws a participant's own booking while it is still pending.
// Confirmed bookings can only leave via the cancellation request workflow.
func (s *BookingService) SelfCancel(ctx context.Context, bookingID, userID uuid.UUID) error {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return database.ErrBookingNotFound
	}

	if err := s.bookingRepo.DeleteOwn(bookingID, userID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"user_id":    userID,
		"tour_id":    booking.TourID,
	}).Info("Booking withdrawn by participant")

	s.notifier.PublishMembership(ctx, notifier.EventMembershipRemoved, notifier.MembershipEvent{
		TourID: booking.TourID,
		UserID: userID.String(),
		Status: string(models.BookingStatusCancelled),
	})
	return nil
}

// AdminDelete removes a booking unconditionally, cascading over its
// cancellation requests and reservations.
func (s *BookingService) AdminDelete(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return err
	}

	if err := s.bookingRepo.AdminDelete(bookingID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"tour_id":    booking.TourID,
	}).Info("Booking deleted by admin")

	s.notifier.PublishMembership(ctx, notifier.EventMembershipRemoved, notifier.MembershipEvent{
		TourID: booking.TourID,
		UserID: booking.UserID.String(),
		Status: string(models.BookingStatusCancelled),
	})
	return nil
}

// ListMine returns the caller's bookings with tour context.
func (s *BookingService) ListMine(userID uuid.UUID) ([]models.BookingSummary, error) {
	return s.bookingRepo.ListByUser(userID)
}

// ListAll returns every booking for the admin console.
func (s *BookingService) ListAll() ([]models.BookingAdminRow, error) {
	return s.bookingRepo.ListAll()
}

// ListByTour returns a tour's participants for the admin console.
func (s *BookingService) ListByTour(tourID int64) ([]models.BookingAdminRow, error) {
	return s.bookingRepo.ListByTour(tourID)
}

// ListByUserID returns one user's bookings for the admin console.
func (s *BookingService) ListByUserID(userID uuid.UUID) ([]models.BookingSummary, error) {
	return s.bookingRepo.ListByUserID(userID)
}

// TourBookingStatus is the caller's booking state for one tour.
type TourBookingStatus struct {
	IsBooked            bool                        `json:"is_booked"`
	BookingID           *uuid.UUID                  `json:"booking_id,omitempty"`
	Status              models.BookingStatus        `json:"status,omitempty"`
	PaymentStatus       models.PaymentStatus        `json:"payment_status,omitempty"`
	CancelRequestStatus *models.CancelRequestStatus `json:"cancel_request_status,omitempty"`
}

// StatusForTour reports whether the caller holds an active booking on a tour,
// including the latest cancellation-request status for display.
func (s *BookingService) StatusForTour(userID uuid.UUID, tourID int64) (*TourBookingStatus, error) {
	booking, err := s.bookingRepo.GetActiveByUserAndTour(userID, tourID)
	if err != nil {
		if err == database.ErrBookingNotFound {
			return &TourBookingStatus{IsBooked: false}, nil
		}
		return nil, err
	}

	cancelStatus, err := s.cancelRepo.LatestStatusForBooking(booking.ID)
	if err != nil {
		return nil, err
	}

	return &TourBookingStatus{
		IsBooked:            true,
		BookingID:           &booking.ID,
		Status:              booking.Status,
		PaymentStatus:       booking.PaymentStatus,
		CancelRequestStatus: cancelStatus,
	}, nil
}

// GetEquipment returns the reservations of the caller's booking.
func (s *BookingService) GetEquipment(bookingID, userID uuid.UUID) ([]models.BookingEquipment, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, database.ErrBookingNotFound
	}
	return s.bookingRepo.GetEquipment(bookingID)
}
