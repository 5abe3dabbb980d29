package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
)

// CancellationService runs the cancellation request workflow: confirmed
// bookings cannot be withdrawn directly, the participant files a request and
// an admin approves or rejects it.
type CancellationService struct {
	cancelRepo  *database.CancellationRepository
	bookingRepo *database.BookingRepository
	notifier    notifier.Notifier
	logger      *logrus.Logger
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	cancelRepo *database.CancellationRepository,
	bookingRepo *database.BookingRepository,
	n notifier.Notifier,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		cancelRepo:  cancelRepo,
		bookingRepo: bookingRepo,
		notifier:    n,
		logger:      logger,
	}
}

// Request files a cancellation request against the caller's confirmed
// booking. Pending bookings don't need one, they can be withdrawn directly.
func (s *CancellationService) Request(ctx context.Context, bookingID, userID uuid.UUID, req *models.CreateCancelRequest) (*models.CancellationRequest, error) {
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
	if booking.Status != models.BookingStatusConfirmed {
		return nil, database.ErrInvalidTransition
	}

	latest, err := s.cancelRepo.LatestStatusForBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if latest != nil && *latest == models.CancelRequestStatusPending {
		return nil, database.ErrRequestPending
	}

	request := &models.CancellationRequest{
		ID:        uuid.New(),
		BookingID: bookingID,
		UserID:    userID,
		Reason:    req.Reason,
		Status:    models.CancelRequestStatusPending,
	}
	if err := s.cancelRepo.Create(request); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"booking_id": bookingID,
		"user_id":    userID,
	}).Info("Cancellation request filed")

	return request, nil
}

// Resolve approves or rejects a pending cancellation request (admin action).
// Approval cancels the booking in the same transaction; rejection leaves it
// confirmed.
func (s *CancellationService) Resolve(ctx context.Context, requestID, adminID uuid.UUID, req *models.ResolveCancelRequest) (*models.CancellationRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	request, err := s.cancelRepo.Resolve(requestID, adminID, req.Status)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"booking_id": request.BookingID,
		"admin_id":   adminID,
		"outcome":    req.Status,
	}).Info("Cancellation request resolved")

	if req.Status == models.CancelRequestStatusApproved {
		booking, err := s.bookingRepo.GetByID(request.BookingID)
		if err != nil {
			return nil, err
		}
		s.notifier.PublishMembership(ctx, notifier.EventMembershipRemoved, notifier.MembershipEvent{
			TourID: booking.TourID,
			UserID: request.UserID.String(),
			Status: string(models.BookingStatusCancelled),
		})
	}

	return request, nil
}

// ListAll returns every cancellation request for the admin console.
func (s *CancellationService) ListAll() ([]models.CancelRequestDetail, error) {
	return s.cancelRepo.ListAll()
}
