package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
)

// PaymentService reconciles bookings against the payment gateway. Settlement
// can arrive twice, once from the webhook and once from the client's
// confirmation poll, so every path funnels through Settle and the repository
// makes the second application a no-op.
type PaymentService struct {
	paymentRepo *database.PaymentRepository
	bookingRepo *database.BookingRepository
	tourRepo    *database.TourRepository
	stripe      *StripeService
	notifier    notifier.Notifier
	logger      *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo *database.PaymentRepository,
	bookingRepo *database.BookingRepository,
	tourRepo *database.TourRepository,
	stripe *StripeService,
	n notifier.Notifier,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		bookingRepo: bookingRepo,
		tourRepo:    tourRepo,
		stripe:      stripe,
		notifier:    n,
		logger:      logger,
	}
}

// CheckoutResult carries the hosted payment page back to the client.
type CheckoutResult struct {
	SessionID   string  `json:"session_id"`
	CheckoutURL string  `json:"checkout_url"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// InitiateCheckout opens a checkout session for the caller's confirmed,
// unpaid booking. The charged amount is the booking's frozen total, never a
// recomputation from current prices.
func (s *PaymentService) InitiateCheckout(ctx context.Context, bookingID, userID uuid.UUID) (*CheckoutResult, error) {
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
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return nil, database.ErrAlreadyProcessed
	}

	tour, err := s.tourRepo.GetTourByID(booking.TourID)
	if err != nil {
		return nil, err
	}

	session, err := s.stripe.CreateCheckoutSession(&CheckoutParams{
		BookingID:   booking.ID.String(),
		TourID:      strconv.FormatInt(tour.ID, 10),
		UserID:      userID.String(),
		TourTitle:   tour.Title,
		Amount:      booking.TotalPrice,
		Description: fmt.Sprintf("Tour booking, %s", tour.Location),
	})
	if err != nil {
		return nil, err
	}

	record := &models.PaymentIntentRecord{
		SessionID: session.ID,
		BookingID: booking.ID,
		UserID:    userID,
		TourID:    tour.ID,
		Amount:    booking.TotalPrice,
		Currency:  session.Currency,
		Status:    models.PaymentIntentStatusPending,
	}
	if err := s.paymentRepo.CreateIntent(record); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"session_id": session.ID,
		"amount":     booking.TotalPrice,
	}).Info("Checkout session issued")

	return &CheckoutResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		Amount:      booking.TotalPrice,
		Currency:    session.Currency,
	}, nil
}

// ConfirmFromClient settles a payment from the client's post-redirect poll.
// The session state is re-read from the gateway, never trusted from the
// client, and the caller must own the session.
func (s *PaymentService) ConfirmFromClient(ctx context.Context, sessionID string, userID uuid.UUID) (*database.SettlementResult, error) {
	record, err := s.paymentRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if record.UserID != userID {
		return nil, database.ErrPaymentNotFound
	}

	session, err := s.stripe.RetrieveSession(sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case session.PaymentStatus == "paid":
		return s.settle(ctx, sessionID, true)
	case session.Status == "expired":
		return s.settle(ctx, sessionID, false)
	default:
		// Still open at the gateway; report current state without settling.
		return &database.SettlementResult{
			BookingID: record.BookingID,
			TourID:    record.TourID,
			UserID:    record.UserID,
			Status:    record.Status,
		}, nil
	}
}

// HandleWebhook verifies and applies one gateway webhook delivery. Events for
// sessions we never issued are acknowledged and dropped so the gateway stops
// retrying them.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.stripe.ConstructEvent(payload, sigHeader)
	if err != nil {
		return err
	}

	var paid bool
	switch event.Type {
	case "checkout.session.completed":
		paid = true
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		paid = false
	default:
		s.logger.WithField("event_type", event.Type).Debug("Ignoring webhook event")
		return nil
	}

	var session CheckoutSession
	if err := session.unmarshalFrom(event); err != nil {
		return err
	}
	// completed fires for async payment methods before the charge clears;
	// only settle as paid once the session itself says so.
	if paid && session.PaymentStatus != "paid" {
		s.logger.WithFields(logrus.Fields{
			"session_id":     session.ID,
			"payment_status": session.PaymentStatus,
		}).Info("Checkout completed but not yet paid, awaiting async result")
		return nil
	}

	_, err = s.settle(ctx, session.ID, paid)
	if err == database.ErrPaymentNotFound {
		s.logger.WithField("session_id", session.ID).Warn("Webhook for unknown checkout session, ignoring")
		return nil
	}
	return err
}

func (c *CheckoutSession) unmarshalFrom(event *WebhookEvent) error {
	if err := json.Unmarshal(event.Data.Object, c); err != nil {
		return fmt.Errorf("invalid session object in webhook: %w", err)
	}
	if c.ID == "" {
		return fmt.Errorf("webhook session missing id")
	}
	return nil
}

// settle is the single choke point for applying a settlement outcome.
func (s *PaymentService) settle(ctx context.Context, sessionID string, paid bool) (*database.SettlementResult, error) {
	result, err := s.paymentRepo.Settle(sessionID, paid)
	if err != nil {
		return nil, err
	}

	if !result.Applied {
		s.logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"status":     result.Status,
		}).Info("Settlement already applied, no-op")
		return result, nil
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"booking_id": result.BookingID,
		"status":     result.Status,
	}).Info("Payment settled")

	if paid {
		s.notifier.PublishMembership(ctx, notifier.EventMembershipConfirmed, notifier.MembershipEvent{
			TourID: result.TourID,
			UserID: result.UserID.String(),
			Status: string(models.PaymentStatusPaid),
		})
	}
	return result, nil
}

// StatusForBooking exposes a booking's payment state to its owner.
func (s *PaymentService) StatusForBooking(bookingID, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, database.ErrBookingNotFound
	}
	return booking, nil
}
