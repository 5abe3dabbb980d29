package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/trailhead/tour-booking-backend/internal/models"
)

// PaymentRepository handles database operations for checkout session records
// and the payment fields of bookings.
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateIntent records a freshly issued checkout session and marks the booking
// payment as pending, in one transaction.
func (r *PaymentRepository) CreateIntent(record *models.PaymentIntentRecord) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowx(`
		INSERT INTO booking_payments (
			stripe_session_id, booking_id, user_id, tour_id, amount, currency, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`,
		record.SessionID, record.BookingID, record.UserID, record.TourID,
		record.Amount, record.Currency, record.Status,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE bookings SET payment_status = 'pending'
		WHERE id = $1 AND payment_status <> 'paid'
	`, record.BookingID)
	if err != nil {
		return fmt.Errorf("failed to mark booking payment pending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment record: %w", err)
	}
	return nil
}

// GetBySessionID retrieves a payment record by checkout session id
func (r *PaymentRepository) GetBySessionID(sessionID string) (*models.PaymentIntentRecord, error) {
	var record models.PaymentIntentRecord
	err := r.db.Get(&record, `
		SELECT stripe_session_id, booking_id, user_id, tour_id, amount, currency,
		       status, created_at, updated_at
		FROM booking_payments
		WHERE stripe_session_id = $1
	`, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return &record, nil
}

// SettlementResult reports what a settlement attempt did.
type SettlementResult struct {
	BookingID uuid.UUID
	TourID    int64
	UserID    uuid.UUID
	// Applied is false when the record had already left pending and the call
	// was an idempotent no-op.
	Applied bool
	Status  models.PaymentIntentStatus
}

// Settle applies one settlement outcome to a checkout session record and its
// booking. Both the webhook handler and the client confirmation poll call
// this; the conditional update makes the second caller a harmless no-op, so
// racing callers cannot double-apply or clobber paid_at.
func (r *PaymentRepository) Settle(sessionID string, paid bool) (*SettlementResult, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var record models.PaymentIntentRecord
	err = tx.Get(&record, `
		SELECT stripe_session_id, booking_id, user_id, tour_id, amount, currency,
		       status, created_at, updated_at
		FROM booking_payments
		WHERE stripe_session_id = $1
		FOR UPDATE
	`, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}

	result := &SettlementResult{
		BookingID: record.BookingID,
		TourID:    record.TourID,
		UserID:    record.UserID,
		Status:    record.Status,
	}

	if record.Status != models.PaymentIntentStatusPending {
		// Already settled by the other caller; nothing to do.
		return result, nil
	}

	status := models.PaymentIntentStatusFailed
	if paid {
		status = models.PaymentIntentStatusPaid
	}

	res, err := tx.Exec(`
		UPDATE booking_payments
		SET status = $2, updated_at = NOW()
		WHERE stripe_session_id = $1 AND status = 'pending'
	`, sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost the race after all; treat as the no-op path.
		return result, nil
	}

	if paid {
		_, err = tx.Exec(`
			UPDATE bookings
			SET payment_status = 'paid', paid_at = NOW()
			WHERE id = $1 AND payment_status <> 'paid'
		`, record.BookingID)
	} else {
		_, err = tx.Exec(`
			UPDATE bookings
			SET payment_status = 'failed'
			WHERE id = $1 AND payment_status = 'pending'
		`, record.BookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	result.Applied = true
	result.Status = status
	return result, nil
}
