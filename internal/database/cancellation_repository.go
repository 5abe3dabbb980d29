package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailhead/tour-booking-backend/internal/models"
)

// CancellationRepository handles database operations for cancellation requests
type CancellationRepository struct {
	db DB
}

// NewCancellationRepository creates a new CancellationRepository
func NewCancellationRepository(db DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

// Create inserts a new pending cancellation request.
func (r *CancellationRepository) Create(req *models.CancellationRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	err := r.db.QueryRow(`
		INSERT INTO booking_cancel_requests (id, booking_id, user_id, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, req.ID, req.BookingID, req.UserID, req.Reason, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cancellation request: %w", err)
	}
	return nil
}

// GetByID retrieves a cancellation request by ID
func (r *CancellationRepository) GetByID(id uuid.UUID) (*models.CancellationRequest, error) {
	var req models.CancellationRequest
	err := r.db.Get(&req, `
		SELECT id, booking_id, user_id, reason, status, created_at, processed_at, admin_id
		FROM booking_cancel_requests
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCancelRequestNotFound
		}
		return nil, fmt.Errorf("failed to get cancellation request: %w", err)
	}
	return &req, nil
}

// LatestStatusForBooking returns the status of the most recent cancellation
// request of a booking, or nil if none exists. Only the latest request is
// authoritative for display.
func (r *CancellationRepository) LatestStatusForBooking(bookingID uuid.UUID) (*models.CancelRequestStatus, error) {
	var status models.CancelRequestStatus
	err := r.db.Get(&status, `
		SELECT status FROM booking_cancel_requests
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest cancellation status: %w", err)
	}
	return &status, nil
}

// ListAll retrieves all cancellation requests with booking, tour and user
// context, newest first.
func (r *CancellationRepository) ListAll() ([]models.CancelRequestDetail, error) {
	var rows []models.CancelRequestDetail
	err := r.db.Select(&rows, `
		SELECT r.id, r.booking_id, r.user_id, r.reason, r.status, r.created_at,
		       r.processed_at, r.admin_id,
		       b.tour_id, b.status AS booking_status,
		       t.title AS tour_title, t.location AS tour_location,
		       u.name AS user_name, u.email AS user_email
		FROM booking_cancel_requests r
		JOIN bookings b ON r.booking_id = b.id
		JOIN tours t ON b.tour_id = t.id
		JOIN users u ON r.user_id = u.id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cancellation requests: %w", err)
	}
	return rows, nil
}

// Resolve marks a pending request approved or rejected and, on approval,
// forces the linked booking to cancelled in the same transaction. A request
// that is no longer pending yields ErrAlreadyProcessed.
func (r *CancellationRepository) Resolve(
	requestID uuid.UUID,
	adminID uuid.UUID,
	outcome models.CancelRequestStatus,
) (*models.CancellationRequest, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var req models.CancellationRequest
	err = tx.Get(&req, `
		SELECT id, booking_id, user_id, reason, status, created_at, processed_at, admin_id
		FROM booking_cancel_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCancelRequestNotFound
		}
		return nil, fmt.Errorf("failed to get cancellation request: %w", err)
	}

	if req.Status != models.CancelRequestStatusPending {
		return nil, ErrAlreadyProcessed
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE booking_cancel_requests
		SET status = $2, processed_at = $3, admin_id = $4
		WHERE id = $1
	`, requestID, outcome, now, adminID); err != nil {
		return nil, fmt.Errorf("failed to resolve cancellation request: %w", err)
	}

	if outcome == models.CancelRequestStatusApproved {
		if _, err := tx.Exec(`
			UPDATE bookings SET status = 'cancelled' WHERE id = $1
		`, req.BookingID); err != nil {
			return nil, fmt.Errorf("failed to cancel booking: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resolution: %w", err)
	}

	req.Status = outcome
	req.ProcessedAt = &now
	req.AdminID = &adminID
	return &req, nil
}
