package database

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trailhead/tour-booking-backend/internal/models"
)

// Advisory lock classes. Capacity admission serializes on the tour id,
// inventory reservation on each equipment id, so unrelated tours and items
// never block each other.
const (
	lockClassTour      = 1
	lockClassEquipment = 2
)

const bookingColumns = `id, user_id, tour_id, status, payment_status,
	extra_price, total_price, refund_amount, refund_status, booked_at, paid_at`

// BookingRepository handles database operations for bookings and their
// equipment reservations. All multi-row mutations run in a single
// transaction; the capacity and inventory checks run under transaction-scoped
// advisory locks so concurrent requests cannot both pass a check-then-write.
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// lockKey folds the class into the high bits of a single bigint key so tour
// and equipment locks occupy disjoint key spaces. Ids come from int4 serial
// columns, so the low 32 bits hold them losslessly.
func lockKey(class int32, id int64) int64 {
	return int64(class)<<32 | (id & 0xffffffff)
}

func acquireLock(tx *sqlx.Tx, class int32, id int64) error {
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock($1)`, lockKey(class, id)); err != nil {
		return fmt.Errorf("failed to acquire advisory lock (%d,%d): %w", class, id, err)
	}
	return nil
}

// CreateBooking atomically admits a participant: duplicate check, capacity
// check, per-item inventory check and the booking + reservation inserts all
// happen in one transaction. Prices on booking and items must already be
// frozen by the caller.
func (r *BookingRepository) CreateBooking(booking *models.Booking, items []models.BookingEquipment) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := acquireLock(tx, lockClassTour, booking.TourID); err != nil {
		return err
	}

	tour, err := getTourForUpdate(tx, booking.TourID)
	if err != nil {
		return err
	}

	// One active booking per (user, tour); cancelled bookings do not count.
	var existing int
	err = tx.Get(&existing, `
		SELECT COUNT(*) FROM bookings
		WHERE user_id = $1 AND tour_id = $2 AND status <> 'cancelled'
	`, booking.UserID, booking.TourID)
	if err != nil {
		return fmt.Errorf("failed to check existing booking: %w", err)
	}
	if existing > 0 {
		return ErrDuplicateBooking
	}

	// Pending bookings count toward capacity; only cancelled ones free a spot.
	if tour.MaxParticipants != nil {
		var count int
		err = tx.Get(&count, `
			SELECT COUNT(*) FROM bookings
			WHERE tour_id = $1 AND status <> 'cancelled'
		`, booking.TourID)
		if err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}
		if count >= *tour.MaxParticipants {
			return ErrCapacityExceeded
		}
	}

	if err := checkAndLockInventory(tx, items, tour, nil); err != nil {
		return err
	}

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	err = tx.QueryRowx(`
		INSERT INTO bookings (
			id, user_id, tour_id, status, payment_status,
			extra_price, total_price, refund_amount, refund_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING booked_at
	`,
		booking.ID, booking.UserID, booking.TourID, booking.Status, booking.PaymentStatus,
		booking.ExtraPrice, booking.TotalPrice, booking.RefundAmount, booking.RefundStatus,
	).Scan(&booking.BookedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if err := insertBookingEquipment(tx, booking.ID, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// ReplaceEquipment atomically swaps a booking's equipment set and refreezes
// its prices. Allowed only while the booking is not cancelled and not paid;
// any in-flight refund computation is reset because the price changed.
func (r *BookingRepository) ReplaceEquipment(
	bookingID uuid.UUID,
	userID uuid.UUID,
	items []models.BookingEquipment,
	extraPrice, totalPrice float64,
) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var booking models.Booking
	err = tx.Get(&booking, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, bookingID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBookingNotFound
		}
		return fmt.Errorf("failed to get booking: %w", err)
	}

	if booking.Status == models.BookingStatusCancelled || booking.PaymentStatus == models.PaymentStatusPaid {
		return ErrInvalidTransition
	}

	tour, err := getTourForUpdate(tx, booking.TourID)
	if err != nil {
		return err
	}

	if err := checkAndLockInventory(tx, items, tour, &bookingID); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM booking_equipment WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to clear equipment reservations: %w", err)
	}
	if err := insertBookingEquipment(tx, bookingID, items); err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE bookings
		SET extra_price = $2, total_price = $3, refund_amount = 0, refund_status = 'none'
		WHERE id = $1
	`, bookingID, extraPrice, totalPrice)
	if err != nil {
		return fmt.Errorf("failed to update booking prices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit equipment update: %w", err)
	}
	return nil
}

// checkAndLockInventory locks each requested equipment item in ascending id
// order and verifies remaining stock over the tour's date window. The
// ordering keeps concurrent multi-item requests deadlock free.
func checkAndLockInventory(tx *sqlx.Tx, items []models.BookingEquipment, tour *models.Tour, excludeBookingID *uuid.UUID) error {
	if len(items) == 0 {
		return nil
	}

	sorted := make([]models.BookingEquipment, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EquipmentID < sorted[j].EquipmentID })

	for _, item := range sorted {
		if err := acquireLock(tx, lockClassEquipment, item.EquipmentID); err != nil {
			return err
		}

		var total int
		if err := tx.Get(&total, `SELECT total_quantity FROM equipment WHERE id = $1`, item.EquipmentID); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("equipment %d not found", item.EquipmentID)
			}
			return fmt.Errorf("failed to get equipment stock: %w", err)
		}

		reserved, err := reservedQuantityTx(tx, item.EquipmentID, tour, excludeBookingID)
		if err != nil {
			return err
		}

		available := total - reserved
		if available < item.Quantity {
			if available < 0 {
				available = 0
			}
			return &EquipmentUnavailableError{
				EquipmentID: item.EquipmentID,
				Requested:   item.Quantity,
				Available:   available,
			}
		}
	}
	return nil
}

// reservedQuantityTx sums committed reservations of one equipment item across
// all non-cancelled bookings whose tour overlaps the given tour's window.
func reservedQuantityTx(tx *sqlx.Tx, equipmentID int64, tour *models.Tour, excludeBookingID *uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(be.quantity), 0)
		FROM booking_equipment be
		JOIN bookings b ON b.id = be.booking_id
		JOIN tours t ON t.id = b.tour_id
		WHERE be.equipment_id = $1
		  AND b.status <> 'cancelled'
		  AND t.start_date <= $2
		  AND t.end_date >= $3
	`
	args := []interface{}{equipmentID, tour.EndDate, tour.StartDate}
	if excludeBookingID != nil {
		query += ` AND b.id <> $4`
		args = append(args, *excludeBookingID)
	}

	var reserved int
	if err := tx.Get(&reserved, query, args...); err != nil {
		return 0, fmt.Errorf("failed to sum reservations: %w", err)
	}
	return reserved, nil
}

func insertBookingEquipment(tx *sqlx.Tx, bookingID uuid.UUID, items []models.BookingEquipment) error {
	for _, item := range items {
		_, err := tx.Exec(`
			INSERT INTO booking_equipment (booking_id, equipment_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
		`, bookingID, item.EquipmentID, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to reserve equipment %d: %w", item.EquipmentID, err)
		}
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1
	`, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetActiveByUserAndTour retrieves the caller's non-cancelled booking for a
// tour, if any.
func (r *BookingRepository) GetActiveByUserAndTour(userID uuid.UUID, tourID int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1 AND tour_id = $2 AND status <> 'cancelled'
		ORDER BY booked_at DESC
		LIMIT 1
	`, userID, tourID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetEquipment retrieves the equipment reservations of one booking.
func (r *BookingRepository) GetEquipment(bookingID uuid.UUID) ([]models.BookingEquipment, error) {
	var items []models.BookingEquipment
	err := r.db.Select(&items, `
		SELECT booking_id, equipment_id, quantity, unit_price
		FROM booking_equipment
		WHERE booking_id = $1
		ORDER BY equipment_id
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking equipment: %w", err)
	}
	return items, nil
}

// ListByUser retrieves the caller's bookings with tour info and the latest
// cancellation-request status per booking.
func (r *BookingRepository) ListByUser(userID uuid.UUID) ([]models.BookingSummary, error) {
	var rows []models.BookingSummary
	err := r.db.Select(&rows, `
		SELECT b.id, b.user_id, b.tour_id, b.status, b.payment_status,
		       b.extra_price, b.total_price, b.refund_amount, b.refund_status,
		       b.booked_at, b.paid_at,
		       t.title AS tour_title, t.location AS tour_location,
		       t.start_date AS tour_start_date, t.end_date AS tour_end_date,
		       (
		           SELECT r.status FROM booking_cancel_requests r
		           WHERE r.booking_id = b.id
		           ORDER BY r.created_at DESC
		           LIMIT 1
		       ) AS cancel_request_status
		FROM bookings b
		JOIN tours t ON b.tour_id = t.id
		WHERE b.user_id = $1
		ORDER BY b.booked_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return rows, nil
}

// ListAll retrieves all bookings with tour and user info for the admin console.
func (r *BookingRepository) ListAll() ([]models.BookingAdminRow, error) {
	var rows []models.BookingAdminRow
	err := r.db.Select(&rows, `
		SELECT b.id, b.user_id, b.tour_id, b.status, b.payment_status,
		       b.extra_price, b.total_price, b.refund_amount, b.refund_status,
		       b.booked_at, b.paid_at,
		       t.title AS tour_title, t.location AS tour_location,
		       u.name AS user_name, u.email AS user_email
		FROM bookings b
		JOIN tours t ON b.tour_id = t.id
		JOIN users u ON b.user_id = u.id
		ORDER BY b.booked_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return rows, nil
}

// ListByTour retrieves all bookings of one tour with user info.
func (r *BookingRepository) ListByTour(tourID int64) ([]models.BookingAdminRow, error) {
	var rows []models.BookingAdminRow
	err := r.db.Select(&rows, `
		SELECT b.id, b.user_id, b.tour_id, b.status, b.payment_status,
		       b.extra_price, b.total_price, b.refund_amount, b.refund_status,
		       b.booked_at, b.paid_at,
		       t.title AS tour_title, t.location AS tour_location,
		       u.name AS user_name, u.email AS user_email
		FROM bookings b
		JOIN tours t ON b.tour_id = t.id
		JOIN users u ON b.user_id = u.id
		WHERE b.tour_id = $1
		ORDER BY b.booked_at DESC
	`, tourID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tour bookings: %w", err)
	}
	return rows, nil
}

// ListByUserID retrieves one user's bookings with tour info (admin view).
func (r *BookingRepository) ListByUserID(userID uuid.UUID) ([]models.BookingSummary, error) {
	var rows []models.BookingSummary
	err := r.db.Select(&rows, `
		SELECT b.id, b.user_id, b.tour_id, b.status, b.payment_status,
		       b.extra_price, b.total_price, b.refund_amount, b.refund_status,
		       b.booked_at, b.paid_at,
		       t.title AS tour_title, t.location AS tour_location,
		       t.start_date AS tour_start_date, t.end_date AS tour_end_date,
		       NULL AS cancel_request_status
		FROM bookings b
		JOIN tours t ON b.tour_id = t.id
		WHERE b.user_id = $1
		ORDER BY b.booked_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	return rows, nil
}

// CountActiveByTour counts non-cancelled bookings of a tour. Read-only
// companion of the in-transaction capacity check.
func (r *BookingRepository) CountActiveByTour(tourID int64) (int, error) {
	var count int
	err := r.db.Get(&count, `
		SELECT COUNT(*) FROM bookings
		WHERE tour_id = $1 AND status <> 'cancelled'
	`, tourID)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// ReservedQuantities sums active reservations per equipment item over a date
// window, optionally excluding one booking. Read-only companion of the
// in-transaction inventory check, used by the availability view.
func (r *BookingRepository) ReservedQuantities(equipmentIDs []int64, tour *models.Tour, excludeBookingID *uuid.UUID) (map[int64]int, error) {
	reserved := make(map[int64]int, len(equipmentIDs))
	if len(equipmentIDs) == 0 {
		return reserved, nil
	}

	query := `
		SELECT be.equipment_id, COALESCE(SUM(be.quantity), 0) AS quantity
		FROM booking_equipment be
		JOIN bookings b ON b.id = be.booking_id
		JOIN tours t ON t.id = b.tour_id
		WHERE be.equipment_id = ANY($1)
		  AND b.status <> 'cancelled'
		  AND t.start_date <= $2
		  AND t.end_date >= $3
	`
	args := []interface{}{pq.Array(equipmentIDs), tour.EndDate, tour.StartDate}
	if excludeBookingID != nil {
		query += ` AND b.id <> $4`
		args = append(args, *excludeBookingID)
	}
	query += ` GROUP BY be.equipment_id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum reservations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan reservation sum: %w", err)
		}
		reserved[id] = qty
	}
	return reserved, rows.Err()
}

// UpdateStatus transitions a booking's lifecycle status and returns the
// status it had before, so callers can decide which membership events to emit.
func (r *BookingRepository) UpdateStatus(bookingID uuid.UUID, status models.BookingStatus) (models.BookingStatus, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous models.BookingStatus
	err = tx.Get(&previous, `SELECT status FROM bookings WHERE id = $1 FOR UPDATE`, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrBookingNotFound
		}
		return "", fmt.Errorf("failed to get booking status: %w", err)
	}

	if _, err := tx.Exec(`UPDATE bookings SET status = $2 WHERE id = $1`, bookingID, status); err != nil {
		return "", fmt.Errorf("failed to update booking status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit status update: %w", err)
	}
	return previous, nil
}

// DeleteOwn removes a participant's own booking and its reservations. Refused
// once the booking is confirmed; the cancellation workflow is the only
// participant-initiated exit from confirmed.
func (r *BookingRepository) DeleteOwn(bookingID uuid.UUID, userID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.BookingStatus
	err = tx.Get(&status, `
		SELECT status FROM bookings WHERE id = $1 AND user_id = $2 FOR UPDATE
	`, bookingID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBookingNotFound
		}
		return fmt.Errorf("failed to get booking: %w", err)
	}
	if status == models.BookingStatusConfirmed {
		return ErrInvalidTransition
	}

	// Same cascade order as AdminDelete; a booking cancelled via an approved
	// request still carries its cancel request rows.
	if _, err := tx.Exec(`DELETE FROM booking_cancel_requests WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete cancellation requests: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM booking_equipment WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete equipment reservations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM bookings WHERE id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking delete: %w", err)
	}
	return nil
}

// AdminDelete removes a booking unconditionally, cascading over its
// cancellation requests and equipment reservations.
func (r *BookingRepository) AdminDelete(bookingID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.Get(&exists, `SELECT COUNT(*) FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to check booking: %w", err)
	}
	if exists == 0 {
		return ErrBookingNotFound
	}

	if _, err := tx.Exec(`DELETE FROM booking_cancel_requests WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete cancellation requests: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM booking_equipment WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete equipment reservations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM bookings WHERE id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking delete: %w", err)
	}
	return nil
}
