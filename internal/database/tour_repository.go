package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trailhead/tour-booking-backend/internal/models"
)

// TourRepository reads the tour and equipment catalog. The catalog is owned by
// another service; nothing here writes to it.
type TourRepository struct {
	db DB
}

// NewTourRepository creates a new TourRepository
func NewTourRepository(db DB) *TourRepository {
	return &TourRepository{db: db}
}

// GetTourByID retrieves a tour by ID
func (r *TourRepository) GetTourByID(tourID int64) (*models.Tour, error) {
	query := `
		SELECT id, title, location, price, start_date, end_date, max_participants, created_at
		FROM tours
		WHERE id = $1
	`

	var tour models.Tour
	if err := r.db.Get(&tour, query, tourID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTourNotFound
		}
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return &tour, nil
}

// GetEquipmentByIDs retrieves equipment rows for the given IDs.
func (r *TourRepository) GetEquipmentByIDs(ids []int64) ([]models.Equipment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, COALESCE(description, '') AS description, total_quantity
		FROM equipment
		WHERE id = ANY($1)
		ORDER BY id
	`

	var items []models.Equipment
	if err := r.db.Select(&items, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return items, nil
}

// GetTourEquipmentPrices retrieves the full surcharge price list of one tour,
// keyed by equipment id.
func (r *TourRepository) GetTourEquipmentPrices(tourID int64) (map[int64]float64, error) {
	query := `
		SELECT tour_id, equipment_id, price
		FROM tour_equipment_prices
		WHERE tour_id = $1
	`

	var rows []models.TourEquipmentPrice
	if err := r.db.Select(&rows, query, tourID); err != nil {
		return nil, fmt.Errorf("failed to get tour equipment prices: %w", err)
	}

	prices := make(map[int64]float64, len(rows))
	for _, row := range rows {
		prices[row.EquipmentID] = row.Price
	}
	return prices, nil
}

// getTourForUpdate reads a tour inside a transaction. The capacity decision
// must see the row the transaction will count against.
func getTourForUpdate(tx *sqlx.Tx, tourID int64) (*models.Tour, error) {
	query := `
		SELECT id, title, location, price, start_date, end_date, max_participants, created_at
		FROM tours
		WHERE id = $1
	`

	var tour models.Tour
	if err := tx.Get(&tour, query, tourID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTourNotFound
		}
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return &tour, nil
}
