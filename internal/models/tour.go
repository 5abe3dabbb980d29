package models

import (
	"time"
)

// Tour represents a scheduled tour from the catalog. Tours are owned by the
// catalog service; this backend only reads them as inputs to booking decisions.
type Tour struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Location        string     `json:"location" db:"location"`
	Price           float64    `json:"price" db:"price"`
	StartDate       time.Time  `json:"start_date" db:"start_date"`
	EndDate         time.Time  `json:"end_date" db:"end_date"`
	MaxParticipants *int       `json:"max_participants,omitempty" db:"max_participants"`
	CreatedAt       *time.Time `json:"created_at,omitempty" db:"created_at"`
}

// Overlaps reports whether the tour's inclusive date interval overlaps
// [start, end]. Two tours that overlap compete for the same equipment stock.
func (t *Tour) Overlaps(start, end time.Time) bool {
	return !t.StartDate.After(end) && !t.EndDate.Before(start)
}

// Equipment represents a physical item from the catalog with a global stock
// shared across all tours.
type Equipment struct {
	ID            int64  `json:"id" db:"id"`
	Name          string `json:"name" db:"name"`
	Description   string `json:"description,omitempty" db:"description"`
	TotalQuantity int    `json:"total_quantity" db:"total_quantity"`
}

// TourEquipmentPrice is one row of a tour's equipment price list. Absence of a
// (tour, equipment) row means the item is not offered for that tour.
type TourEquipmentPrice struct {
	TourID      int64   `json:"tour_id" db:"tour_id"`
	EquipmentID int64   `json:"equipment_id" db:"equipment_id"`
	Price       float64 `json:"price" db:"price"`
}

// EquipmentAvailability is the availability of one equipment item over a date
// window, derived from catalog stock minus active reservations.
type EquipmentAvailability struct {
	EquipmentID int64 `json:"equipment_id"`
	Total       int   `json:"total"`
	Reserved    int   `json:"reserved"`
	Available   int   `json:"available"`
}

// TourAvailability aggregates the capacity and equipment availability view for
// one tour's date window.
type TourAvailability struct {
	TourID          int64                   `json:"tour_id"`
	MaxParticipants *int                    `json:"max_participants,omitempty"`
	BookedCount     int                     `json:"booked_count"`
	SpotsLeft       *int                    `json:"spots_left,omitempty"`
	Equipment       []EquipmentAvailability `json:"equipment"`
}
