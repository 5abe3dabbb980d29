package services

import (
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
)

// ComputeAvailability derives per-item remaining availability from catalog
// stock and committed reservations. Pure function over immutable snapshots;
// the transactional admission path re-runs the same arithmetic under locks.
func ComputeAvailability(equipment []models.Equipment, reserved map[int64]int) []models.EquipmentAvailability {
	result := make([]models.EquipmentAvailability, 0, len(equipment))
	for _, item := range equipment {
		r := reserved[item.ID]
		available := item.TotalQuantity - r
		if available < 0 {
			available = 0
		}
		result = append(result, models.EquipmentAvailability{
			EquipmentID: item.ID,
			Total:       item.TotalQuantity,
			Reserved:    r,
			Available:   available,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EquipmentID < result[j].EquipmentID })
	return result
}

// SpotsLeft derives remaining capacity; nil means unlimited.
func SpotsLeft(maxParticipants *int, bookedCount int) *int {
	if maxParticipants == nil {
		return nil
	}
	left := *maxParticipants - bookedCount
	if left < 0 {
		left = 0
	}
	return &left
}

// AvailabilityService exposes the read-only capacity and inventory view of a
// tour. It answers "what could I book right now" without any locking; the
// booking transaction is the authority.
type AvailabilityService struct {
	tourRepo    *database.TourRepository
	bookingRepo *database.BookingRepository
	logger      *logrus.Logger
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(
	tourRepo *database.TourRepository,
	bookingRepo *database.BookingRepository,
	logger *logrus.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		tourRepo:    tourRepo,
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// TourAvailability reports remaining participant capacity plus availability
// of every equipment item offered for the tour, over the tour's date window.
func (s *AvailabilityService) TourAvailability(tourID int64) (*models.TourAvailability, error) {
	tour, err := s.tourRepo.GetTourByID(tourID)
	if err != nil {
		return nil, err
	}

	bookedCount, err := s.bookingRepo.CountActiveByTour(tourID)
	if err != nil {
		return nil, err
	}

	priceList, err := s.tourRepo.GetTourEquipmentPrices(tourID)
	if err != nil {
		return nil, err
	}

	offered := make([]int64, 0, len(priceList))
	for id := range priceList {
		offered = append(offered, id)
	}
	sort.Slice(offered, func(i, j int) bool { return offered[i] < offered[j] })

	equipment, err := s.tourRepo.GetEquipmentByIDs(offered)
	if err != nil {
		return nil, err
	}

	reserved, err := s.bookingRepo.ReservedQuantities(offered, tour, nil)
	if err != nil {
		return nil, err
	}

	return &models.TourAvailability{
		TourID:          tourID,
		MaxParticipants: tour.MaxParticipants,
		BookedCount:     bookedCount,
		SpotsLeft:       SpotsLeft(tour.MaxParticipants, bookedCount),
		Equipment:       ComputeAvailability(equipment, reserved),
	}, nil
}
