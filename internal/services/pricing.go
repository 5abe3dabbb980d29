package services

import (
	"errors"
	"fmt"

	"github.com/trailhead/tour-booking-backend/internal/models"
)

// EquipmentNotOfferedError reports a requested equipment item that has no
// price-list entry for the tour. The original price lists are maintained by
// the catalog, so a missing pair is a configuration error, not free gear.
type EquipmentNotOfferedError struct {
	TourID      int64
	EquipmentID int64
}

func (e *EquipmentNotOfferedError) Error() string {
	return fmt.Sprintf("equipment %d is not offered for tour %d", e.EquipmentID, e.TourID)
}

// IsEquipmentNotOffered reports whether err is an EquipmentNotOfferedError.
func IsEquipmentNotOffered(err error) bool {
	var target *EquipmentNotOfferedError
	return errors.As(err, &target)
}

// PriceSnapshot is the frozen price of a booking at the moment it is created
// or its equipment set is edited. It is stored on the booking and never
// recomputed from the catalog, so later catalog price changes cannot alter
// existing bookings.
type PriceSnapshot struct {
	ExtraPrice float64
	TotalPrice float64
}

// ComputePriceSnapshot prices a booking request against a tour's surcharge
// list: extra is the sum of per-item surcharge times quantity, total adds the
// tour's base price. It also materializes the reservation rows with their
// unit prices frozen. Pure function; no store access.
func ComputePriceSnapshot(
	tour *models.Tour,
	priceList map[int64]float64,
	selections []models.EquipmentSelection,
) (PriceSnapshot, []models.BookingEquipment, error) {
	var extra float64
	items := make([]models.BookingEquipment, 0, len(selections))

	for _, sel := range selections {
		price, offered := priceList[sel.EquipmentID]
		if !offered {
			return PriceSnapshot{}, nil, &EquipmentNotOfferedError{
				TourID:      tour.ID,
				EquipmentID: sel.EquipmentID,
			}
		}
		extra += price * float64(sel.Quantity)
		items = append(items, models.BookingEquipment{
			EquipmentID: sel.EquipmentID,
			Quantity:    sel.Quantity,
			UnitPrice:   price,
		})
	}

	return PriceSnapshot{
		ExtraPrice: extra,
		TotalPrice: tour.Price + extra,
	}, items, nil
}
