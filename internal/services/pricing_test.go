package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailhead/tour-booking-backend/internal/models"
)

func testTour(price float64) *models.Tour {
	return &models.Tour{
		ID:        42,
		Title:     "Glacier Hike",
		Location:  "Iceland",
		Price:     price,
		StartDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestComputePriceSnapshot(t *testing.T) {
	priceList := map[int64]float64{
		7:  15,
		8:  40,
		12: 0,
	}

	t.Run("Base Price Only", func(t *testing.T) {
		snapshot, items, err := ComputePriceSnapshot(testTour(100), priceList, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, snapshot.ExtraPrice)
		assert.Equal(t, 100.0, snapshot.TotalPrice)
		assert.Empty(t, items)
	})

	t.Run("Equipment Surcharges", func(t *testing.T) {
		selections := []models.EquipmentSelection{
			{EquipmentID: 7, Quantity: 2},
			{EquipmentID: 8, Quantity: 1},
		}

		snapshot, items, err := ComputePriceSnapshot(testTour(100), priceList, selections)
		require.NoError(t, err)
		assert.Equal(t, 70.0, snapshot.ExtraPrice)
		assert.Equal(t, 170.0, snapshot.TotalPrice)

		require.Len(t, items, 2)
		assert.Equal(t, int64(7), items[0].EquipmentID)
		assert.Equal(t, 2, items[0].Quantity)
		assert.Equal(t, 15.0, items[0].UnitPrice)
		assert.Equal(t, 40.0, items[1].UnitPrice)
	})

	t.Run("Zero Priced Item Is Still Offered", func(t *testing.T) {
		selections := []models.EquipmentSelection{
			{EquipmentID: 12, Quantity: 3},
		}

		snapshot, items, err := ComputePriceSnapshot(testTour(100), priceList, selections)
		require.NoError(t, err)
		assert.Equal(t, 0.0, snapshot.ExtraPrice)
		assert.Equal(t, 100.0, snapshot.TotalPrice)
		require.Len(t, items, 1)
	})

	t.Run("Unlisted Item Rejected", func(t *testing.T) {
		selections := []models.EquipmentSelection{
			{EquipmentID: 99, Quantity: 1},
		}

		_, items, err := ComputePriceSnapshot(testTour(100), priceList, selections)
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, IsEquipmentNotOffered(err))

		var notOffered *EquipmentNotOfferedError
		require.ErrorAs(t, err, &notOffered)
		assert.Equal(t, int64(42), notOffered.TourID)
		assert.Equal(t, int64(99), notOffered.EquipmentID)
	})
}
