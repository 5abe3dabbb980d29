package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/services"
)

// AvailabilityHandler exposes tour capacity and equipment availability
type AvailabilityHandler struct {
	availabilityService *services.AvailabilityService
	logger              *logrus.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(availabilityService *services.AvailabilityService, logger *logrus.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availabilityService: availabilityService,
		logger:              logger,
	}
}

// GetTourAvailability reports spots left and per-equipment availability
// @Summary Tour availability
// @Description Remaining capacity and equipment availability over the tour's date window
// @Tags Tours
// @Produce json
// @Param id path int true "Tour ID"
// @Success 200 {object} models.TourAvailability
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Router /api/v1/tours/{id}/availability [get]
func (h *AvailabilityHandler) GetTourAvailability(c *gin.Context) {
	tourID, ok := parseTourIDParam(c, "id")
	if !ok {
		return
	}

	availability, err := h.availabilityService.TourAvailability(tourID)
	if err != nil {
		if err == database.ErrTourNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tour not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to compute tour availability")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute availability"})
		return
	}

	c.JSON(http.StatusOK, availability)
}

func parseTourIDParam(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour ID"})
		return 0, false
	}
	return id, true
}

func parseTourID(c *gin.Context) (int64, bool) {
	return parseTourIDParam(c, "tourId")
}
