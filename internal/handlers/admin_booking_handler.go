package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/services"
)

// AdminBookingHandler handles admin booking management operations
type AdminBookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewAdminBookingHandler creates a new AdminBookingHandler
func NewAdminBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *AdminBookingHandler {
	return &AdminBookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// ListBookings returns all bookings
// @Summary List all bookings (admin)
// @Tags Admin
// @Produce json
// @Success 200 {array} models.BookingAdminRow
// @Security BearerAuth
// @Router /api/v1/admin/bookings [get]
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListAll()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// ListTourBookings returns a tour's bookings
// @Summary List bookings for a tour (admin)
// @Tags Admin
// @Produce json
// @Param tourId path int true "Tour ID"
// @Success 200 {array} models.BookingAdminRow
// @Security BearerAuth
// @Router /api/v1/admin/bookings/tour/{tourId} [get]
func (h *AdminBookingHandler) ListTourBookings(c *gin.Context) {
	tourID, ok := parseTourID(c)
	if !ok {
		return
	}

	bookings, err := h.bookingService.ListByTour(tourID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list tour bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tour bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// ListUserBookings returns one user's bookings
// @Summary List bookings for a user (admin)
// @Tags Admin
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} models.BookingSummary
// @Security BearerAuth
// @Router /api/v1/admin/bookings/user/{userId} [get]
func (h *AdminBookingHandler) ListUserBookings(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	bookings, err := h.bookingService.ListByUserID(userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list user bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list user bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// UpdateBookingStatus transitions a booking's lifecycle status
// @Summary Update booking status (admin)
// @Description Confirm or cancel a booking
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.UpdateBookingStatusRequest true "New status"
// @Success 200 {object} models.Booking
// @Failure 409 {object} map[string]interface{} "Invalid transition"
// @Security BearerAuth
// @Router /api/v1/admin/bookings/{id}/status [put]
func (h *AdminBookingHandler) UpdateBookingStatus(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.bookingService.SetStatus(c.Request.Context(), bookingID, req.Status)
	if err != nil {
		switch err {
		case database.ErrBookingNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		case database.ErrInvalidTransition:
			c.JSON(http.StatusConflict, gin.H{"error": "Invalid status transition"})
		default:
			h.logger.WithError(err).Error("Failed to update booking status")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking status"})
		}
		return
	}

	c.JSON(http.StatusOK, booking)
}

// DeleteBooking removes a booking and its reservations
// @Summary Delete a booking (admin)
// @Tags Admin
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/admin/bookings/{id} [delete]
func (h *AdminBookingHandler) DeleteBooking(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	if err := h.bookingService.AdminDelete(c.Request.Context(), bookingID); err != nil {
		if err == database.ErrBookingNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete booking")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete booking"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted successfully"})
}
