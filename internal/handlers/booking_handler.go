package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/middleware"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/services"
)

// BookingHandler handles participant booking operations
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// CreateBooking creates a new tour booking
// @Summary Create a new tour booking
// @Description Book a tour with optional equipment rental
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.Booking "Booking created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 409 {object} map[string]interface{} "Capacity or inventory exhausted"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.bookingService.Create(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListMyBookings returns the caller's bookings with tour details
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Success 200 {array} models.BookingSummary
// @Security BearerAuth
// @Router /api/v1/bookings/my [get]
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookings, err := h.bookingService.ListMine(userCtx.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// TourBookingStatus reports whether the caller holds a booking on a tour
// @Summary My booking status for a tour
// @Tags Bookings
// @Produce json
// @Param tourId path int true "Tour ID"
// @Success 200 {object} services.TourBookingStatus
// @Security BearerAuth
// @Router /api/v1/bookings/tour/{tourId}/status [get]
func (h *BookingHandler) TourBookingStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	tourID, ok := parseTourID(c)
	if !ok {
		return
	}

	status, err := h.bookingService.StatusForTour(userCtx.UserID, tourID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get booking status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get booking status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// UpdateEquipment replaces the equipment set on the caller's booking
// @Summary Update booking equipment
// @Description Replace the equipment selection on an unpaid, uncancelled booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.UpdateEquipmentRequest true "New equipment selection"
// @Success 200 {object} models.Booking
// @Failure 409 {object} map[string]interface{} "Booking locked or inventory exhausted"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/equipment [put]
func (h *BookingHandler) UpdateEquipment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req models.UpdateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.bookingService.UpdateEquipment(c.Request.Context(), bookingID, userCtx.UserID, &req)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetBookingEquipment lists the equipment reserved on the caller's booking
// @Summary Get booking equipment
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {array} models.BookingEquipment
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/equipment [get]
func (h *BookingHandler) GetBookingEquipment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	items, err := h.bookingService.GetEquipment(bookingID, userCtx.UserID)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"equipment": items, "count": len(items)})
}

// DeleteBooking withdraws the caller's own pending booking
// @Summary Withdraw my booking
// @Description Withdraw a pending booking. Confirmed bookings require a cancellation request.
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Booking is confirmed"
// @Security BearerAuth
// @Router /api/v1/bookings/{id} [delete]
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	if err := h.bookingService.SelfCancel(c.Request.Context(), bookingID, userCtx.UserID); err != nil {
		if err == database.ErrInvalidTransition {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "booking_confirmed",
				"message": "Confirmed bookings cannot be withdrawn directly. Submit a cancellation request instead.",
			})
			return
		}
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking withdrawn successfully"})
}

// respondBookingError maps service errors to HTTP responses.
func (h *BookingHandler) respondBookingError(c *gin.Context, err error) {
	switch {
	case err == database.ErrTourNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Tour not found"})
	case err == database.ErrBookingNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case err == database.ErrDuplicateBooking:
		c.JSON(http.StatusConflict, gin.H{"error": "You already have an active booking for this tour"})
	case err == database.ErrCapacityExceeded:
		c.JSON(http.StatusConflict, gin.H{"error": "This tour is fully booked"})
	case err == database.ErrInvalidTransition:
		c.JSON(http.StatusConflict, gin.H{"error": "This booking can no longer be modified"})
	case database.IsEquipmentUnavailable(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case services.IsEquipmentNotOffered(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Booking operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return uuid.Nil, false
	}
	return id, true
}
