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

// CancellationHandler handles the cancellation request workflow
type CancellationHandler struct {
	cancellationService *services.CancellationService
	logger              *logrus.Logger
}

// NewCancellationHandler creates a new CancellationHandler
func NewCancellationHandler(cancellationService *services.CancellationService, logger *logrus.Logger) *CancellationHandler {
	return &CancellationHandler{
		cancellationService: cancellationService,
		logger:              logger,
	}
}

// CreateCancelRequest files a cancellation request against a confirmed booking
// @Summary Request cancellation of a confirmed booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.CreateCancelRequest true "Cancellation reason"
// @Success 201 {object} models.CancellationRequest
// @Failure 409 {object} map[string]interface{} "Booking not confirmed or request already pending"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/cancel-request [post]
func (h *CancellationHandler) CreateCancelRequest(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req models.CreateCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.cancellationService.Request(c.Request.Context(), bookingID, userCtx.UserID, &req)
	if err != nil {
		switch err {
		case database.ErrBookingNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		case database.ErrInvalidTransition:
			c.JSON(http.StatusConflict, gin.H{"error": "Only confirmed bookings can request cancellation"})
		case database.ErrRequestPending:
			c.JSON(http.StatusConflict, gin.H{"error": "A cancellation request is already pending for this booking"})
		default:
			h.logger.WithError(err).Error("Failed to create cancellation request")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create cancellation request"})
		}
		return
	}

	c.JSON(http.StatusCreated, request)
}

// ListCancelRequests returns all cancellation requests
// @Summary List cancellation requests (admin)
// @Tags Admin
// @Produce json
// @Success 200 {array} models.CancelRequestDetail
// @Security BearerAuth
// @Router /api/v1/admin/cancel-requests [get]
func (h *CancellationHandler) ListCancelRequests(c *gin.Context) {
	requests, err := h.cancellationService.ListAll()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list cancellation requests")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cancellation requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests, "count": len(requests)})
}

// ResolveCancelRequest approves or rejects a pending cancellation request
// @Summary Resolve a cancellation request (admin)
// @Description Approve (cancels the booking) or reject a pending request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body models.ResolveCancelRequest true "Resolution"
// @Success 200 {object} models.CancellationRequest
// @Failure 409 {object} map[string]interface{} "Request already processed"
// @Security BearerAuth
// @Router /api/v1/admin/cancel-requests/{id} [put]
func (h *CancellationHandler) ResolveCancelRequest(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	var req models.ResolveCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.cancellationService.Resolve(c.Request.Context(), requestID, userCtx.UserID, &req)
	if err != nil {
		switch err {
		case database.ErrCancelRequestNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Cancellation request not found"})
		case database.ErrAlreadyProcessed:
			c.JSON(http.StatusConflict, gin.H{"error": "Cancellation request has already been processed"})
		default:
			h.logger.WithError(err).Error("Failed to resolve cancellation request")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve cancellation request"})
		}
		return
	}

	c.JSON(http.StatusOK, request)
}
