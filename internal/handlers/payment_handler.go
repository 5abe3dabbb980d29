package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/middleware"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/services"
)

// maxWebhookBody caps webhook payload reads.
const maxWebhookBody = 64 * 1024

// PaymentHandler handles checkout and settlement endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreateCheckoutSession opens a hosted checkout session for a booking
// @Summary Create a checkout session
// @Description Open a hosted payment page for a confirmed, unpaid booking
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.CreateCheckoutRequest true "Booking to pay for"
// @Success 201 {object} services.CheckoutResult
// @Failure 409 {object} map[string]interface{} "Booking not payable"
// @Failure 502 {object} map[string]interface{} "Payment gateway error"
// @Security BearerAuth
// @Router /api/v1/payments/checkout-session [post]
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	result, err := h.paymentService.InitiateCheckout(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		switch err {
		case database.ErrBookingNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		case database.ErrInvalidTransition:
			c.JSON(http.StatusConflict, gin.H{"error": "Only confirmed bookings can be paid"})
		case database.ErrAlreadyProcessed:
			c.JSON(http.StatusConflict, gin.H{"error": "Booking is already paid"})
		default:
			h.logger.WithError(err).Error("Failed to create checkout session")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ConfirmPayment settles a payment from the client's post-redirect poll
// @Summary Confirm a payment
// @Description Re-reads the session from the gateway and settles it if paid
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.ConfirmPaymentRequest true "Session to confirm"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/payments/confirm [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.paymentService.ConfirmFromClient(c.Request.Context(), req.SessionID, userCtx.UserID)
	if err != nil {
		if err == database.ErrPaymentNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment session not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to confirm payment")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to confirm payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": result.BookingID,
		"status":     result.Status,
	})
}

// HandleWebhook receives settlement events from the payment gateway.
// The raw body is needed for signature verification, so this endpoint
// never uses JSON binding.
// @Summary Payment gateway webhook
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/payments/webhook [post]
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature header"})
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, sigHeader); err != nil {
		h.logger.WithError(err).Warn("Webhook processing failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetPaymentStatus reports the payment state of the caller's booking
// @Summary Get booking payment status
// @Tags Payments
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/payments/booking/{id} [get]
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	booking, err := h.paymentService.StatusForBooking(bookingID, userCtx.UserID)
	if err != nil {
		if err == database.ErrBookingNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get payment status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get payment status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id":     booking.ID,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
		"total_price":    booking.TotalPrice,
		"paid_at":        booking.PaidAt,
	})
}
