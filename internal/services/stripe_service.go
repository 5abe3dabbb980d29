package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/config"
)

const stripeAPIBase = "https://api.stripe.com"

// webhookTolerance bounds how stale a signed webhook timestamp may be.
const webhookTolerance = 5 * time.Minute

// StripeService handles payment gateway integration with Stripe Checkout.
// Sessions are created server-side; the client is redirected to the hosted
// payment page and settlement arrives via webhook or client confirmation.
type StripeService struct {
	config  *config.PaymentConfig
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
}

// CheckoutSession is the subset of Stripe's Checkout Session object we use.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"` // "paid", "unpaid", "no_payment_required"
	Status        string            `json:"status"`         // "open", "complete", "expired"
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// WebhookEvent is a verified Stripe event envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewStripeService creates a new Stripe payment service
func NewStripeService(cfg *config.PaymentConfig, logger *logrus.Logger) *StripeService {
	return &StripeService{
		config:  cfg,
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: stripeAPIBase,
	}
}

// IsConfigured returns true if payment gateway is properly configured
func (s *StripeService) IsConfigured() bool {
	return s.config.SecretKey != ""
}

// CheckoutParams describes the booking being paid for.
type CheckoutParams struct {
	BookingID   string
	TourID      string
	UserID      string
	TourTitle   string
	Amount      float64 // in major currency units
	Description string
}

// CreateCheckoutSession opens a hosted Stripe Checkout session for a booking.
// The booking, tour and user IDs travel in session metadata so the webhook
// can route settlement without extra lookups.
func (s *StripeService) CreateCheckoutSession(params *CheckoutParams) (*CheckoutSession, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing secret key")
	}

	unitAmount := int64(math.Round(params.Amount * 100))

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", s.config.SuccessURL)
	form.Set("cancel_url", s.config.CancelURL)
	form.Set("client_reference_id", params.BookingID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", s.config.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(unitAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.TourTitle)
	if params.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", params.Description)
	}
	form.Set("metadata[booking_id]", params.BookingID)
	form.Set("metadata[tour_id]", params.TourID)
	form.Set("metadata[user_id]", params.UserID)

	s.logger.WithFields(logrus.Fields{
		"booking_id":  params.BookingID,
		"unit_amount": unitAmount,
		"currency":    s.config.Currency,
	}).Info("Creating Stripe checkout session")

	var session CheckoutSession
	if err := s.do("POST", "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("checkout session created without payment page URL")
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
	}).Info("Stripe checkout session created")

	return &session, nil
}

// RetrieveSession fetches the current state of a checkout session. Used by
// the client-side confirmation path as a fallback when the webhook is late.
func (s *StripeService) RetrieveSession(sessionID string) (*CheckoutSession, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing secret key")
	}

	var session CheckoutSession
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := s.do("GET", path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ConstructEvent verifies a webhook payload against the Stripe-Signature
// header and returns the parsed event. The signature scheme is
// HMAC-SHA256 over "<timestamp>.<payload>" with the endpoint secret.
func (s *StripeService) ConstructEvent(payload []byte, sigHeader string) (*WebhookEvent, error) {
	if s.config.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret not configured")
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	if time.Since(time.Unix(timestamp, 0)) > webhookTolerance {
		return nil, fmt.Errorf("webhook timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("webhook signature verification failed")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook missing event type")
	}
	return &event, nil
}

// parseSignatureHeader splits "t=1700000000,v1=abc,v1=def" into its parts.
func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64
	var signatures []string

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid signature timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("malformed signature header")
	}
	return timestamp, signatures, nil
}

// do performs one authenticated call against the Stripe API and decodes the
// result into out. Stripe errors come back as a typed JSON envelope.
func (s *StripeService) do(method, path string, form url.Values, out interface{}) error {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, s.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Stripe endpoint")
		return fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr stripeErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			s.logger.WithFields(logrus.Fields{
				"status_code": resp.StatusCode,
				"error_type":  apiErr.Error.Type,
				"error_code":  apiErr.Error.Code,
			}).Error("Stripe API error")
			return fmt.Errorf("payment gateway error: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
