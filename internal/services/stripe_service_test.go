package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailhead/tour-booking-backend/internal/config"
)

func newTestStripeService(baseURL string) *StripeService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	svc := NewStripeService(&config.PaymentConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "http://localhost/success",
		CancelURL:     "http://localhost/cancel",
		Currency:      "huf",
		Timeout:       5 * time.Second,
	}, logger)
	if baseURL != "" {
		svc.baseURL = baseURL
	}
	return svc
}

func signPayload(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "payment", r.PostForm.Get("mode"))
			assert.Equal(t, "huf", r.PostForm.Get("line_items[0][price_data][currency]"))
			// 130.50 major units becomes 13050 minor units.
			assert.Equal(t, "13050", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
			assert.Equal(t, "booking-1", r.PostForm.Get("metadata[booking_id]"))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"cs_test_1","url":"https://checkout.test/s/1","payment_status":"unpaid","status":"open","currency":"huf"}`)
		}))
		defer server.Close()

		svc := newTestStripeService(server.URL)
		session, err := svc.CreateCheckoutSession(&CheckoutParams{
			BookingID: "booking-1",
			TourID:    "42",
			UserID:    "user-1",
			TourTitle: "Glacier Hike",
			Amount:    130.50,
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_test_1", session.ID)
		assert.Equal(t, "https://checkout.test/s/1", session.URL)
	})

	t.Run("Gateway Error Surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"parameter_missing","message":"Missing required param."}}`)
		}))
		defer server.Close()

		svc := newTestStripeService(server.URL)
		_, err := svc.CreateCheckoutSession(&CheckoutParams{
			BookingID: "booking-1",
			TourTitle: "Glacier Hike",
			Amount:    100,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Missing required param")
	})

	t.Run("Not Configured", func(t *testing.T) {
		svc := newTestStripeService("")
		svc.config.SecretKey = ""

		_, err := svc.CreateCheckoutSession(&CheckoutParams{Amount: 100})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})
}

func TestRetrieveSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","payment_status":"paid","status":"complete","metadata":{"booking_id":"booking-1"}}`)
	}))
	defer server.Close()

	svc := newTestStripeService(server.URL)
	session, err := svc.RetrieveSession("cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "paid", session.PaymentStatus)
	assert.Equal(t, "booking-1", session.Metadata["booking_id"])
}

func TestConstructEvent(t *testing.T) {
	svc := newTestStripeService("")
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","payment_status":"paid"}}}`)

	t.Run("Valid Signature", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload("whsec_test", ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		event, err := svc.ConstructEvent(payload, header)
		require.NoError(t, err)
		assert.Equal(t, "checkout.session.completed", event.Type)
	})

	t.Run("Multiple Signatures One Valid", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload("whsec_test", ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "deadbeef", sig)

		_, err := svc.ConstructEvent(payload, header)
		assert.NoError(t, err)
	})

	t.Run("Wrong Secret Rejected", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload("whsec_other", ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		_, err := svc.ConstructEvent(payload, header)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signature verification failed")
	})

	t.Run("Stale Timestamp Rejected", func(t *testing.T) {
		ts := time.Now().Add(-10 * time.Minute).Unix()
		sig := signPayload("whsec_test", ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		_, err := svc.ConstructEvent(payload, header)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tolerance")
	})

	t.Run("Tampered Payload Rejected", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload("whsec_test", ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		tampered := []byte(`{"id":"evt_1","type":"checkout.session.expired","data":{"object":{}}}`)
		_, err := svc.ConstructEvent(tampered, header)
		assert.Error(t, err)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		_, err := svc.ConstructEvent(payload, "not-a-signature")
		assert.Error(t, err)
	})
}
