package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
)

func newPaymentService(t *testing.T, stripe *StripeService) (*PaymentService, sqlmock.Sqlmock, *recordingNotifier) {
	db, mock := newServiceMockDB(t)
	rec := &recordingNotifier{}
	svc := NewPaymentService(
		database.NewPaymentRepository(db),
		database.NewBookingRepository(db),
		database.NewTourRepository(db),
		stripe,
		rec,
		newQuietLogger(),
	)
	return svc, mock, rec
}

func paymentRecordRows(sessionID string, bookingID, userID uuid.UUID, tourID int64, status models.PaymentIntentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"stripe_session_id", "booking_id", "user_id", "tour_id", "amount", "currency",
		"status", "created_at", "updated_at",
	}).AddRow(sessionID, bookingID, userID, tourID, 130.0, "huf", status, time.Now(), time.Now())
}

func TestConfirmFromClient(t *testing.T) {
	sessionID := "cs_test_1"
	bookingID := uuid.New()
	userID := uuid.New()
	tourID := int64(42)

	sessionServer := func(t *testing.T, paymentStatus, status string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/checkout/sessions/"+sessionID, r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id":%q,"payment_status":%q,"status":%q,"currency":"huf"}`,
				sessionID, paymentStatus, status)
		}))
	}

	t.Run("Not The Session Owner", func(t *testing.T) {
		svc, mock, rec := newPaymentService(t, newTestStripeService(""))

		mock.ExpectQuery(`SELECT (.+) FROM booking_payments`).
			WithArgs(sessionID).
			WillReturnRows(paymentRecordRows(sessionID, bookingID, uuid.New(), tourID, models.PaymentIntentStatusPending))

		_, err := svc.ConfirmFromClient(context.Background(), sessionID, userID)
		assert.ErrorIs(t, err, database.ErrPaymentNotFound)
		assert.Empty(t, rec.events)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Open Session Left Unsettled", func(t *testing.T) {
		server := sessionServer(t, "unpaid", "open")
		defer server.Close()
		svc, mock, rec := newPaymentService(t, newTestStripeService(server.URL))

		mock.ExpectQuery(`SELECT (.+) FROM booking_payments`).
			WithArgs(sessionID).
			WillReturnRows(paymentRecordRows(sessionID, bookingID, userID, tourID, models.PaymentIntentStatusPending))

		result, err := svc.ConfirmFromClient(context.Background(), sessionID, userID)
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, models.PaymentIntentStatusPending, result.Status)
		assert.Empty(t, rec.events)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Paid Session Settles And Announces", func(t *testing.T) {
		server := sessionServer(t, "paid", "complete")
		defer server.Close()
		svc, mock, rec := newPaymentService(t, newTestStripeService(server.URL))

		mock.ExpectQuery(`SELECT (.+) FROM booking_payments`).
			WithArgs(sessionID).
			WillReturnRows(paymentRecordRows(sessionID, bookingID, userID, tourID, models.PaymentIntentStatusPending))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM booking_payments`).
			WithArgs(sessionID).
			WillReturnRows(paymentRecordRows(sessionID, bookingID, userID, tourID, models.PaymentIntentStatusPending))
		mock.ExpectExec(`UPDATE booking_payments`).
			WithArgs(sessionID, models.PaymentIntentStatusPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := svc.ConfirmFromClient(context.Background(), sessionID, userID)
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, models.PaymentIntentStatusPaid, result.Status)

		require.Len(t, rec.events, 1)
		assert.Equal(t, notifier.EventMembershipConfirmed, rec.events[0])
		assert.Equal(t, tourID, rec.payloads[0].TourID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHandleWebhook(t *testing.T) {
	signedHeader := func(payload []byte) string {
		ts := time.Now().Unix()
		return fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_test", ts, payload))
	}

	t.Run("Completed But Not Yet Paid Awaits Async Result", func(t *testing.T) {
		svc, mock, rec := newPaymentService(t, newTestStripeService(""))
		payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","payment_status":"unpaid"}}}`)

		err := svc.HandleWebhook(context.Background(), payload, signedHeader(payload))
		require.NoError(t, err)
		assert.Empty(t, rec.events)

		// Nothing was settled.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Session Acknowledged", func(t *testing.T) {
		svc, mock, rec := newPaymentService(t, newTestStripeService(""))
		payload := []byte(`{"id":"evt_2","type":"checkout.session.expired","data":{"object":{"id":"cs_unknown"}}}`)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM booking_payments`).
			WithArgs("cs_unknown").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := svc.HandleWebhook(context.Background(), payload, signedHeader(payload))
		require.NoError(t, err)
		assert.Empty(t, rec.events)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Event Type Ignored", func(t *testing.T) {
		svc, mock, rec := newPaymentService(t, newTestStripeService(""))
		payload := []byte(`{"id":"evt_3","type":"invoice.paid","data":{"object":{}}}`)

		err := svc.HandleWebhook(context.Background(), payload, signedHeader(payload))
		require.NoError(t, err)
		assert.Empty(t, rec.events)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Bad Signature Rejected", func(t *testing.T) {
		svc, mock, _ := newPaymentService(t, newTestStripeService(""))
		payload := []byte(`{"id":"evt_4","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1"}}}`)

		err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
