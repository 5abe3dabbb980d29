package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
)

// recordingNotifier captures published membership events so tests can assert
// on exactly what a service announced.
type recordingNotifier struct {
	events   []string
	payloads []notifier.MembershipEvent
}

func (r *recordingNotifier) PublishMembership(_ context.Context, event string, payload notifier.MembershipEvent) {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
}

func (r *recordingNotifier) Close() error { return nil }

// newServiceMockDB wraps a sqlmock connection in the sqlx-backed DB the
// repositories expect, so service tests can drive real repository code.
func newServiceMockDB(t *testing.T) (database.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	return &database.PostgresDB{DB: sqlx.NewDb(mockDb, "sqlmock")}, mock
}

func newQuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func bookingRows(bookingID, userID uuid.UUID, tourID int64, status models.BookingStatus, payment models.PaymentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "tour_id", "status", "payment_status",
		"extra_price", "total_price", "refund_amount", "refund_status", "booked_at", "paid_at",
	}).AddRow(bookingID, userID, tourID, status, payment, 30.0, 130.0, 0.0, "none", time.Now(), nil)
}
