package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/models"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
)

func TestMembershipEventFor(t *testing.T) {
	tests := []struct {
		name string
		from models.BookingStatus
		to   models.BookingStatus
		want string
	}{
		{"Confirmation", models.BookingStatusPending, models.BookingStatusConfirmed, notifier.EventMembershipConfirmed},
		{"Same Status Is A No-Op", models.BookingStatusConfirmed, models.BookingStatusConfirmed, ""},
		{"Pending To Pending Is A No-Op", models.BookingStatusPending, models.BookingStatusPending, ""},
		{"Cancellation", models.BookingStatusPending, models.BookingStatusCancelled, notifier.EventMembershipRemoved},
		{"Confirmed To Cancelled", models.BookingStatusConfirmed, models.BookingStatusCancelled, notifier.EventMembershipRemoved},
		{"Demotion From Confirmed", models.BookingStatusConfirmed, models.BookingStatusPending, notifier.EventMembershipRemoved},
		{"Cancelled Back To Pending", models.BookingStatusCancelled, models.BookingStatusPending, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, membershipEventFor(tt.from, tt.to))
		})
	}
}

func TestSetStatus(t *testing.T) {
	bookingID := uuid.New()
	userID := uuid.New()
	tourID := int64(42)

	newService := func(t *testing.T) (*BookingService, sqlmock.Sqlmock, *recordingNotifier) {
		db, mock := newServiceMockDB(t)
		rec := &recordingNotifier{}
		svc := NewBookingService(
			database.NewBookingRepository(db),
			database.NewTourRepository(db),
			database.NewCancellationRepository(db),
			rec,
			newQuietLogger(),
		)
		return svc, mock, rec
	}

	expectStatusUpdate := func(mock sqlmock.Sqlmock, previous models.BookingStatus, next models.BookingStatus) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM bookings WHERE id`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(previous)))
		mock.ExpectExec(`UPDATE bookings SET status`).
			WithArgs(bookingID, next).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(bookingID).
			WillReturnRows(bookingRows(bookingID, userID, tourID, next, models.PaymentStatusNone))
	}

	t.Run("Confirmation Announces Membership", func(t *testing.T) {
		svc, mock, rec := newService(t)
		expectStatusUpdate(mock, models.BookingStatusPending, models.BookingStatusConfirmed)

		booking, err := svc.SetStatus(context.Background(), bookingID, models.BookingStatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, booking.Status)

		require.Len(t, rec.events, 1)
		assert.Equal(t, notifier.EventMembershipConfirmed, rec.events[0])
		assert.Equal(t, tourID, rec.payloads[0].TourID)
		assert.Equal(t, userID.String(), rec.payloads[0].UserID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Same Status Announces Nothing", func(t *testing.T) {
		svc, mock, rec := newService(t)
		expectStatusUpdate(mock, models.BookingStatusConfirmed, models.BookingStatusConfirmed)

		_, err := svc.SetStatus(context.Background(), bookingID, models.BookingStatusConfirmed)
		require.NoError(t, err)
		assert.Empty(t, rec.events)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cancellation Announces Removal", func(t *testing.T) {
		svc, mock, rec := newService(t)
		expectStatusUpdate(mock, models.BookingStatusPending, models.BookingStatusCancelled)

		_, err := svc.SetStatus(context.Background(), bookingID, models.BookingStatusCancelled)
		require.NoError(t, err)

		require.Len(t, rec.events, 1)
		assert.Equal(t, notifier.EventMembershipRemoved, rec.events[0])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalid Status Rejected", func(t *testing.T) {
		svc, mock, rec := newService(t)

		_, err := svc.SetStatus(context.Background(), bookingID, models.BookingStatus("bogus"))
		assert.ErrorIs(t, err, database.ErrInvalidTransition)
		assert.Empty(t, rec.events)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
