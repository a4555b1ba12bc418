package database

import (
	"context"
	"sync"
	"testing"

	"armada/internal/domain"
	"armada/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := seedBooking(t, db, func(b *models.Booking) { b.IsBackdated = true })
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)
	assert.Contains(t, b.Code, "BK-")

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.PaymentUnpaid, got.PaymentStatus)
	assert.True(t, got.IsBackdated)
	assert.False(t, got.FinishEnabled)
	assert.True(t, got.StartDate.Equal(day(2024, 1, 5)))
	assert.True(t, got.EndDate.Equal(day(2024, 1, 10)))
	assert.Nil(t, got.ActualReturnDate)
	assert.Equal(t, int64(250_000), got.AmountPaid)
}

func TestGetBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBooking(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, domain.IsNotFound(err))
}

func TestOptimisticLocking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := seedBooking(t, db, nil)

	// Successful update
	err := db.UpdateBookingWithVersion(ctx, booking.ID, booking.Version, models.BookingUpdate{Status: models.StatusConfirmed})
	require.NoError(t, err)

	// Failed update with old version
	err = db.UpdateBookingWithVersion(ctx, booking.ID, booking.Version, models.BookingUpdate{Status: models.StatusCancelled})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	updated, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	err = db.UpdateBookingWithVersion(ctx, updated.ID, updated.Version, models.BookingUpdate{Status: models.StatusCancelled})
	require.NoError(t, err)
}

func TestUpdateBookingWithVersion_Fields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := seedBooking(t, db, func(b *models.Booking) {
		b.Status = models.StatusOngoing
		b.AdminNote = "keep me"
	})

	returned := day(2024, 1, 13)
	lateDays, lateFee := 3, int64(300_000)
	err := db.UpdateBookingWithVersion(ctx, b.ID, b.Version, models.BookingUpdate{
		Status:           models.StatusCompleted,
		ActualReturnDate: &returned,
		LateDays:         &lateDays,
		LateFee:          &lateFee,
	})
	require.NoError(t, err)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.ActualReturnDate)
	assert.True(t, got.ActualReturnDate.Equal(returned))
	assert.Equal(t, 3, got.LateDays)
	assert.Equal(t, int64(300_000), got.LateFee)
	assert.Equal(t, "keep me", got.AdminNote, "nil fields are left untouched")

	edited := day(2024, 1, 10)
	err = db.UpdateBookingWithVersion(ctx, b.ID, got.Version, models.BookingUpdate{
		ActualReturnDate: &edited,
		Backdate: &models.BackdateEdit{
			Note:           "typo in return date",
			PreviousReturn: got.ActualReturnDate,
			EditedBy:       "anna",
		},
	})
	require.NoError(t, err)

	got, err = db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "typo in return date", got.BackdateNote)
	assert.Equal(t, "anna", got.BackdateEditedBy)
	require.NotNil(t, got.BackdatePreviousReturn)
	assert.True(t, got.BackdatePreviousReturn.Equal(returned))
	assert.True(t, got.ActualReturnDate.Equal(edited))
	assert.Equal(t, int64(3), got.Version)
}

func TestUpdateBookingWithVersion_FinishEnabled(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	b := seedBooking(t, db, func(b *models.Booking) { b.Status = models.StatusOngoing })

	enabled := true
	require.NoError(t, db.UpdateBookingWithVersion(ctx, b.ID, b.Version, models.BookingUpdate{FinishEnabled: &enabled}))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.FinishEnabled)
	assert.Equal(t, models.StatusOngoing, got.Status)
}

func TestUpdateBookingWithVersion_ConcurrentWriters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	b := seedBooking(t, db, nil)

	const writers = 10
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- db.UpdateBookingWithVersion(ctx, b.ID, b.Version, models.BookingUpdate{Status: models.StatusConfirmed})
		}()
	}
	wg.Wait()
	close(results)

	success, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case assert.ErrorIs(t, err, domain.ErrConcurrentModification):
			conflicts++
		}
	}
	assert.Equal(t, 1, success, "only one writer may win the version")
	assert.Equal(t, writers-1, conflicts)
}

func TestListBookingsByStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedBooking(t, db, func(b *models.Booking) { b.Status = models.StatusConfirmed })
	seedBooking(t, db, func(b *models.Booking) { b.Status = models.StatusOngoing })
	seedBooking(t, db, func(b *models.Booking) { b.Status = models.StatusCancelled })

	confirmed, err := db.ListBookingsByStatus(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	active, err := db.ListBookingsByStatus(ctx, models.StatusConfirmed, models.StatusOngoing)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := db.ListBookingsByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
