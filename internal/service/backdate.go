package service

import (
	"context"
	"strings"
	"time"

	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/latefee"
	"armada/internal/lifecycle"
	"armada/internal/models"
)

const backdateLayout = "2006-01-02"

// finishBackdated completes a booking whose rental was entered after the fact.
// The return date must be the end date; no fee is charged.
func (s *SettlementService) finishBackdated(ctx context.Context, actor models.ActorContext, b *models.Booking, actualReturnDate *time.Time, forced bool) (*models.Booking, error) {
	if actualReturnDate == nil {
		err := domain.ValidationError{Field: "actual_return_date", Msg: "required for backdated bookings"}
		return nil, s.reject(models.ActionFinish, b, actor, err)
	}
	if !latefee.SameDay(*actualReturnDate, b.EndDate, s.loc) {
		err := domain.ValidationError{
			Field: "actual_return_date",
			Msg:   "must equal end date " + b.EndDate.In(s.loc).Format(backdateLayout),
		}
		return nil, s.reject(models.ActionFinish, b, actor, err)
	}

	returned := b.EndDate
	lateDays := 0
	var fee int64

	st := &settlement{action: models.ActionFinish, actor: actor, before: b, note: "backdated"}
	if forced {
		st.note = "backdated, forced from " + b.Status
	}
	st.update = models.BookingUpdate{
		Status:           models.StatusCompleted,
		ActualReturnDate: &returned,
		LateDays:         &lateDays,
		LateFee:          &fee,
	}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}

	s.setAvailability(ctx, st, models.AvailabilityAvailable)
	return s.finalize(ctx, st, updated, events.EventBookingCompleted)
}

// EditBackdate corrects the recorded return date of a backdated booking.
// The previous date and the editor are kept on the booking and in the audit trail.
func (s *SettlementService) EditBackdate(ctx context.Context, actor models.ActorContext, bookingID int64, actualReturnDate time.Time, note string) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionBackdateEdit, bookingID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanEditBackdate(b, actor, s.loc); err != nil {
		return nil, s.reject(models.ActionBackdateEdit, b, actor, err)
	}

	note = strings.TrimSpace(note)
	if note == "" {
		err := domain.ValidationError{Field: "note", Msg: "a note is required to edit a backdated return"}
		return nil, s.reject(models.ActionBackdateEdit, b, actor, err)
	}
	if actualReturnDate.IsZero() {
		err := domain.ValidationError{Field: "actual_return_date", Msg: "required"}
		return nil, s.reject(models.ActionBackdateEdit, b, actor, err)
	}
	if latefee.DaysBetween(b.StartDate, actualReturnDate, s.loc) < 0 {
		err := domain.ValidationError{Field: "actual_return_date", Msg: "cannot be before the start date"}
		return nil, s.reject(models.ActionBackdateEdit, b, actor, err)
	}

	newDate := latefee.Midnight(actualReturnDate, s.loc)
	st := &settlement{action: models.ActionBackdateEdit, actor: actor, before: b, note: note}
	if b.ActualReturnDate != nil {
		st.previous = b.ActualReturnDate.In(s.loc).Format(backdateLayout)
	}
	st.update = models.BookingUpdate{
		ActualReturnDate: &newDate,
		Backdate: &models.BackdateEdit{
			Note:           note,
			PreviousReturn: b.ActualReturnDate,
			EditedBy:       actor.Name,
		},
	}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, st, updated, events.EventBackdateEdited)
}
