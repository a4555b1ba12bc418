package scheduler

import (
	"context"
	"time"

	"armada/internal/domain"
	"armada/internal/latefee"
	"armada/internal/models"

	"github.com/rs/zerolog"
)

// Settlement is the part of the settlement service the jobs drive.
type Settlement interface {
	ListBookings(ctx context.Context, statuses ...string) ([]*models.Booking, error)
	Promote(ctx context.Context, actor models.ActorContext, bookingID int64) (*models.Booking, error)
	EnableFinish(ctx context.Context, actor models.ActorContext, bookingID int64) (*models.Booking, error)
}

// Jobs holds the date-driven transitions run as the System actor.
type Jobs struct {
	settlement Settlement
	clock      domain.Clock
	loc        *time.Location
	actor      models.ActorContext
	logger     *zerolog.Logger
}

func NewJobs(settlement Settlement, clock domain.Clock, loc *time.Location, logger *zerolog.Logger) *Jobs {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "scheduler_jobs").Logger()
	return &Jobs{
		settlement: settlement,
		clock:      clock,
		loc:        loc,
		actor:      models.SystemActor("scheduler"),
		logger:     &l,
	}
}

// PromoteDue moves confirmed bookings whose rental period has started to ongoing.
// A failing booking is logged and skipped. The returned error is only set when
// the candidate list could not be loaded.
func (j *Jobs) PromoteDue(ctx context.Context) (int, error) {
	bookings, err := j.settlement.ListBookings(ctx, models.StatusConfirmed)
	if err != nil {
		return 0, err
	}

	today := j.clock.Now()
	promoted := 0
	for _, b := range bookings {
		if latefee.DaysBetween(b.StartDate, today, j.loc) < 0 || latefee.DaysBetween(today, b.EndDate, j.loc) < 0 {
			continue
		}
		if _, err := j.settlement.Promote(ctx, j.actor, b.ID); err != nil {
			j.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("promote failed")
			continue
		}
		promoted++
	}
	return promoted, nil
}

// EnableDueFinish opens the finish gate for bookings that reached their end date.
func (j *Jobs) EnableDueFinish(ctx context.Context) (int, error) {
	bookings, err := j.settlement.ListBookings(ctx, models.StatusConfirmed, models.StatusOngoing)
	if err != nil {
		return 0, err
	}

	today := j.clock.Now()
	enabled := 0
	for _, b := range bookings {
		if b.FinishEnabled || latefee.DaysBetween(b.EndDate, today, j.loc) < 0 {
			continue
		}
		if _, err := j.settlement.EnableFinish(ctx, j.actor, b.ID); err != nil {
			j.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("enable finish failed")
			continue
		}
		enabled++
	}
	return enabled, nil
}
