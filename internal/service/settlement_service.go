package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/latefee"
	"armada/internal/lifecycle"
	"armada/internal/metrics"
	"armada/internal/models"

	"github.com/rs/zerolog"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomePartial  = "partial"
	outcomeError    = "error"
)

// SettlementService runs booking transitions together with their side effects:
// late fee, ledger movement, vehicle availability and the audit row.
type SettlementService struct {
	bookings domain.BookingRepository
	vehicles domain.VehicleRegistry
	ledger   domain.Ledger
	audit    domain.AuditLog
	eventBus domain.EventPublisher
	clock    domain.Clock
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewSettlementService(
	bookings domain.BookingRepository,
	vehicles domain.VehicleRegistry,
	ledger domain.Ledger,
	audit domain.AuditLog,
	eventBus domain.EventPublisher,
	clock domain.Clock,
	loc *time.Location,
	logger *zerolog.Logger,
) *SettlementService {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "settlement").Logger()
	return &SettlementService{
		bookings: bookings,
		vehicles: vehicles,
		ledger:   ledger,
		audit:    audit,
		eventBus: eventBus,
		clock:    clock,
		loc:      loc,
		logger:   &l,
	}
}

// settlement describes one action in flight: the booking before the write,
// the update to apply and what it moved.
type settlement struct {
	action   string
	actor    models.ActorContext
	before   *models.Booking
	update   models.BookingUpdate
	amount   int64
	note     string
	previous string
	failures []domain.StepFailure
}

func (s *SettlementService) Confirm(ctx context.Context, actor models.ActorContext, bookingID int64, note string) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionConfirm, bookingID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanConfirm(b, actor); err != nil {
		return nil, s.reject(models.ActionConfirm, b, actor, err)
	}

	st := &settlement{action: models.ActionConfirm, actor: actor, before: b, note: strings.TrimSpace(note)}
	st.update = models.BookingUpdate{Status: models.StatusConfirmed}
	if st.note != "" {
		st.update.AdminNote = &st.note
	}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}

	s.setAvailability(ctx, st, models.AvailabilityRented)
	return s.finalize(ctx, st, updated, events.EventBookingConfirmed)
}

// Finish completes a booking. Backdated bookings go through finishBackdated and
// never touch the ledger; all others are charged for every calendar day past
// the end date.
func (s *SettlementService) Finish(ctx context.Context, actor models.ActorContext, bookingID int64, actualReturnDate *time.Time) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionFinish, bookingID)
	if err != nil {
		return nil, err
	}
	forced, err := lifecycle.CanFinish(b, actor)
	if err != nil {
		return nil, s.reject(models.ActionFinish, b, actor, err)
	}

	if b.IsBackdated {
		return s.finishBackdated(ctx, actor, b, actualReturnDate, forced)
	}
	if actualReturnDate != nil {
		err := domain.ValidationError{Field: "actual_return_date", Msg: "only accepted for backdated bookings"}
		return nil, s.reject(models.ActionFinish, b, actor, err)
	}

	now := s.clock.Now()
	returned := now
	if b.FinishEnabled && latefee.DaysBetween(now, b.EndDate, s.loc) >= 0 {
		returned = b.EndDate
	}

	vehicle, err := s.vehicles.GetVehicle(ctx, b.VehicleID)
	if err != nil {
		metrics.IncSettlement(models.ActionFinish, outcomeError)
		return nil, fmt.Errorf("failed to load vehicle %d: %w", b.VehicleID, err)
	}
	fee, err := latefee.Compute(b.EndDate, returned, vehicle.DailyRate, s.loc)
	if err != nil {
		err = domain.ValidationError{Field: "daily_rate", Msg: fmt.Sprintf("vehicle %d has rate %d", vehicle.ID, vehicle.DailyRate), Err: err}
		return nil, s.reject(models.ActionFinish, b, actor, err)
	}

	st := &settlement{action: models.ActionFinish, actor: actor, before: b, amount: -fee.Fee}
	if forced {
		st.note = "forced from " + b.Status
	}
	st.update = models.BookingUpdate{
		Status:           models.StatusCompleted,
		ActualReturnDate: &returned,
		LateDays:         &fee.LateDays,
		LateFee:          &fee.Fee,
	}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}

	s.setAvailability(ctx, st, models.AvailabilityAvailable)
	if fee.Fee > 0 {
		s.adjust(ctx, st, models.Adjustment{
			AccountID: b.DriverID,
			Amount:    -fee.Fee,
			Reason:    models.ReasonLateFee,
			BookingID: b.ID,
			ActorID:   actor.ID,
			Note:      fmt.Sprintf("%d late day(s) on %s", fee.LateDays, b.Code),
		})
	}

	return s.finalize(ctx, st, updated, events.EventBookingCompleted)
}

func (s *SettlementService) Cancel(ctx context.Context, actor models.ActorContext, bookingID int64, reason string) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionCancel, bookingID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanCancel(b, actor); err != nil {
		return nil, s.reject(models.ActionCancel, b, actor, err)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := domain.ValidationError{Field: "reason", Msg: "cancellation reason is required"}
		return nil, s.reject(models.ActionCancel, b, actor, err)
	}

	st := &settlement{action: models.ActionCancel, actor: actor, before: b, amount: b.AmountPaid, note: reason}
	st.update = models.BookingUpdate{Status: models.StatusCancelled, CancelReason: &reason}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}

	if b.AmountPaid > 0 {
		s.adjust(ctx, st, models.Adjustment{
			AccountID: b.DriverID,
			Amount:    b.AmountPaid,
			Reason:    models.ReasonRefund,
			BookingID: b.ID,
			ActorID:   actor.ID,
			Note:      reason,
		})
	}

	return s.finalize(ctx, st, updated, events.EventBookingCancelled)
}

// Promote moves a confirmed booking to ongoing once its rental period has begun.
func (s *SettlementService) Promote(ctx context.Context, actor models.ActorContext, bookingID int64) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionPromote, bookingID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanPromote(b, actor, s.clock.Now(), s.loc); err != nil {
		return nil, s.reject(models.ActionPromote, b, actor, err)
	}

	st := &settlement{action: models.ActionPromote, actor: actor, before: b}
	st.update = models.BookingUpdate{Status: models.StatusOngoing}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, st, updated, events.EventBookingPromoted)
}

// EnableFinish opens the finish gate once the end date has been reached.
func (s *SettlementService) EnableFinish(ctx context.Context, actor models.ActorContext, bookingID int64) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionEnableFinish, bookingID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanEnableFinish(b, actor, s.clock.Now(), s.loc); err != nil {
		return nil, s.reject(models.ActionEnableFinish, b, actor, err)
	}

	enabled := true
	st := &settlement{action: models.ActionEnableFinish, actor: actor, before: b}
	st.update = models.BookingUpdate{FinishEnabled: &enabled}

	updated, err := s.write(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, st, updated, events.EventFinishEnabled)
}

func (s *SettlementService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.bookings.GetBooking(ctx, id)
}

func (s *SettlementService) GetAuditTrail(ctx context.Context, bookingID int64) ([]*models.AuditEntry, error) {
	if _, err := s.bookings.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.audit.GetAuditTrail(ctx, bookingID)
}

func (s *SettlementService) ListBookings(ctx context.Context, statuses ...string) ([]*models.Booking, error) {
	return s.bookings.ListBookingsByStatus(ctx, statuses...)
}

func (s *SettlementService) load(ctx context.Context, action string, bookingID int64) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if domain.IsNotFound(err) {
			metrics.IncSettlement(action, outcomeRejected)
		} else {
			metrics.IncSettlement(action, outcomeError)
		}
		return nil, err
	}
	return b, nil
}

func (s *SettlementService) reject(action string, b *models.Booking, actor models.ActorContext, err error) error {
	metrics.IncSettlement(action, outcomeRejected)
	s.logger.Info().
		Err(err).
		Str("action", action).
		Int64("booking_id", b.ID).
		Str("status", b.Status).
		Int64("actor_id", actor.ID).
		Msg("settlement action rejected")
	return err
}

// write applies the status update with a version check. Losing the race is
// reported as an invalid transition: the booking is no longer in the state
// the caller validated against.
func (s *SettlementService) write(ctx context.Context, st *settlement) (*models.Booking, error) {
	err := s.bookings.UpdateBookingWithVersion(ctx, st.before.ID, st.before.Version, st.update)
	if errors.Is(err, domain.ErrConcurrentModification) {
		err = domain.InvalidTransitionError{
			Action: st.action,
			From:   st.before.Status,
			Msg:    "booking was modified concurrently",
			Err:    err,
		}
		return nil, s.reject(st.action, st.before, st.actor, err)
	}
	if err != nil {
		metrics.IncSettlement(st.action, outcomeError)
		return nil, fmt.Errorf("failed to update booking %d: %w", st.before.ID, err)
	}
	return applyUpdate(st.before, st.update, s.clock.Now()), nil
}

func (s *SettlementService) setAvailability(ctx context.Context, st *settlement, availability string) {
	if err := s.vehicles.SetAvailability(ctx, st.before.VehicleID, availability); err != nil {
		st.failures = append(st.failures, domain.StepFailure{Step: models.StepVehicleAvailability, Err: err})
	}
}

func (s *SettlementService) adjust(ctx context.Context, st *settlement, adj models.Adjustment) {
	if _, err := s.ledger.Adjust(ctx, adj); err != nil {
		st.failures = append(st.failures, domain.StepFailure{Step: models.StepLedger, Err: err})
	}
}

// finalize records the audit row and events. Side-effect failures do not
// revert the status write; they surface as a DependencyFailureError alongside
// the updated booking.
func (s *SettlementService) finalize(ctx context.Context, st *settlement, updated *models.Booking, eventType string) (*models.Booking, error) {
	var steps []string
	for _, f := range st.failures {
		steps = append(steps, f.Step)
	}

	entry := &models.AuditEntry{
		BookingID:     updated.ID,
		Action:        st.action,
		FromStatus:    st.before.Status,
		ToStatus:      updated.Status,
		Amount:        st.amount,
		ActorID:       st.actor.ID,
		ActorName:     st.actor.Name,
		Note:          st.note,
		PreviousValue: st.previous,
		FailedSteps:   strings.Join(steps, ","),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", updated.ID).Str("action", st.action).Msg("failed to append audit entry")
	}

	payload := s.payload(st, updated, steps)
	s.publish(eventType, payload)

	log := s.logger.Info()
	if len(st.failures) > 0 {
		log = s.logger.Error()
	}
	log.Str("action", st.action).
		Int64("booking_id", updated.ID).
		Int64("actor_id", st.actor.ID).
		Str("from", st.before.Status).
		Str("to", updated.Status).
		Int64("amount", st.amount).
		Strs("failed_steps", steps).
		Msg("settlement action applied")

	if len(st.failures) == 0 {
		metrics.IncSettlement(st.action, outcomeOK)
		return updated, nil
	}

	metrics.IncSettlement(st.action, outcomePartial)
	for _, step := range steps {
		metrics.IncDependencyFailure(step)
	}
	s.publish(events.EventSettlementPartialFailure, payload)

	return updated, domain.DependencyFailureError{
		BookingID: updated.ID,
		Status:    updated.Status,
		Failures:  st.failures,
	}
}

func (s *SettlementService) payload(st *settlement, b *models.Booking, steps []string) events.SettlementEventPayload {
	return events.SettlementEventPayload{
		BookingID:   b.ID,
		BookingCode: b.Code,
		Action:      st.action,
		FromStatus:  st.before.Status,
		ToStatus:    b.Status,
		DriverID:    b.DriverID,
		VehicleID:   b.VehicleID,
		EndDate:     b.EndDate,
		ReturnDate:  b.ActualReturnDate,
		LateDays:    b.LateDays,
		LateFee:     b.LateFee,
		Amount:      st.amount,
		Note:        st.note,
		FailedSteps: steps,
		ActorID:     st.actor.ID,
		ActorName:   st.actor.Name,
		ActorRole:   string(st.actor.Role),
	}
}

func (s *SettlementService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

// applyUpdate returns a copy of b as the store holds it after upd.
func applyUpdate(b *models.Booking, upd models.BookingUpdate, now time.Time) *models.Booking {
	out := *b
	if upd.Status != "" {
		out.Status = upd.Status
	}
	if upd.AdminNote != nil {
		out.AdminNote = *upd.AdminNote
	}
	if upd.CancelReason != nil {
		out.CancelReason = *upd.CancelReason
	}
	if upd.ActualReturnDate != nil {
		t := *upd.ActualReturnDate
		out.ActualReturnDate = &t
	}
	if upd.LateDays != nil {
		out.LateDays = *upd.LateDays
	}
	if upd.LateFee != nil {
		out.LateFee = *upd.LateFee
	}
	if upd.FinishEnabled != nil {
		out.FinishEnabled = *upd.FinishEnabled
	}
	if upd.Backdate != nil {
		out.BackdateNote = upd.Backdate.Note
		out.BackdatePreviousReturn = upd.Backdate.PreviousReturn
		out.BackdateEditedBy = upd.Backdate.EditedBy
	}
	out.UpdatedAt = now
	out.Version = b.Version + 1
	return &out
}
