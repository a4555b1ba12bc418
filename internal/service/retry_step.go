package service

import (
	"context"
	"fmt"

	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/lifecycle"
	"armada/internal/models"
)

// RetryStep re-runs one side effect that failed after a status write.
// It does not change the booking itself, only the ledger or the vehicle.
func (s *SettlementService) RetryStep(ctx context.Context, actor models.ActorContext, bookingID int64, step string) (*models.Booking, error) {
	b, err := s.load(ctx, models.ActionRetryStep, bookingID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Authorize(models.ActionRetryStep, actor); err != nil {
		return nil, s.reject(models.ActionRetryStep, b, actor, err)
	}

	st := &settlement{action: models.ActionRetryStep, actor: actor, before: b, note: step}

	switch step {
	case models.StepLedger:
		adj, err := s.expectedAdjustment(b, actor)
		if err != nil {
			return nil, s.reject(models.ActionRetryStep, b, actor, err)
		}
		exists, err := s.ledger.HasLedgerEntry(ctx, b.ID, adj.Reason)
		if err != nil {
			return b, s.retryFailed(ctx, st, b, domain.StepFailure{Step: step, Err: fmt.Errorf("failed to check ledger: %w", err)})
		}
		if exists {
			s.logger.Info().Int64("booking_id", b.ID).Str("reason", adj.Reason).Msg("ledger entry already present, nothing to retry")
			st.note = step + ": already applied"
			return s.finalize(ctx, st, b, events.EventStepRetried)
		}
		st.amount = adj.Amount
		s.adjust(ctx, st, adj)

	case models.StepVehicleAvailability:
		var availability string
		switch b.Status {
		case models.StatusConfirmed, models.StatusOngoing:
			availability = models.AvailabilityRented
		case models.StatusCompleted, models.StatusCancelled:
			// отмена машину не трогает, освобождение идёт через повтор шага
			availability = models.AvailabilityAvailable
		default:
			err := domain.ValidationError{Field: "step", Msg: "no vehicle flip is implied by status " + b.Status}
			return nil, s.reject(models.ActionRetryStep, b, actor, err)
		}
		s.setAvailability(ctx, st, availability)

	default:
		err := domain.ValidationError{Field: "step", Msg: fmt.Sprintf("unknown step %q", step)}
		return nil, s.reject(models.ActionRetryStep, b, actor, err)
	}

	return s.finalize(ctx, st, b, events.EventStepRetried)
}

// expectedAdjustment is the ledger movement the booking's current status implies.
func (s *SettlementService) expectedAdjustment(b *models.Booking, actor models.ActorContext) (models.Adjustment, error) {
	switch {
	case b.Status == models.StatusCompleted && !b.IsBackdated && b.LateFee > 0:
		return models.Adjustment{
			AccountID: b.DriverID,
			Amount:    -b.LateFee,
			Reason:    models.ReasonLateFee,
			BookingID: b.ID,
			ActorID:   actor.ID,
			Note:      fmt.Sprintf("retry: %d late day(s) on %s", b.LateDays, b.Code),
		}, nil
	case b.Status == models.StatusCancelled && b.AmountPaid > 0:
		return models.Adjustment{
			AccountID: b.DriverID,
			Amount:    b.AmountPaid,
			Reason:    models.ReasonRefund,
			BookingID: b.ID,
			ActorID:   actor.ID,
			Note:      "retry: " + b.CancelReason,
		}, nil
	}
	return models.Adjustment{}, domain.ValidationError{Field: "step", Msg: "no ledger movement is implied by status " + b.Status}
}

func (s *SettlementService) retryFailed(ctx context.Context, st *settlement, b *models.Booking, f domain.StepFailure) error {
	st.failures = append(st.failures, f)
	_, err := s.finalize(ctx, st, b, events.EventStepRetried)
	return err
}
