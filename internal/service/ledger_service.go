package service

import (
	"context"
	"fmt"
	"strings"

	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/metrics"
	"armada/internal/models"

	"github.com/rs/zerolog"
)

const (
	defaultLedgerLimit = 100
	maxLedgerLimit     = 1000
)

// LedgerService is the single entry point for balance changes.
type LedgerService struct {
	store    domain.LedgerStore
	audit    domain.AuditLog
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewLedgerService(store domain.LedgerStore, audit domain.AuditLog, eventBus domain.EventPublisher, logger *zerolog.Logger) *LedgerService {
	l := logger.With().Str("component", "ledger").Logger()
	return &LedgerService{store: store, audit: audit, eventBus: eventBus, logger: &l}
}

// Adjust applies a signed delta. It does not deduplicate: callers make sure an
// adjustment for a given booking and reason is requested once.
func (s *LedgerService) Adjust(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error) {
	if adj.Amount == 0 {
		return nil, domain.ValidationError{Field: "amount", Msg: "must not be zero"}
	}
	if !models.IsValidReason(adj.Reason) {
		return nil, domain.ValidationError{Field: "reason", Msg: fmt.Sprintf("unknown reason %q", adj.Reason)}
	}
	if adj.AccountID <= 0 {
		return nil, domain.ValidationError{Field: "account_id", Msg: "must be positive"}
	}

	entry, err := s.store.ApplyAdjustment(ctx, adj)
	if err != nil {
		return nil, err
	}

	metrics.IncLedger(adj.Reason)
	s.logger.Info().
		Int64("entry_id", entry.ID).
		Int64("account_id", entry.AccountID).
		Int64("booking_id", adj.BookingID).
		Int64("amount", entry.Amount).
		Str("reason", entry.Reason).
		Int64("balance_after", entry.BalanceAfter).
		Msg("ledger adjusted")

	if s.eventBus != nil {
		payload := events.LedgerEventPayload{
			EntryID:      entry.ID,
			AccountID:    entry.AccountID,
			BookingID:    adj.BookingID,
			Amount:       entry.Amount,
			Reason:       entry.Reason,
			BalanceAfter: entry.BalanceAfter,
			ActorID:      entry.ActorID,
		}
		if err := s.eventBus.PublishJSON(events.EventLedgerAdjusted, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish ledger event error")
		}
	}

	return entry, nil
}

func (s *LedgerService) HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error) {
	return s.store.HasLedgerEntry(ctx, bookingID, reason)
}

// ManualAdjust lets an admin correct a balance by hand. When the correction
// refers to a booking it is also written to that booking's audit trail.
func (s *LedgerService) ManualAdjust(ctx context.Context, actor models.ActorContext, accountID, amount, bookingID int64, note string) (*models.LedgerEntry, error) {
	if !actor.Role.IsPrivileged() {
		return nil, domain.PermissionDeniedError{Action: models.ActionAdjust, Role: string(actor.Role)}
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.ValidationError{Field: "note", Msg: "a note is required for manual adjustments"}
	}

	entry, err := s.Adjust(ctx, models.Adjustment{
		AccountID: accountID,
		Amount:    amount,
		Reason:    models.ReasonManual,
		BookingID: bookingID,
		ActorID:   actor.ID,
		Note:      note,
	})
	if err != nil {
		return nil, err
	}

	if bookingID > 0 && s.audit != nil {
		auditEntry := &models.AuditEntry{
			BookingID: bookingID,
			Action:    models.ActionAdjust,
			Amount:    amount,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Note:      note,
			CreatedAt: entry.CreatedAt,
		}
		if err := s.audit.AppendAudit(ctx, auditEntry); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", bookingID).Msg("failed to append audit entry")
		}
	}

	return entry, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// GetLedger returns the newest entries first.
func (s *LedgerService) GetLedger(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if limit > maxLedgerLimit {
		limit = maxLedgerLimit
	}
	return s.store.GetLedgerEntries(ctx, accountID, limit)
}
