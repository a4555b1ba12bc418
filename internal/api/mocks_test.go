package api

import (
	"context"
	"time"

	"armada/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockSettlement struct {
	mock.Mock
}

func booking(args mock.Arguments) *models.Booking {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.Booking)
}

func (m *mockSettlement) Confirm(ctx context.Context, actor models.ActorContext, id int64, note string) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, note)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) Finish(ctx context.Context, actor models.ActorContext, id int64, returned *time.Time) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, returned)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) Cancel(ctx context.Context, actor models.ActorContext, id int64, reason string) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, reason)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) EditBackdate(ctx context.Context, actor models.ActorContext, id int64, returned time.Time, note string) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, returned, note)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) RetryStep(ctx context.Context, actor models.ActorContext, id int64, step string) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, step)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) Promote(ctx context.Context, actor models.ActorContext, id int64) (*models.Booking, error) {
	args := m.Called(ctx, actor, id)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) EnableFinish(ctx context.Context, actor models.ActorContext, id int64) (*models.Booking, error) {
	args := m.Called(ctx, actor, id)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	return booking(args), args.Error(1)
}
func (m *mockSettlement) GetAuditTrail(ctx context.Context, id int64) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}
func (m *mockSettlement) ListBookings(ctx context.Context, statuses ...string) ([]*models.Booking, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func entry(args mock.Arguments) *models.LedgerEntry {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.LedgerEntry)
}

func (m *mockLedger) Adjust(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error) {
	args := m.Called(ctx, adj)
	return entry(args), args.Error(1)
}
func (m *mockLedger) HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error) {
	args := m.Called(ctx, bookingID, reason)
	return args.Bool(0), args.Error(1)
}
func (m *mockLedger) ManualAdjust(ctx context.Context, actor models.ActorContext, accountID, amount, bookingID int64, note string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, actor, accountID, amount, bookingID, note)
	return entry(args), args.Error(1)
}
func (m *mockLedger) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}
func (m *mockLedger) GetLedger(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}
