package service

import (
	"context"
	"time"

	"armada/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// копия, чтобы сервис не мог испортить фикстуру
	b := *args.Get(0).(*models.Booking)
	return &b, args.Error(1)
}
func (m *mockBookings) UpdateBookingWithVersion(ctx context.Context, id, version int64, upd models.BookingUpdate) error {
	return m.Called(ctx, id, version, upd).Error(0)
}
func (m *mockBookings) ListBookingsByStatus(ctx context.Context, statuses ...string) ([]*models.Booking, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockVehicles struct {
	mock.Mock
}

func (m *mockVehicles) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}
func (m *mockVehicles) SetAvailability(ctx context.Context, id int64, availability string) error {
	return m.Called(ctx, id, availability).Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Adjust(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error) {
	args := m.Called(ctx, adj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}
func (m *mockLedger) HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error) {
	args := m.Called(ctx, bookingID, reason)
	return args.Bool(0), args.Error(1)
}

type mockLedgerStore struct {
	mock.Mock
}

func (m *mockLedgerStore) ApplyAdjustment(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error) {
	args := m.Called(ctx, adj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}
func (m *mockLedgerStore) HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error) {
	args := m.Called(ctx, bookingID, reason)
	return args.Bool(0), args.Error(1)
}
func (m *mockLedgerStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}
func (m *mockLedgerStore) GetLedgerEntries(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}
func (m *mockAudit) GetAuditTrail(ctx context.Context, bookingID int64) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
