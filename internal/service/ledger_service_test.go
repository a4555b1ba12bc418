package service

import (
	"context"
	"io"
	"testing"
	"time"

	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture() (*LedgerService, *mockLedgerStore, *mockAudit, *mockEventBus) {
	store := new(mockLedgerStore)
	audit := new(mockAudit)
	bus := new(mockEventBus)
	logger := zerolog.New(io.Discard)
	return NewLedgerService(store, audit, bus, &logger), store, audit, bus
}

func TestLedgerAdjustValidation(t *testing.T) {
	svc, store, _, _ := newLedgerFixture()
	ctx := context.Background()

	_, err := svc.Adjust(ctx, models.Adjustment{AccountID: 1, Amount: 0, Reason: models.ReasonManual})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Adjust(ctx, models.Adjustment{AccountID: 1, Amount: 10, Reason: "bonus"})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Adjust(ctx, models.Adjustment{AccountID: 0, Amount: 10, Reason: models.ReasonRefund})
	assert.True(t, domain.IsValidation(err))

	store.AssertNotCalled(t, "ApplyAdjustment", mock.Anything, mock.Anything)
}

func TestLedgerAdjustPublishes(t *testing.T) {
	svc, store, _, bus := newLedgerFixture()
	adj := models.Adjustment{AccountID: 7, Amount: -300000, Reason: models.ReasonLateFee, BookingID: 42, ActorID: 1}
	entry := &models.LedgerEntry{ID: 3, AccountID: 7, Amount: -300000, Reason: models.ReasonLateFee, BalanceAfter: -100000}

	store.On("ApplyAdjustment", mock.Anything, adj).Return(entry, nil).Once()
	bus.On("PublishJSON", events.EventLedgerAdjusted, mock.MatchedBy(func(p events.LedgerEventPayload) bool {
		return p.EntryID == 3 && p.BookingID == 42 && p.BalanceAfter == -100000
	})).Return(nil).Once()

	got, err := svc.Adjust(context.Background(), adj)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
	bus.AssertExpectations(t)
}

func TestLedgerAdjustUnknownAccount(t *testing.T) {
	svc, store, _, _ := newLedgerFixture()
	store.On("ApplyAdjustment", mock.Anything, mock.Anything).Return(nil, domain.ErrAccountNotFound).Once()

	_, err := svc.Adjust(context.Background(), models.Adjustment{AccountID: 404, Amount: 5, Reason: models.ReasonManual})
	assert.True(t, domain.IsNotFound(err))
}

func TestManualAdjust(t *testing.T) {
	t.Run("staff denied", func(t *testing.T) {
		svc, _, _, _ := newLedgerFixture()
		_, err := svc.ManualAdjust(context.Background(), traffic, 7, 1000, 0, "goodwill")
		assert.True(t, domain.IsPermissionDenied(err))
	})

	t.Run("note required", func(t *testing.T) {
		svc, _, _, _ := newLedgerFixture()
		_, err := svc.ManualAdjust(context.Background(), admin, 7, 1000, 0, "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("booking audited", func(t *testing.T) {
		svc, store, audit, bus := newLedgerFixture()
		created := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
		store.On("ApplyAdjustment", mock.Anything, mock.MatchedBy(func(adj models.Adjustment) bool {
			return adj.Reason == models.ReasonManual && adj.Amount == 50000 && adj.BookingID == 42
		})).Return(&models.LedgerEntry{ID: 11, Amount: 50000, CreatedAt: created}, nil).Once()
		bus.On("PublishJSON", events.EventLedgerAdjusted, mock.Anything).Return(nil).Once()
		audit.On("AppendAudit", mock.Anything, mock.MatchedBy(func(e *models.AuditEntry) bool {
			return e.BookingID == 42 && e.Action == models.ActionAdjust && e.Amount == 50000 && e.ActorName == admin.Name
		})).Return(nil).Once()

		_, err := svc.ManualAdjust(context.Background(), admin, 7, 50000, 42, "partial refund")
		require.NoError(t, err)
		audit.AssertExpectations(t)
	})

	t.Run("no booking no audit", func(t *testing.T) {
		svc, store, audit, bus := newLedgerFixture()
		store.On("ApplyAdjustment", mock.Anything, mock.Anything).Return(&models.LedgerEntry{ID: 12}, nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := svc.ManualAdjust(context.Background(), admin, 7, -2000, 0, "fuel")
		require.NoError(t, err)
		audit.AssertNotCalled(t, "AppendAudit", mock.Anything, mock.Anything)
	})
}

func TestGetLedgerLimits(t *testing.T) {
	svc, store, _, _ := newLedgerFixture()
	store.On("GetAccount", mock.Anything, int64(7)).Return(&models.Account{ID: 7}, nil)
	store.On("GetLedgerEntries", mock.Anything, int64(7), 100).Return([]*models.LedgerEntry{}, nil).Once()
	store.On("GetLedgerEntries", mock.Anything, int64(7), 1000).Return([]*models.LedgerEntry{}, nil).Once()

	_, err := svc.GetLedger(context.Background(), 7, 0)
	require.NoError(t, err)
	_, err = svc.GetLedger(context.Background(), 7, 50000)
	require.NoError(t, err)
	store.AssertExpectations(t)

	store.On("GetAccount", mock.Anything, int64(8)).Return(nil, domain.ErrAccountNotFound)
	_, err = svc.GetLedger(context.Background(), 8, 10)
	assert.True(t, domain.IsNotFound(err))
}
