package domain

import (
	"context"
	"time"

	"armada/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingWithVersion(ctx context.Context, id int64, version int64, upd models.BookingUpdate) error
	ListBookingsByStatus(ctx context.Context, statuses ...string) ([]*models.Booking, error)
}

type VehicleRegistry interface {
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	SetAvailability(ctx context.Context, id int64, availability string) error
}

type LedgerStore interface {
	ApplyAdjustment(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error)
	HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetLedgerEntries(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)
}

type AuditLog interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	GetAuditTrail(ctx context.Context, bookingID int64) ([]*models.AuditEntry, error)
}

type OutboxStore interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Ledger is the balance adjustment primitive used by settlement.
type Ledger interface {
	Adjust(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error)
	HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type Clock interface {
	Now() time.Time
}

type IdempotencyStore interface {
	GetResponse(ctx context.Context, key string) (*models.StoredResponse, error)
	SaveResponse(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error
	CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, n models.Notification) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SettlementService interface {
	Confirm(ctx context.Context, actor models.ActorContext, bookingID int64, note string) (*models.Booking, error)
	Finish(ctx context.Context, actor models.ActorContext, bookingID int64, actualReturnDate *time.Time) (*models.Booking, error)
	Cancel(ctx context.Context, actor models.ActorContext, bookingID int64, reason string) (*models.Booking, error)
	EditBackdate(ctx context.Context, actor models.ActorContext, bookingID int64, actualReturnDate time.Time, note string) (*models.Booking, error)
	RetryStep(ctx context.Context, actor models.ActorContext, bookingID int64, step string) (*models.Booking, error)
	Promote(ctx context.Context, actor models.ActorContext, bookingID int64) (*models.Booking, error)
	EnableFinish(ctx context.Context, actor models.ActorContext, bookingID int64) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetAuditTrail(ctx context.Context, bookingID int64) ([]*models.AuditEntry, error)
	ListBookings(ctx context.Context, statuses ...string) ([]*models.Booking, error)
}

type LedgerService interface {
	Ledger
	ManualAdjust(ctx context.Context, actor models.ActorContext, accountID, amount, bookingID int64, note string) (*models.LedgerEntry, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetLedger(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)
}
