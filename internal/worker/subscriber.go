package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/models"
)

const (
	KindPartialFailure = "partial_failure"
	KindLateFee        = "late_fee"
	KindRefund         = "refund"
)

const enqueueTimeout = 5 * time.Second

// NotificationSubscriber turns settlement events into operator notifications.
type NotificationSubscriber struct {
	queue domain.NotificationQueue
}

func NewNotificationSubscriber(queue domain.NotificationQueue) *NotificationSubscriber {
	return &NotificationSubscriber{queue: queue}
}

// Attach subscribes to the events that need a human to look at them.
func (s *NotificationSubscriber) Attach(bus *events.EventBus) {
	bus.Subscribe(s.Handle,
		events.EventSettlementPartialFailure,
		events.EventBookingCompleted,
		events.EventBookingCancelled,
	)
}

func (s *NotificationSubscriber) Handle(event *events.Event) error {
	var p events.SettlementEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	n, ok := BuildNotification(event.Type, p)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	return s.queue.EnqueueNotification(ctx, n)
}

// BuildNotification renders the notification for an event, if any.
func BuildNotification(eventType string, p events.SettlementEventPayload) (models.Notification, bool) {
	switch eventType {
	case events.EventSettlementPartialFailure:
		return models.Notification{
			Kind:      KindPartialFailure,
			BookingID: p.BookingID,
			Title:     fmt.Sprintf("⚠️ %s: %s не завершено", p.BookingCode, p.Action),
			Body: fmt.Sprintf("Booking %s is %s but these steps failed: %s.\nRetry with POST /api/v1/bookings/%d/retry.",
				p.BookingCode, p.ToStatus, strings.Join(p.FailedSteps, ", "), p.BookingID),
		}, true
	case events.EventBookingCompleted:
		if p.LateFee <= 0 {
			return models.Notification{}, false
		}
		return models.Notification{
			Kind:      KindLateFee,
			BookingID: p.BookingID,
			Title:     fmt.Sprintf("%s: штраф за просрочку", p.BookingCode),
			Body:      fmt.Sprintf("Driver %d returned vehicle %d %d day(s) late, fee %d.", p.DriverID, p.VehicleID, p.LateDays, p.LateFee),
		}, true
	case events.EventBookingCancelled:
		if p.Amount <= 0 {
			return models.Notification{}, false
		}
		return models.Notification{
			Kind:      KindRefund,
			BookingID: p.BookingID,
			Title:     fmt.Sprintf("%s: возврат", p.BookingCode),
			Body:      fmt.Sprintf("Booking %s cancelled by %s (%s), refund %d to driver %d.", p.BookingCode, p.ActorName, p.Note, p.Amount, p.DriverID),
		}, true
	}
	return models.Notification{}, false
}
