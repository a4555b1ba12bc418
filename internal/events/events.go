package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventBookingConfirmed         = "booking_confirmed"
	EventBookingCompleted         = "booking_completed"
	EventBookingCancelled         = "booking_cancelled"
	EventBookingPromoted          = "booking_promoted"
	EventFinishEnabled            = "finish_enabled"
	EventBackdateEdited           = "backdate_edited"
	EventSettlementPartialFailure = "settlement_partial_failure"
	EventLedgerAdjusted           = "ledger_adjusted"
	EventStepRetried              = "step_retried"
)

// AllEventTypes lists every event settlement can publish.
var AllEventTypes = []string{
	EventBookingConfirmed,
	EventBookingCompleted,
	EventBookingCancelled,
	EventBookingPromoted,
	EventFinishEnabled,
	EventBackdateEdited,
	EventSettlementPartialFailure,
	EventLedgerAdjusted,
	EventStepRetried,
}

// SettlementEventPayload is the booking snapshot sent to consumers after a settlement action.
type SettlementEventPayload struct {
	BookingID   int64      `json:"booking_id"`
	BookingCode string     `json:"booking_code"`
	Action      string     `json:"action"`
	FromStatus  string     `json:"from_status"`
	ToStatus    string     `json:"to_status"`
	DriverID    int64      `json:"driver_id"`
	VehicleID   int64      `json:"vehicle_id"`
	EndDate     time.Time  `json:"end_date"`
	ReturnDate  *time.Time `json:"actual_return_date,omitempty"`
	LateDays    int        `json:"late_days,omitempty"`
	LateFee     int64      `json:"late_fee,omitempty"`
	Amount      int64      `json:"amount,omitempty"`
	Note        string     `json:"note,omitempty"`
	FailedSteps []string   `json:"failed_steps,omitempty"`
	ActorID     int64      `json:"actor_id"`
	ActorName   string     `json:"actor_name"`
	ActorRole   string     `json:"actor_role"`
}

// LedgerEventPayload describes a balance movement.
type LedgerEventPayload struct {
	EntryID      int64  `json:"entry_id"`
	AccountID    int64  `json:"account_id"`
	BookingID    int64  `json:"booking_id,omitempty"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
	BalanceAfter int64  `json:"balance_after"`
	ActorID      int64  `json:"actor_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "event_bus").Logger()
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: &l}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Обработчики синхронные; долгие операции они сами уводят в фон
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
