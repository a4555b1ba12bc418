package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int

	bus.Subscribe(func(event *Event) error {
		received = event
		callCount++
		return nil
	}, EventBookingCompleted)

	err := bus.PublishJSON(EventBookingCompleted, SettlementEventPayload{BookingID: 7, LateFee: 300000})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingCompleted, received.Type)
	assert.NotEmpty(t, received.ID)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded SettlementEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, int64(300000), decoded.LateFee)
}

func TestEventBus_MultipleSubscribersAndTypes(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe(func(_ *Event) error { count1++; return nil }, EventBookingCancelled, EventBookingConfirmed)
	bus.Subscribe(func(_ *Event) error { count2++; return errors.New("ignored") }, EventBookingCancelled)

	bus.Publish(&Event{Type: EventBookingCancelled})
	bus.Publish(&Event{Type: EventBookingConfirmed})

	assert.Equal(t, 2, count1)
	assert.Equal(t, 1, count2, "a failing handler does not stop delivery")
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventLedgerAdjusted, nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventLedgerAdjusted, LedgerEventPayload{AccountID: 3, Amount: -50})
	require.NoError(t, err)
	assert.Equal(t, EventLedgerAdjusted, event.Type)
	assert.NotEmpty(t, event.ID)

	_, err = NewJSONEvent("bad", make(chan int))
	assert.Error(t, err)
}
