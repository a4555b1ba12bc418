package models

import "time"

// Notification is an operator alert produced by settlement events.
type Notification struct {
	Kind      string `json:"kind"`
	BookingID int64  `json:"booking_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// OutboxTask represents a queued notification delivery.
type OutboxTask struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	BookingID   int64      `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)
