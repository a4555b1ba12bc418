package models

import "time"

type AuditEntry struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	Action        string    `json:"action"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Amount        int64     `json:"amount"`
	ActorID       int64     `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	Note          string    `json:"note,omitempty"`
	PreviousValue string    `json:"previous_value,omitempty"`
	FailedSteps   string    `json:"failed_steps,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
