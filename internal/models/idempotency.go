package models

import "time"

// StoredResponse is a cached API response replayed for a repeated Idempotency-Key.
type StoredResponse struct {
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
