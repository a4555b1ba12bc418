package models

import "time"

// Account is a driver or agent balance (saldo).
type Account struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Adjustment is a request to move a signed amount on an account.
type Adjustment struct {
	AccountID int64
	Amount    int64
	Reason    string
	BookingID int64 // 0 for adjustments not tied to a booking
	ActorID   int64
	Note      string
}

// LedgerEntry is an append-only record of a balance change.
type LedgerEntry struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	BookingID    *int64    `json:"booking_id,omitempty"`
	ActorID      int64     `json:"actor_id"`
	Amount       int64     `json:"amount"`
	Reason       string    `json:"reason"`
	Note         string    `json:"note,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
