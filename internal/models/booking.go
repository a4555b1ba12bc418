package models

import "time"

type Booking struct {
	ID               int64      `json:"id"`
	Code             string     `json:"code"`
	DriverID         int64      `json:"driver_id"`
	VehicleID        int64      `json:"vehicle_id"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          time.Time  `json:"end_date"`
	ActualReturnDate *time.Time `json:"actual_return_date,omitempty"`
	Status           string     `json:"status"` // pending, confirmed, ongoing, completed, cancelled
	IsBackdated      bool       `json:"is_backdated"`
	FinishEnabled    bool       `json:"finish_enabled"`
	TotalAmount      int64      `json:"total_amount"`
	AmountPaid       int64      `json:"amount_paid"`
	PaymentStatus    string     `json:"payment_status"`
	LateDays         int        `json:"late_days"`
	LateFee          int64      `json:"late_fee"`
	AdminNote        string     `json:"admin_note,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`

	BackdateNote           string     `json:"backdate_note,omitempty"`
	BackdatePreviousReturn *time.Time `json:"backdate_previous_return,omitempty"`
	BackdateEditedBy       string     `json:"backdate_edited_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// BookingUpdate is a partial write applied together with a version check.
// Nil fields are left untouched.
type BookingUpdate struct {
	Status           string
	AdminNote        *string
	CancelReason     *string
	ActualReturnDate *time.Time
	LateDays         *int
	LateFee          *int64
	FinishEnabled    *bool
	Backdate         *BackdateEdit
}

// BackdateEdit records who corrected a backdated return date and what it was before.
type BackdateEdit struct {
	Note           string
	PreviousReturn *time.Time
	EditedBy       string
}
