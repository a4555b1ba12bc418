// Package latefee computes overdue days and fees for returned vehicles.
package latefee

import (
	"errors"
	"time"
)

var ErrNonPositiveRate = errors.New("daily rate must be positive")

// Result is the outcome of a fee computation.
type Result struct {
	LateDays int
	Fee      int64
}

// Compute returns the late days and fee for a vehicle returned at actualReturn
// when it was due at scheduledEnd. Both instants are reduced to calendar dates
// in loc before subtracting, so the time of day never adds a day. Early
// returns yield zero.
func Compute(scheduledEnd, actualReturn time.Time, dailyRate int64, loc *time.Location) (Result, error) {
	if dailyRate <= 0 {
		return Result{}, ErrNonPositiveRate
	}

	days := DaysBetween(scheduledEnd, actualReturn, loc)
	if days < 0 {
		days = 0
	}
	return Result{LateDays: days, Fee: int64(days) * dailyRate}, nil
}

// DaysBetween returns the signed number of calendar days from a to b in loc.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da := civilDate(a, loc)
	db := civilDate(b, loc)
	return int(db.Sub(da).Hours() / 24)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return civilDate(a, loc).Equal(civilDate(b, loc))
}

// Midnight returns the start of t's calendar date in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// civilDate maps t to midnight UTC of its date in loc, which keeps the
// subtraction free of DST shifts.
func civilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
