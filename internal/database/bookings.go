package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"armada/internal/domain"
	"armada/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, code, driver_id, vehicle_id, start_date, end_date, actual_return_date,
	status, is_backdated, finish_enabled, total_amount, amount_paid, payment_status,
	late_days, late_fee, admin_note, cancel_reason, backdate_note, backdate_previous_return,
	backdate_edited_by, created_at, updated_at, version`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.Code, &b.DriverID, &b.VehicleID, &b.StartDate, &b.EndDate, &b.ActualReturnDate,
		&b.Status, &b.IsBackdated, &b.FinishEnabled, &b.TotalAmount, &b.AmountPaid, &b.PaymentStatus,
		&b.LateDays, &b.LateFee, &b.AdminNote, &b.CancelReason, &b.BackdateNote, &b.BackdatePreviousReturn,
		&b.BackdateEditedBy, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a new booking at version 1. Bookings are created by the
// reservation flow; settlement only mutates them.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now()
	if booking.Code == "" {
		booking.Code = "BK-" + strings.ToUpper(uuid.NewString()[:8])
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentUnpaid
	}

	query := db.rebind(`INSERT INTO bookings (
				code, driver_id, vehicle_id, start_date, end_date, actual_return_date,
				status, is_backdated, finish_enabled, total_amount, amount_paid, payment_status,
				late_days, late_fee, admin_note, cancel_reason, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`)
	err := db.QueryRowContext(ctx, query,
		booking.Code,
		booking.DriverID,
		booking.VehicleID,
		booking.StartDate,
		booking.EndDate,
		booking.ActualReturnDate,
		booking.Status,
		booking.IsBackdated,
		booking.FinishEnabled,
		booking.TotalAmount,
		booking.AmountPaid,
		booking.PaymentStatus,
		booking.LateDays,
		booking.LateFee,
		booking.AdminNote,
		booking.CancelReason,
		now,
		now,
		1,
	).Scan(&booking.ID)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := db.rebind(`SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`)
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingWithVersion applies upd only if the stored version still equals
// version, bumping it by one. A lost race returns ErrConcurrentModification.
func (db *DB) UpdateBookingWithVersion(ctx context.Context, id, version int64, upd models.BookingUpdate) error {
	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []interface{}{time.Now()}

	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Status != "" {
		add("status", upd.Status)
	}
	if upd.AdminNote != nil {
		add("admin_note", *upd.AdminNote)
	}
	if upd.CancelReason != nil {
		add("cancel_reason", *upd.CancelReason)
	}
	if upd.ActualReturnDate != nil {
		add("actual_return_date", *upd.ActualReturnDate)
	}
	if upd.LateDays != nil {
		add("late_days", *upd.LateDays)
	}
	if upd.LateFee != nil {
		add("late_fee", *upd.LateFee)
	}
	if upd.FinishEnabled != nil {
		add("finish_enabled", *upd.FinishEnabled)
	}
	if upd.Backdate != nil {
		add("backdate_note", upd.Backdate.Note)
		add("backdate_previous_return", upd.Backdate.PreviousReturn)
		add("backdate_edited_by", upd.Backdate.EditedBy)
	}

	query := db.rebind(`UPDATE bookings SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND version = ?`)
	args = append(args, id, version)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

// ListBookingsByStatus returns bookings in any of the given statuses, or all
// bookings when none are given.
func (db *DB) ListBookingsByStatus(ctx context.Context, statuses ...string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	args := make([]interface{}, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY end_date ASC, id ASC`

	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}
