package database

import (
	"context"
	"fmt"
	"time"

	"armada/internal/models"
)

func (db *DB) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := db.rebind(`INSERT INTO booking_audit (
				booking_id, action, from_status, to_status, amount, actor_id, actor_name,
				note, previous_value, failed_steps, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := db.QueryRowContext(ctx, query,
		entry.BookingID,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		entry.Amount,
		entry.ActorID,
		entry.ActorName,
		entry.Note,
		entry.PreviousValue,
		entry.FailedSteps,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// GetAuditTrail returns the audit rows of a booking, oldest first.
func (db *DB) GetAuditTrail(ctx context.Context, bookingID int64) ([]*models.AuditEntry, error) {
	query := db.rebind(`SELECT id, booking_id, action, from_status, to_status, amount, actor_id, actor_name,
                     note, previous_value, failed_steps, created_at
              FROM booking_audit WHERE booking_id = ? ORDER BY id ASC`)
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	defer rows.Close()

	var trail []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		err := rows.Scan(
			&e.ID, &e.BookingID, &e.Action, &e.FromStatus, &e.ToStatus, &e.Amount, &e.ActorID, &e.ActorName,
			&e.Note, &e.PreviousValue, &e.FailedSteps, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		trail = append(trail, e)
	}
	return trail, rows.Err()
}
