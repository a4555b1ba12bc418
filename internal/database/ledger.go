package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"armada/internal/domain"
	"armada/internal/models"
)

func (db *DB) CreateAccount(ctx context.Context, acc *models.Account) error {
	now := time.Now()
	query := db.rebind(`INSERT INTO accounts (kind, name, balance, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := db.QueryRowContext(ctx, query, acc.Kind, acc.Name, acc.Balance, now, now).Scan(&acc.ID); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	acc.CreatedAt = now
	acc.UpdatedAt = now
	return nil
}

func (db *DB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := db.rebind(`SELECT id, kind, name, balance, created_at, updated_at FROM accounts WHERE id = ?`)
	var acc models.Account
	err := db.QueryRowContext(ctx, query, id).Scan(
		&acc.ID, &acc.Kind, &acc.Name, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

// ApplyAdjustment moves the account balance by adj.Amount and appends the
// ledger row in the same transaction. Neither write survives without the other.
func (db *DB) ApplyAdjustment(ctx context.Context, adj models.Adjustment) (*models.LedgerEntry, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	var balance int64
	err = tx.QueryRowContext(ctx,
		db.rebind(`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ? RETURNING balance`),
		adj.Amount, now, adj.AccountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", adj.AccountID, domain.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID:    adj.AccountID,
		ActorID:      adj.ActorID,
		Amount:       adj.Amount,
		Reason:       adj.Reason,
		Note:         adj.Note,
		BalanceAfter: balance,
		CreatedAt:    now,
	}
	if adj.BookingID > 0 {
		ref := adj.BookingID
		entry.BookingID = &ref
	}

	err = tx.QueryRowContext(ctx,
		db.rebind(`INSERT INTO ledger_entries (account_id, booking_id, actor_id, amount, reason, note, balance_after, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		entry.AccountID, entry.BookingID, entry.ActorID, entry.Amount, entry.Reason, entry.Note, entry.BalanceAfter, now,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return entry, nil
}

// HasLedgerEntry reports whether the booking already produced an entry with reason.
func (db *DB) HasLedgerEntry(ctx context.Context, bookingID int64, reason string) (bool, error) {
	var count int
	query := db.rebind(`SELECT COUNT(*) FROM ledger_entries WHERE booking_id = ? AND reason = ?`)
	if err := db.QueryRowContext(ctx, query, bookingID, reason).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check ledger entries: %w", err)
	}
	return count > 0, nil
}

// GetLedgerEntries returns the newest entries of an account first.
func (db *DB) GetLedgerEntries(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := db.rebind(`SELECT id, account_id, booking_id, actor_id, amount, reason, note, balance_after, created_at
              FROM ledger_entries WHERE account_id = ? ORDER BY id DESC LIMIT ?`)
	rows, err := db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e := &models.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.AccountID, &e.BookingID, &e.ActorID, &e.Amount, &e.Reason, &e.Note, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
