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

const vehicleColumns = `id, plate, name, daily_rate, availability, created_at, updated_at`

func (db *DB) cacheVehicle(v models.Vehicle) {
	db.mu.Lock()
	db.vehicleCache[v.ID] = v
	db.mu.Unlock()
}

func (db *DB) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.Availability == "" {
		v.Availability = models.AvailabilityAvailable
	}
	now := time.Now()
	query := db.rebind(`INSERT INTO vehicles (plate, name, daily_rate, availability, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := db.QueryRowContext(ctx, query, v.Plate, v.Name, v.DailyRate, v.Availability, now, now).Scan(&v.ID); err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	v.CreatedAt = now
	v.UpdatedAt = now

	db.cacheVehicle(*v)
	return nil
}

// SyncVehicles upserts the fleet by plate. Availability of existing vehicles is
// left as is: it belongs to settlement.
func (db *DB) SyncVehicles(ctx context.Context, vehicles []models.Vehicle) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := db.rebind(`INSERT INTO vehicles (plate, name, daily_rate, availability, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(plate) DO UPDATE SET
                  name = excluded.name,
                  daily_rate = excluded.daily_rate,
                  updated_at = excluded.updated_at`)
	for _, v := range vehicles {
		if v.DailyRate <= 0 {
			return fmt.Errorf("vehicle %s: daily rate must be positive", v.Plate)
		}
		if _, err := tx.ExecContext(ctx, query, v.Plate, v.Name, v.DailyRate, models.AvailabilityAvailable, now, now); err != nil {
			return fmt.Errorf("failed to sync vehicle %s: %w", v.Plate, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vehicles: %w", err)
	}

	// Кэш сбрасывается целиком, цены могли измениться
	db.mu.Lock()
	db.vehicleCache = make(map[int64]models.Vehicle)
	db.mu.Unlock()

	db.logger.Info().Int("count", len(vehicles)).Msg("fleet synced")
	return nil
}

func (db *DB) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	db.mu.RLock()
	cached, ok := db.vehicleCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	query := db.rebind(`SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`)
	var v models.Vehicle
	err := db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.Plate, &v.Name, &v.DailyRate, &v.Availability, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}

	db.cacheVehicle(v)
	return &v, nil
}

func (db *DB) SetAvailability(ctx context.Context, id int64, availability string) error {
	if availability != models.AvailabilityAvailable && availability != models.AvailabilityRented {
		return domain.ValidationError{Field: "availability", Msg: fmt.Sprintf("unknown value %q", availability)}
	}

	now := time.Now()
	query := db.rebind(`UPDATE vehicles SET availability = ?, updated_at = ? WHERE id = ?`)
	result, err := db.ExecContext(ctx, query, availability, now, id)
	if err != nil {
		return fmt.Errorf("failed to set vehicle availability: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("vehicle %d: %w", id, domain.ErrNotFound)
	}

	db.mu.Lock()
	if v, ok := db.vehicleCache[id]; ok {
		v.Availability = availability
		v.UpdatedAt = now
		db.vehicleCache[id] = v
	}
	db.mu.Unlock()
	return nil
}

func (db *DB) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.Plate, &v.Name, &v.DailyRate, &v.Availability, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
