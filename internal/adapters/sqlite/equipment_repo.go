// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// EquipmentRepository implements secondary.EquipmentRepository with SQLite.
type EquipmentRepository struct {
	db *sql.DB
}

// NewEquipmentRepository creates a new SQLite equipment repository.
func NewEquipmentRepository(db *sql.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// Register inserts a machine unless one with the same ID exists.
func (r *EquipmentRepository) Register(ctx context.Context, eq *secondary.EquipmentRecord) (bool, error) {
	status := eq.Status
	if status == "" {
		status = "idle"
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO equipment (id, name, process, capacity_kg, status) VALUES (?, ?, ?, ?, ?)`,
		eq.ID, eq.Name, eq.Process, eq.CapacityKg, status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to register equipment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return n > 0, nil
}

// GetByID retrieves a machine by its ID.
func (r *EquipmentRepository) GetByID(ctx context.Context, id string) (*secondary.EquipmentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, process, capacity_kg, status, created_at, updated_at FROM equipment WHERE id = ?",
		id,
	)
	record, err := scanEquipment(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.CodeNotFound, "equipment %s not found", id).WithDetail("equipment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return record, nil
}

// List retrieves all machines ordered by ID.
func (r *EquipmentRepository) List(ctx context.Context) ([]*secondary.EquipmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, process, capacity_kg, status, created_at, updated_at FROM equipment ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	var records []*secondary.EquipmentRecord
	for rows.Next() {
		record, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateStatus sets a machine's operational status.
func (r *EquipmentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE equipment SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update equipment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.CodeNotFound, "equipment %s not found", id).WithDetail("equipment", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEquipment(s scanner) (*secondary.EquipmentRecord, error) {
	var (
		record    secondary.EquipmentRecord
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.Scan(&record.ID, &record.Name, &record.Process, &record.CapacityKg, &record.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return &record, nil
}

// Ensure EquipmentRepository implements the interface
var _ secondary.EquipmentRepository = (*EquipmentRepository)(nil)
