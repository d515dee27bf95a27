package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// BookingRepository implements secondary.BookingRepository with SQLite.
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Reserve replaces the session's windows with the given ones in a single
// transaction. Any overlap with another session's window rolls it back.
func (r *BookingRepository) Reserve(ctx context.Context, sessionID, planID, bookedBy string, windows []*secondary.BookingRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, w := range windows {
		var (
			otherSession string
			otherPlan    string
			start, end   int64
		)
		qerr := tx.QueryRowContext(ctx,
			`SELECT session_id, plan_id, start_ns, end_ns FROM equipment_bookings
			 WHERE equipment_id = ? AND session_id != ? AND start_ns < ? AND ? < end_ns
			 ORDER BY start_ns LIMIT 1`,
			w.EquipmentID, sessionID, w.End.UnixNano(), w.Start.UnixNano(),
		).Scan(&otherSession, &otherPlan, &start, &end)
		if qerr == nil {
			return apperr.New(apperr.CodeEquipmentConflict,
				"equipment %s is reserved from %s to %s by plan %s",
				w.EquipmentID, fromNanos(start).Format(time.RFC3339), fromNanos(end).Format(time.RFC3339), otherPlan).
				WithDetail("equipment", w.EquipmentID).
				WithDetail("order", w.OrderID).
				WithDetail("held_by", otherSession)
		}
		if qerr != sql.ErrNoRows {
			return fmt.Errorf("failed to check reservations: %w", qerr)
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM equipment_bookings WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear previous reservation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO equipment_bookings (session_id, plan_id, equipment_id, order_id, start_ns, end_ns, booked_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare reservation: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		if _, err = stmt.ExecContext(ctx,
			sessionID, planID, w.EquipmentID, nullString(w.OrderID), w.Start.UnixNano(), w.End.UnixNano(), nullString(bookedBy),
		); err != nil {
			return fmt.Errorf("failed to reserve equipment %s: %w", w.EquipmentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// Release drops every window held by the session.
func (r *BookingRepository) Release(ctx context.Context, sessionID string) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM equipment_bookings WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to release reservations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count released reservations: %w", err)
	}
	return int(n), nil
}

// List retrieves reservations matching the filters, ordered by start.
func (r *BookingRepository) List(ctx context.Context, filters secondary.BookingFilters) ([]*secondary.BookingRecord, error) {
	query := `SELECT id, session_id, plan_id, equipment_id, order_id, start_ns, end_ns, booked_by, created_at
		FROM equipment_bookings`
	var (
		conds []string
		args  []any
	)
	if filters.EquipmentID != "" {
		conds = append(conds, "equipment_id = ?")
		args = append(args, filters.EquipmentID)
	}
	if filters.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, filters.SessionID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_ns, equipment_id, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var records []*secondary.BookingRecord
	for rows.Next() {
		var (
			record    secondary.BookingRecord
			orderID   sql.NullString
			bookedBy  sql.NullString
			start     int64
			end       int64
			createdAt time.Time
		)
		if err := rows.Scan(&record.ID, &record.SessionID, &record.PlanID, &record.EquipmentID,
			&orderID, &start, &end, &bookedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		record.OrderID = orderID.String
		record.BookedBy = bookedBy.String
		record.Start = fromNanos(start)
		record.End = fromNanos(end)
		record.CreatedAt = createdAt.Format(time.RFC3339)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// CountActive returns the number of windows on a machine that end after at.
func (r *BookingRepository) CountActive(ctx context.Context, equipmentID string, at time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM equipment_bookings WHERE equipment_id = ? AND end_ns > ?",
		equipmentID, at.UnixNano(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return n, nil
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure BookingRepository implements the interface
var _ secondary.BookingRepository = (*BookingRepository)(nil)
