package secondary

import (
	"context"
	"time"
)

// EquipmentRepository defines the secondary port for equipment persistence.
// The catalog registers machines; only the status changes afterwards.
type EquipmentRepository interface {
	// Register inserts a machine, leaving an existing row untouched.
	// Returns true when the machine was new.
	Register(ctx context.Context, eq *EquipmentRecord) (bool, error)

	// GetByID retrieves a machine by its ID.
	GetByID(ctx context.Context, id string) (*EquipmentRecord, error)

	// List retrieves all machines ordered by ID.
	List(ctx context.Context) ([]*EquipmentRecord, error)

	// UpdateStatus sets a machine's operational status.
	UpdateStatus(ctx context.Context, id, status string) error
}

// EquipmentRecord represents a machine as stored in persistence.
type EquipmentRecord struct {
	ID         string
	Name       string
	Process    string
	CapacityKg float64
	Status     string
	CreatedAt  string
	UpdatedAt  string
}

// BookingRepository defines the secondary port for equipment reservations
// held by confirmed plans across sessions.
type BookingRepository interface {
	// Reserve stores every window for the session atomically. Fails with
	// EQUIPMENT_CONFLICT when any window overlaps one held by another
	// session; windows already held by the same session are replaced.
	Reserve(ctx context.Context, sessionID, planID, bookedBy string, windows []*BookingRecord) error

	// Release drops every window held by the session and returns the count.
	Release(ctx context.Context, sessionID string) (int, error)

	// List retrieves reservations matching the filters, ordered by start.
	List(ctx context.Context, filters BookingFilters) ([]*BookingRecord, error)

	// CountActive returns the number of windows on a machine that have not
	// ended by the given time.
	CountActive(ctx context.Context, equipmentID string, at time.Time) (int, error)
}

// BookingRecord represents one reserved equipment window.
type BookingRecord struct {
	ID          int64
	SessionID   string
	PlanID      string
	EquipmentID string
	OrderID     string // empty for clean-down windows
	Start       time.Time
	End         time.Time
	BookedBy    string
	CreatedAt   string
}

// BookingFilters contains filter options for querying reservations.
type BookingFilters struct {
	EquipmentID string
	SessionID   string
	Limit       int
}
