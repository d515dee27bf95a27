package primary

import (
	"context"
	"time"

	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// EquipmentService defines the primary port for machine registration,
// status and reservations.
type EquipmentService interface {
	// RegisterCatalog registers every catalog machine that is not yet known.
	// Returns the number of machines added.
	RegisterCatalog(ctx context.Context) (int, error)

	// ListEquipment returns all registered machines.
	ListEquipment(ctx context.Context) ([]production.Equipment, error)

	// SetStatus changes a machine's operational status.
	SetStatus(ctx context.Context, equipmentID string, status production.EquipmentStatus) error

	// ListBookings returns reservations, optionally for one machine or session.
	ListBookings(ctx context.Context, filters secondary.BookingFilters) ([]Booking, error)

	// ReleaseBookings drops every reservation held by a session.
	ReleaseBookings(ctx context.Context, sessionID string) (int, error)
}

// Booking is a reserved equipment window at the port boundary.
type Booking struct {
	SessionID   string
	PlanID      string
	EquipmentID string
	OrderID     string
	Start       time.Time
	End         time.Time
	BookedBy    string
}

// CatalogService defines the primary port for reading reference data.
type CatalogService interface {
	// GetCatalog returns materials, catalog equipment and the sample batch.
	GetCatalog(ctx context.Context) (*Catalog, error)

	// SampleOrders returns the catalog order batch as session input.
	SampleOrders(ctx context.Context) ([]OrderInput, error)
}

// Catalog is the reference data at the port boundary.
type Catalog struct {
	Materials []production.Material
	Equipment []production.Equipment
	Orders    []OrderInput
}
