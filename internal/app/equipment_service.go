package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	coreequipment "github.com/example/gmpsched/internal/core/equipment"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// EquipmentServiceImpl implements the EquipmentService interface.
type EquipmentServiceImpl struct {
	equipmentRepo secondary.EquipmentRepository
	bookingRepo   secondary.BookingRepository
	catalog       secondary.CatalogProvider
	logger        *logging.Logger
	clock         func() time.Time
}

// NewEquipmentService creates a new EquipmentService with injected dependencies.
func NewEquipmentService(
	equipmentRepo secondary.EquipmentRepository,
	bookingRepo secondary.BookingRepository,
	catalog secondary.CatalogProvider,
	logger *logging.Logger,
) *EquipmentServiceImpl {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EquipmentServiceImpl{
		equipmentRepo: equipmentRepo,
		bookingRepo:   bookingRepo,
		catalog:       catalog,
		logger:        logger.WithComponent("equipment"),
		clock:         time.Now,
	}
}

// RegisterCatalog registers catalog machines that are not yet known.
// Machines already registered keep their persisted status.
func (s *EquipmentServiceImpl) RegisterCatalog(ctx context.Context) (int, error) {
	machines, err := s.catalog.Equipment(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog equipment: %w", err)
	}

	added := 0
	for _, eq := range machines {
		created, err := s.equipmentRepo.Register(ctx, &secondary.EquipmentRecord{
			ID:         eq.ID,
			Name:       eq.Name,
			Process:    string(eq.Process),
			CapacityKg: eq.CapacityKg,
			Status:     string(eq.Status),
		})
		if err != nil {
			return added, fmt.Errorf("failed to register equipment %s: %w", eq.ID, err)
		}
		if created {
			added++
		}
	}
	if added > 0 {
		s.logger.Info("catalog equipment registered", "added", added)
	}
	return added, nil
}

// ListEquipment returns all registered machines.
func (s *EquipmentServiceImpl) ListEquipment(ctx context.Context) ([]production.Equipment, error) {
	records, err := s.equipmentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	out := make([]production.Equipment, 0, len(records))
	for _, r := range records {
		eq, err := recordToEquipment(r)
		if err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	return out, nil
}

// SetStatus changes a machine's operational status.
func (s *EquipmentServiceImpl) SetStatus(ctx context.Context, equipmentID string, status production.EquipmentStatus) error {
	record, err := s.equipmentRepo.GetByID(ctx, equipmentID)
	if err != nil {
		return err
	}
	current, err := production.ParseEquipmentStatus(record.Status)
	if err != nil {
		return fmt.Errorf("equipment %s: %w", equipmentID, err)
	}

	active, err := s.bookingRepo.CountActive(ctx, equipmentID, s.clock())
	if err != nil {
		return fmt.Errorf("failed to count reservations: %w", err)
	}

	guard := coreequipment.CanChangeStatus(coreequipment.StatusChangeContext{
		EquipmentID:    equipmentID,
		Current:        current,
		Target:         status,
		ActiveBookings: active,
	})
	if !guard.Allowed {
		return apperr.New(apperr.CodeInvalidTransition, "%s", guard.Reason).
			WithDetail("equipment", equipmentID).
			WithDetail("from", string(current)).
			WithDetail("to", string(status))
	}

	if err := s.equipmentRepo.UpdateStatus(ctx, equipmentID, string(status)); err != nil {
		return fmt.Errorf("failed to update equipment status: %w", err)
	}
	s.logger.WithContext(ctx).Info("equipment status changed",
		"equipment", equipmentID,
		"from", string(current),
		"to", string(status),
	)
	return nil
}

// ListBookings returns reservations matching the filters.
func (s *EquipmentServiceImpl) ListBookings(ctx context.Context, filters secondary.BookingFilters) ([]primary.Booking, error) {
	records, err := s.bookingRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	out := make([]primary.Booking, len(records))
	for i, r := range records {
		out[i] = primary.Booking{
			SessionID:   r.SessionID,
			PlanID:      r.PlanID,
			EquipmentID: r.EquipmentID,
			OrderID:     r.OrderID,
			Start:       r.Start,
			End:         r.End,
			BookedBy:    r.BookedBy,
		}
	}
	return out, nil
}

// ReleaseBookings drops every reservation held by a session. Used to clean
// up after a process that exited without discarding or cancelling.
func (s *EquipmentServiceImpl) ReleaseBookings(ctx context.Context, sessionID string) (int, error) {
	n, err := s.bookingRepo.Release(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to release bookings: %w", err)
	}
	s.logger.WithContext(ctx).Info("bookings released", "session", sessionID, "windows", n)
	return n, nil
}

func recordToEquipment(r *secondary.EquipmentRecord) (production.Equipment, error) {
	process, err := production.ParseProcessType(r.Process)
	if err != nil {
		return production.Equipment{}, fmt.Errorf("equipment %s: %w", r.ID, err)
	}
	status, err := production.ParseEquipmentStatus(r.Status)
	if err != nil {
		return production.Equipment{}, fmt.Errorf("equipment %s: %w", r.ID, err)
	}
	return production.Equipment{
		ID:         r.ID,
		Name:       r.Name,
		Process:    process,
		CapacityKg: r.CapacityKg,
		Status:     status,
	}, nil
}

var _ primary.EquipmentService = (*EquipmentServiceImpl)(nil)
