package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// EquipmentAdapter translates CLI operations to EquipmentService calls.
type EquipmentAdapter struct {
	service primary.EquipmentService
	out     io.Writer
}

// NewEquipmentAdapter creates a new EquipmentAdapter with the given service.
func NewEquipmentAdapter(service primary.EquipmentService, out io.Writer) *EquipmentAdapter {
	return &EquipmentAdapter{
		service: service,
		out:     out,
	}
}

// List lists registered machines.
func (a *EquipmentAdapter) List(ctx context.Context) ([]production.Equipment, error) {
	machines, err := a.service.ListEquipment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}

	if len(machines) == 0 {
		fmt.Fprintln(a.out, "No equipment registered.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Register the catalog machines:")
		fmt.Fprintln(a.out, "  gmpsched equipment register")
		return machines, nil
	}

	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tNAME\tPROCESS\tCAPACITY\tSTATUS")
	fmt.Fprintln(w, "--\t----\t-------\t--------\t------")
	for _, m := range machines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f kg\t%s\n",
			m.ID,
			m.Name,
			m.Process,
			m.CapacityKg,
			statusLabel(m.Status),
		)
	}
	w.Flush()
	return machines, nil
}

func statusLabel(s production.EquipmentStatus) string {
	switch s {
	case production.EquipmentMaintenance:
		return red.Sprint(s)
	case production.EquipmentCleaning:
		return yellow.Sprint(s)
	case production.EquipmentRunning:
		return green.Sprint(s)
	}
	return string(s)
}

// Register registers the catalog machines.
func (a *EquipmentAdapter) Register(ctx context.Context) (int, error) {
	added, err := a.service.RegisterCatalog(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to register equipment: %w", err)
	}
	fmt.Fprintf(a.out, "%s %d machine(s) registered\n", green.Sprint("✓"), added)
	return added, nil
}

// SetStatus changes a machine's status.
func (a *EquipmentAdapter) SetStatus(ctx context.Context, equipmentID, status string) error {
	st, err := production.ParseEquipmentStatus(status)
	if err != nil {
		return err
	}
	if err := a.service.SetStatus(ctx, equipmentID, st); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Equipment %s is now %s\n", green.Sprint("✓"), equipmentID, statusLabel(st))
	return nil
}

// Bookings lists reservations.
func (a *EquipmentAdapter) Bookings(ctx context.Context, filters secondary.BookingFilters) ([]primary.Booking, error) {
	bookings, err := a.service.ListBookings(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if len(bookings) == 0 {
		fmt.Fprintln(a.out, "No reservations.")
		return bookings, nil
	}

	w := newTable(a.out)
	fmt.Fprintln(w, "EQUIPMENT\tSTART\tEND\tORDER\tPLAN\tSESSION\tBY")
	fmt.Fprintln(w, "---------\t-----\t---\t-----\t----\t-------\t--")
	for _, b := range bookings {
		order := b.OrderID
		if order == "" {
			order = yellow.Sprint("clean-down")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.EquipmentID,
			b.Start.Format(TimeLayout),
			b.End.Format(TimeLayout),
			order,
			b.PlanID,
			b.SessionID,
			orDash(b.BookedBy),
		)
	}
	w.Flush()
	return bookings, nil
}

// Release drops a session's reservations.
func (a *EquipmentAdapter) Release(ctx context.Context, sessionID string) (int, error) {
	n, err := a.service.ReleaseBookings(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to release bookings: %w", err)
	}
	fmt.Fprintf(a.out, "%s %d reservation(s) released for session %s\n", green.Sprint("✓"), n, sessionID)
	return n, nil
}
