// Package equipment contains the pure rules for changing a machine's
// operational status.
package equipment

import (
	"fmt"
	"slices"

	"github.com/example/gmpsched/internal/core/production"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

var transitions = map[production.EquipmentStatus][]production.EquipmentStatus{
	production.EquipmentIdle:        {production.EquipmentRunning, production.EquipmentCleaning, production.EquipmentMaintenance},
	production.EquipmentRunning:     {production.EquipmentIdle, production.EquipmentCleaning},
	production.EquipmentCleaning:    {production.EquipmentIdle, production.EquipmentMaintenance},
	production.EquipmentMaintenance: {production.EquipmentIdle},
}

// StatusChangeContext provides context for status change guards.
type StatusChangeContext struct {
	EquipmentID    string
	Current        production.EquipmentStatus
	Target         production.EquipmentStatus
	ActiveBookings int
}

// CanChangeStatus evaluates whether a machine may move to a new status.
// Rules:
// - Target must differ from the current status
// - Running machines stop (idle or cleaning) before maintenance
// - Maintenance returns to idle only
// - A machine with reservations held by a confirmed plan cannot enter maintenance
func CanChangeStatus(ctx StatusChangeContext) GuardResult {
	if ctx.Current == ctx.Target {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("equipment %s is already %s", ctx.EquipmentID, ctx.Current),
		}
	}
	if !slices.Contains(transitions[ctx.Current], ctx.Target) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("equipment %s cannot go from %s to %s", ctx.EquipmentID, ctx.Current, ctx.Target),
		}
	}
	if ctx.Target == production.EquipmentMaintenance && ctx.ActiveBookings > 0 {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("equipment %s has %d reserved window(s). Release them first with: gmpsched bookings release <session-id>",
				ctx.EquipmentID, ctx.ActiveBookings),
		}
	}
	return GuardResult{Allowed: true}
}
