package workflow

import (
	"github.com/example/gmpsched/internal/core/effects"
	"github.com/example/gmpsched/internal/core/production"
)

// SelectionPlanInput contains pre-fetched data for confirming a candidate.
type SelectionPlanInput struct {
	SessionID string
	Plan      production.ProductionPlan
	Operator  string
}

// SelectionPlan represents the planned effects for confirming a candidate.
type SelectionPlan struct {
	Reserve effects.ReserveEffect
	Logs    []effects.LogEffect
}

// Effects returns all effects as a flat slice for execution.
func (p SelectionPlan) Effects() []effects.Effect {
	result := make([]effects.Effect, 0, 1+len(p.Logs))
	result = append(result, p.Reserve)
	for _, e := range p.Logs {
		result = append(result, e)
	}
	return result
}

// GenerateSelectionPlan creates the reservation for every item of the plan.
// Clean-down items hold their machine like production items do.
// This is a pure function - all input data must be pre-fetched.
func GenerateSelectionPlan(input SelectionPlanInput) SelectionPlan {
	items := input.Plan.Items()
	windows := make([]effects.Window, 0, len(items))
	for _, it := range items {
		windows = append(windows, effects.Window{
			EquipmentID: it.EquipmentID,
			OrderID:     it.OrderID,
			Start:       it.Start,
			End:         it.End,
		})
	}

	return SelectionPlan{
		Reserve: effects.ReserveEffect{
			SessionID: input.SessionID,
			PlanID:    input.Plan.ID(),
			Windows:   windows,
		},
		Logs: []effects.LogEffect{{
			Level:   "info",
			Message: "candidate confirmed",
			Fields: map[string]any{
				"session":  input.SessionID,
				"plan":     input.Plan.ID(),
				"score":    input.Plan.Score(),
				"windows":  len(windows),
				"operator": input.Operator,
			},
		}},
	}
}

// GenerateReleasePlan creates the effects for dropping a session's
// reservations, on discard or cancellation.
func GenerateReleasePlan(sessionID, reason string) []effects.Effect {
	return []effects.Effect{
		effects.ReleaseEffect{SessionID: sessionID},
		effects.LogEffect{
			Level:   "info",
			Message: "reservations released",
			Fields:  map[string]any{"session": sessionID, "reason": reason},
		},
	}
}
