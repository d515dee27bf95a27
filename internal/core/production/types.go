// Package production contains the shop-floor domain model: materials,
// equipment, orders, schedule items and production plans.
// Values are immutable by construction; constructors validate invariants.
package production

import "fmt"

// Toxicity is the GMP toxicity class of a material.
type Toxicity string

const (
	ToxicityNone Toxicity = "none"
	ToxicityLow  Toxicity = "low"
	ToxicityHigh Toxicity = "high"
)

// IsToxic reports whether the material requires isolation.
func (t Toxicity) IsToxic() bool {
	return t == ToxicityLow || t == ToxicityHigh
}

// ParseToxicity converts a string to a Toxicity.
func ParseToxicity(s string) (Toxicity, error) {
	switch t := Toxicity(s); t {
	case ToxicityNone, ToxicityLow, ToxicityHigh:
		return t, nil
	}
	return "", fmt.Errorf("unknown toxicity %q", s)
}

// ProcessType is a processing stage performed by equipment.
type ProcessType string

const (
	ProcessWashing   ProcessType = "washing"
	ProcessSteaming  ProcessType = "steaming"
	ProcessDrying    ProcessType = "drying"
	ProcessCutting   ProcessType = "cutting"
	ProcessPackaging ProcessType = "packaging"

	// ProcessCleaning marks a synthetic cleaning interval on a machine.
	// No equipment is registered with this type.
	ProcessCleaning ProcessType = "cleaning"
)

// ParseProcessType converts a string to a production ProcessType.
// Cleaning is not accepted: it is never an equipment type.
func ParseProcessType(s string) (ProcessType, error) {
	switch p := ProcessType(s); p {
	case ProcessWashing, ProcessSteaming, ProcessDrying, ProcessCutting, ProcessPackaging:
		return p, nil
	}
	return "", fmt.Errorf("unknown process type %q", s)
}

// EquipmentStatus is the operational status of a machine.
type EquipmentStatus string

const (
	EquipmentIdle        EquipmentStatus = "idle"
	EquipmentRunning     EquipmentStatus = "running"
	EquipmentCleaning    EquipmentStatus = "cleaning"
	EquipmentMaintenance EquipmentStatus = "maintenance"
)

// ParseEquipmentStatus converts a string to an EquipmentStatus.
func ParseEquipmentStatus(s string) (EquipmentStatus, error) {
	switch st := EquipmentStatus(s); st {
	case EquipmentIdle, EquipmentRunning, EquipmentCleaning, EquipmentMaintenance:
		return st, nil
	}
	return "", fmt.Errorf("unknown equipment status %q", s)
}

// Priority of an order.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority converts a string to a Priority; empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderPending      OrderStatus = "pending"
	OrderScheduled    OrderStatus = "scheduled"
	OrderInProduction OrderStatus = "in_production"
	OrderComplete     OrderStatus = "complete"
)

// VisualCheck is the outcome of the perception step for an order.
type VisualCheck string

const (
	VisualUnchecked  VisualCheck = "unchecked"
	VisualPassed     VisualCheck = "passed"
	VisualFailed     VisualCheck = "failed"
	VisualUnresolved VisualCheck = "unresolved" // provider call failed
)

// Terminal reports whether perception has produced a final result.
func (v VisualCheck) Terminal() bool {
	return v == VisualPassed || v == VisualFailed || v == VisualUnresolved
}
