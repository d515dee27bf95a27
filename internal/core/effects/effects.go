// Package effects defines effect types as data structures representing I/O operations.
// Core planners return effects; the application shell interprets them.
package effects

import "time"

// Effect is the base interface for all effects.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a structured log line.
type LogEffect struct {
	Level   string // "debug", "info", "warn", "error"
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// Window is a time range during which a machine is held by a plan.
type Window struct {
	EquipmentID string
	OrderID     string // empty for clean-down windows
	Start       time.Time
	End         time.Time
}

// ReserveEffect holds equipment windows for a session's confirmed plan.
// Either every window is reserved or none is.
type ReserveEffect struct {
	SessionID string
	PlanID    string
	Windows   []Window
}

func (e ReserveEffect) EffectType() string { return "reserve" }

// ReleaseEffect drops every window held by a session.
type ReleaseEffect struct {
	SessionID string
}

func (e ReleaseEffect) EffectType() string { return "release" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
