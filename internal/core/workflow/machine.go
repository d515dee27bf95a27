// Package workflow contains the pure state machine of a scheduling session.
// This is part of the functional core: no I/O, the caller supplies the time.
package workflow

import (
	"slices"
	"time"

	"github.com/example/gmpsched/internal/apperr"
)

// State is a stage of the scheduling workflow.
type State string

const (
	StatePerception State = "perception"
	StateValidation State = "validation"
	StateGeneration State = "generation"
	StateDecision   State = "decision"
)

// Entry records when a state was entered.
type Entry struct {
	State     State     `json:"state"`
	EnteredAt time.Time `json:"entered_at"`
}

// allowed lists the legal transitions. Forward one step at a time, plus
// decision back to generation when a selection is discarded.
var allowed = map[State][]State{
	StatePerception: {StateValidation},
	StateValidation: {StateGeneration},
	StateGeneration: {StateDecision},
	StateDecision:   {StateGeneration},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	return slices.Contains(allowed[from], to)
}

// Machine is an immutable workflow position with its history.
type Machine struct {
	state   State
	history []Entry
}

// New returns a machine in the perception state.
func New(at time.Time) Machine {
	return Machine{
		state:   StatePerception,
		history: []Entry{{State: StatePerception, EnteredAt: at}},
	}
}

// State returns the current state.
func (m Machine) State() State {
	return m.state
}

// History returns a copy of the entered states, oldest first.
func (m Machine) History() []Entry {
	return slices.Clone(m.history)
}

// Transition returns a new machine in state to. The receiver is unchanged.
// Fails with INVALID_TRANSITION for skips, reversals and self-transitions.
func (m Machine) Transition(to State, at time.Time) (Machine, error) {
	if !CanTransition(m.state, to) {
		return m, apperr.InvalidTransition(string(m.state), string(to))
	}
	history := make([]Entry, len(m.history), len(m.history)+1)
	copy(history, m.history)
	return Machine{
		state:   to,
		history: append(history, Entry{State: to, EnteredAt: at}),
	}, nil
}
