package workflow

import (
	"fmt"

	"github.com/example/gmpsched/internal/apperr"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Code    apperr.Code
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return apperr.New(r.Code, "%s", r.Reason)
}

func allow() GuardResult {
	return GuardResult{Allowed: true}
}

func requireState(current, want State, action string) GuardResult {
	if current == want {
		return allow()
	}
	return GuardResult{
		Code:   apperr.CodeInvalidTransition,
		Reason: fmt.Sprintf("cannot %s in %s state (requires %s)", action, current, want),
	}
}

// CanRunPerception evaluates whether perception may be (re)run.
func CanRunPerception(current State) GuardResult {
	return requireState(current, StatePerception, "run perception")
}

// PerceptionContext provides context for completing the perception stage.
type PerceptionContext struct {
	State      State
	OrderCount int
	Terminal   int // orders with passed, failed or unresolved visual check
}

// CanCompletePerception evaluates whether the session can move to validation.
// Rules:
// - Session must be in perception
// - Every order must have a terminal visual check
func CanCompletePerception(ctx PerceptionContext) GuardResult {
	if r := requireState(ctx.State, StatePerception, "complete perception"); !r.Allowed {
		return r
	}
	if ctx.Terminal < ctx.OrderCount {
		return GuardResult{
			Code:   apperr.CodeInvalidTransition,
			Reason: fmt.Sprintf("%d of %d orders still await perception", ctx.OrderCount-ctx.Terminal, ctx.OrderCount),
		}
	}
	return allow()
}

// CanRunValidation evaluates whether the validator may be run.
func CanRunValidation(current State) GuardResult {
	return requireState(current, StateValidation, "run validation")
}

// AdvanceContext provides context for leaving validation.
type AdvanceContext struct {
	State            State
	BlockingFindings int
	FirstBlocking    string
}

// CanAdvanceToGeneration evaluates whether generation may start.
// Rules:
// - Session must be in validation
// - The latest validation must have no blocking finding
func CanAdvanceToGeneration(ctx AdvanceContext) GuardResult {
	if r := requireState(ctx.State, StateValidation, "advance to generation"); !r.Allowed {
		return r
	}
	if ctx.BlockingFindings > 0 {
		return GuardResult{
			Code:   apperr.CodeConstraintViolation,
			Reason: fmt.Sprintf("%d blocking finding(s) must be resolved first: %s", ctx.BlockingFindings, ctx.FirstBlocking),
		}
	}
	return allow()
}

// CanGenerate evaluates whether candidate generation may run.
func CanGenerate(current State) GuardResult {
	return requireState(current, StateGeneration, "generate candidates")
}

// SelectContext provides context for selecting a candidate.
type SelectContext struct {
	State            State
	PlanID           string
	CandidateExists  bool
	BlockingFindings int
}

// CanSelectCandidate evaluates whether a candidate may be confirmed.
// Rules:
// - Session must be in generation
// - The plan must be one of the session's candidates
// - The plan must have no blocking finding
func CanSelectCandidate(ctx SelectContext) GuardResult {
	if r := requireState(ctx.State, StateGeneration, "select a candidate"); !r.Allowed {
		return r
	}
	if !ctx.CandidateExists {
		return GuardResult{
			Code:   apperr.CodeNotFound,
			Reason: fmt.Sprintf("candidate %s not found", ctx.PlanID),
		}
	}
	if ctx.BlockingFindings > 0 {
		return GuardResult{
			Code:   apperr.CodeConstraintViolation,
			Reason: fmt.Sprintf("candidate %s has %d blocking finding(s)", ctx.PlanID, ctx.BlockingFindings),
		}
	}
	return allow()
}

// CanDiscardDecision evaluates whether the confirmed plan may be discarded.
func CanDiscardDecision(current State) GuardResult {
	return requireState(current, StateDecision, "discard the decision")
}

// ExportContext provides context for exporting the confirmed plan.
type ExportContext struct {
	State        State
	HasConfirmed bool
}

// CanExport evaluates whether a confirmed plan can be exported.
func CanExport(ctx ExportContext) GuardResult {
	if r := requireState(ctx.State, StateDecision, "export"); !r.Allowed {
		return r
	}
	if !ctx.HasConfirmed {
		return GuardResult{
			Code:   apperr.CodeNotFound,
			Reason: "no confirmed plan",
		}
	}
	return allow()
}
