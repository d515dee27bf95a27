// Package primary defines the primary ports (driving adapters) for the application.
package primary

import (
	"context"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/constraint"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/core/scoring"
	"github.com/example/gmpsched/internal/core/workflow"
)

// SchedulingService defines the primary port for scheduling sessions.
// A session moves perception -> validation -> generation -> decision and
// serves one call at a time; a concurrent call fails with SESSION_BUSY.
type SchedulingService interface {
	// StartSession builds the session's orders and equipment. Orders that
	// fail construction are reported and left out; they never abort the batch.
	StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error)

	// RunPerception inspects every order that has no terminal visual check
	// and moves the session to validation once all orders have one.
	RunPerception(ctx context.Context, sessionID string, opts PerceptionOptions) (*PerceptionResult, error)

	// Validate runs the constraint validator against the shop. Re-runnable.
	Validate(ctx context.Context, sessionID string) (*constraint.Report, error)

	// AdvanceToGeneration re-validates and moves to generation when no
	// blocking finding remains.
	AdvanceToGeneration(ctx context.Context, sessionID string) (*constraint.Report, error)

	// Generate asks the plan generator for candidates, re-validates and
	// re-scores each one and merges the survivors into the candidate set.
	Generate(ctx context.Context, sessionID string, opts GenerationOptions) (*GenerationResult, error)

	// SelectCandidate confirms a candidate and reserves its equipment windows.
	SelectCandidate(ctx context.Context, sessionID, planID string) (*ConfirmedPlan, error)

	// DiscardDecision drops the confirmed plan, releases its reservations
	// and returns the session to generation.
	DiscardDecision(ctx context.Context, sessionID string) error

	// ExportConfirmed returns a read-only copy of the confirmed plan.
	ExportConfirmed(ctx context.Context, sessionID string) (*ConfirmedPlan, error)

	// DispatchConfirmed sends the confirmed plan through the named exporter.
	DispatchConfirmed(ctx context.Context, sessionID, target string) error

	// CancelSession aborts in-flight provider calls, releases reservations
	// and drops the session.
	CancelSession(ctx context.Context, sessionID string) error

	// GetSession returns a snapshot of the session.
	GetSession(ctx context.Context, sessionID string) (*SessionSnapshot, error)
}

// OrderInput is a raw order submitted for scheduling.
type OrderInput struct {
	ID         string
	MaterialID string
	QuantityKg float64
	Deadline   time.Time
	Priority   string
}

// StartSessionRequest contains parameters for opening a session.
type StartSessionRequest struct {
	Orders []OrderInput
	// Equipment overrides the registered equipment when non-nil.
	Equipment []production.Equipment
}

// RejectedOrder is an order left out of the session at intake.
type RejectedOrder struct {
	OrderID string
	Code    apperr.Code
	Reason  string
}

// StartSessionResponse contains the result of opening a session.
type StartSessionResponse struct {
	SessionID string
	State     workflow.State
	Orders    []production.Order
	Equipment []production.Equipment
	Rejected  []RejectedOrder
}

// PerceptionOptions tune a perception run.
type PerceptionOptions struct {
	Timeout     time.Duration // per provider call
	Concurrency int
	// Retries is the number of extra passes over orders whose provider
	// call failed, before they are recorded as unresolved.
	Retries int
}

// PerceptionOutcome is the result of inspecting one order.
type PerceptionOutcome struct {
	OrderID      string
	MaterialName string
	DetectedForm string
	Moisture     *float64
	VisualCheck  production.VisualCheck
	Rationale    string
	Error        string
}

// PerceptionResult summarises a perception run.
type PerceptionResult struct {
	State      workflow.State
	Outcomes   []PerceptionOutcome
	Passed     int
	Failed     int
	Unresolved int
	// ExtendedDrying counts orders whose drying stage will be lengthened.
	ExtendedDrying int
}

// GenerationOptions tune a generation run.
type GenerationOptions struct {
	Timeout time.Duration
	Start   time.Time // planning start; zero means the service default
}

// KPIDiscrepancy is a provider-claimed KPI that differs from the computed one.
type KPIDiscrepancy struct {
	Field    string
	Claimed  float64
	Computed float64
}

// Candidate is a validated, rescored plan held by a session.
type Candidate struct {
	Plan          production.ProductionPlan
	Score         scoring.Result
	Report        constraint.Report
	Discrepancies []KPIDiscrepancy
}

// RejectedDraft is a generated draft that did not become a candidate.
type RejectedDraft struct {
	DraftID  string
	Reason   string
	Findings []constraint.Finding
}

// GenerationResult contains the candidate set after a generation run.
type GenerationResult struct {
	Candidates []Candidate // ranked best first
	Rejected   []RejectedDraft
}

// ConfirmedPlan is the read-only export of a session's decision.
type ConfirmedPlan struct {
	SessionID   string
	Plan        production.ProductionPlan
	Score       scoring.Result
	Orders      []production.Order
	Equipment   []production.Equipment
	ConfirmedAt time.Time
	ConfirmedBy string
}

// Document returns the versioned interchange envelope of the plan.
func (c ConfirmedPlan) Document() production.PlanDocument {
	return production.PlanDocument{
		SchemaVersion: production.SchemaVersion,
		SessionID:     c.SessionID,
		ConfirmedAt:   c.ConfirmedAt,
		Plan:          c.Plan,
		Orders:        c.Orders,
		Equipment:     c.Equipment,
	}
}

// SessionSnapshot is a point-in-time copy of a session.
type SessionSnapshot struct {
	ID              string
	State           workflow.State
	History         []workflow.Entry
	Orders          []production.Order
	Equipment       []production.Equipment
	Report          *constraint.Report
	Candidates      []Candidate
	ConfirmedPlanID string
	CreatedAt       time.Time
}
