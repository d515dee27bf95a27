// Package cli contains adapters that translate CLI operations into service
// calls and render their results.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/constraint"
	"github.com/example/gmpsched/internal/ports/primary"
)

// SchedulingAdapter is a thin adapter that translates CLI operations to
// SchedulingService calls. It depends only on the SchedulingService
// interface, enabling easy testing with mocks.
type SchedulingAdapter struct {
	service primary.SchedulingService
	out     io.Writer
}

// NewSchedulingAdapter creates a new SchedulingAdapter with the given service.
func NewSchedulingAdapter(service primary.SchedulingService, out io.Writer) *SchedulingAdapter {
	return &SchedulingAdapter{
		service: service,
		out:     out,
	}
}

// Start opens a session and lists any orders left out at intake.
func (a *SchedulingAdapter) Start(ctx context.Context, req primary.StartSessionRequest) (*primary.StartSessionResponse, error) {
	resp, err := a.service.StartSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Fprintf(a.out, "%s Session %s opened %s\n", green.Sprint("✓"), resp.SessionID, stateBanner(resp.State))
	fmt.Fprintf(a.out, "  %d order(s), %d machine(s)\n", len(resp.Orders), len(resp.Equipment))
	for _, r := range resp.Rejected {
		fmt.Fprintf(a.out, "  %s order %s rejected: %s (%s)\n", yellow.Sprint("!"), r.OrderID, r.Reason, r.Code)
	}
	return resp, nil
}

// Perceive runs perception and prints one row per inspected order.
func (a *SchedulingAdapter) Perceive(ctx context.Context, sessionID string, opts primary.PerceptionOptions) (*primary.PerceptionResult, error) {
	res, err := a.service.RunPerception(ctx, sessionID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to run perception: %w", err)
	}

	fmt.Fprintf(a.out, "\nPerception %s\n", stateBanner(res.State))
	if len(res.Outcomes) > 0 {
		w := newTable(a.out)
		fmt.Fprintln(w, "ORDER\tMATERIAL\tFORM\tMOISTURE\tCHECK\tNOTE")
		fmt.Fprintln(w, "-----\t--------\t----\t--------\t-----\t----")
		for _, o := range res.Outcomes {
			note := o.Rationale
			if o.Error != "" {
				note = o.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				o.OrderID,
				orDash(o.MaterialName),
				orDash(o.DetectedForm),
				formatMoisture(o.Moisture),
				o.VisualCheck,
				orDash(note),
			)
		}
		w.Flush()
	}
	fmt.Fprintf(a.out, "  passed %d, failed %d, unresolved %d\n", res.Passed, res.Failed, res.Unresolved)
	if res.ExtendedDrying > 0 {
		fmt.Fprintf(a.out, "  %s %d order(s) need extended drying\n", cyan.Sprint("↑"), res.ExtendedDrying)
	}
	return res, nil
}

// Validate runs the validator and prints the report.
func (a *SchedulingAdapter) Validate(ctx context.Context, sessionID string) (*constraint.Report, error) {
	report, err := a.service.Validate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate: %w", err)
	}
	fmt.Fprintln(a.out, "\nValidation")
	PrintReport(a.out, *report)
	return report, nil
}

// Advance moves to generation. A blocked advance prints the report and
// returns the violation.
func (a *SchedulingAdapter) Advance(ctx context.Context, sessionID string) error {
	report, err := a.service.AdvanceToGeneration(ctx, sessionID)
	if err != nil {
		if report != nil && apperr.Is(err, apperr.CodeConstraintViolation) {
			fmt.Fprintf(a.out, "%s cannot advance to generation\n", red.Sprint("✗"))
			PrintReport(a.out, *report)
		}
		return err
	}
	return nil
}

// Generate asks for candidates and prints them ranked, followed by any
// rejected drafts. NO_VALID_CANDIDATES still prints the rejections.
func (a *SchedulingAdapter) Generate(ctx context.Context, sessionID string, opts primary.GenerationOptions) (*primary.GenerationResult, error) {
	res, err := a.service.Generate(ctx, sessionID, opts)
	if res != nil {
		a.printCandidates(res)
	}
	return res, err
}

func (a *SchedulingAdapter) printCandidates(res *primary.GenerationResult) {
	fmt.Fprintf(a.out, "\nCandidates (%d)\n", len(res.Candidates))
	if len(res.Candidates) > 0 {
		w := newTable(a.out)
		fmt.Fprintln(w, "RANK\tID\tNAME\tSCORE\tHOURS\tCLEANINGS\tUTIL%\tON-TIME%")
		fmt.Fprintln(w, "----\t--\t----\t-----\t-----\t---------\t-----\t--------")
		for i, c := range res.Candidates {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.1f\t%d\t%.1f\t%.1f\n",
				i+1,
				c.Plan.ID(),
				c.Plan.Name(),
				c.Score.CompositeScore,
				c.Score.TotalDurationHours,
				c.Score.CleaningCycles,
				c.Score.EquipmentUtilization,
				c.Score.DeadlineAdherence,
			)
		}
		w.Flush()
	}
	for _, c := range res.Candidates {
		for _, d := range c.Discrepancies {
			fmt.Fprintf(a.out, "  %s %s: provider claimed %s %.2f, computed %.2f\n",
				yellow.Sprint("!"), c.Plan.ID(), d.Field, d.Claimed, d.Computed)
		}
		if w := len(c.Report.Warnings()); w > 0 {
			fmt.Fprintf(a.out, "  %s %s carries %d warning(s)\n", yellow.Sprint("!"), c.Plan.ID(), w)
		}
	}
	for _, r := range res.Rejected {
		fmt.Fprintf(a.out, "  %s draft %s rejected: %s\n", red.Sprint("✗"), orDash(r.DraftID), r.Reason)
		for _, f := range r.Findings {
			if f.Blocking() {
				fmt.Fprintf(a.out, "      %s %s\n", f.Rule, f.Message)
			}
		}
	}
}

// Select confirms a candidate. An empty planID selects the best-ranked one.
func (a *SchedulingAdapter) Select(ctx context.Context, sessionID, planID string) (*primary.ConfirmedPlan, error) {
	if planID == "" {
		snap, err := a.service.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if len(snap.Candidates) == 0 {
			return nil, apperr.New(apperr.CodeNoValidCandidates, "session %s has no candidates to select", sessionID)
		}
		planID = snap.Candidates[0].Plan.ID()
	}

	confirmed, err := a.service.SelectCandidate(ctx, sessionID, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", planID, err)
	}
	fmt.Fprintf(a.out, "\n%s\n", green.Sprintf("✓ Plan %s (%s) confirmed, score %.2f",
		confirmed.Plan.ID(), confirmed.Plan.Name(), confirmed.Score.CompositeScore))
	if confirmed.ConfirmedBy != "" {
		fmt.Fprintf(a.out, "  confirmed by %s at %s\n", confirmed.ConfirmedBy, confirmed.ConfirmedAt.Format(TimeLayout))
	}
	return confirmed, nil
}

// Discard drops the confirmed plan.
func (a *SchedulingAdapter) Discard(ctx context.Context, sessionID string) error {
	if err := a.service.DiscardDecision(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to discard decision: %w", err)
	}
	fmt.Fprintf(a.out, "%s decision discarded, reservations released\n", yellow.Sprint("↺"))
	return nil
}

// Dispatch sends the confirmed plan through each named exporter.
func (a *SchedulingAdapter) Dispatch(ctx context.Context, sessionID string, targets ...string) error {
	for _, target := range targets {
		if err := a.service.DispatchConfirmed(ctx, sessionID, target); err != nil {
			return fmt.Errorf("failed to dispatch to %s: %w", target, err)
		}
		fmt.Fprintf(a.out, "%s dispatched to %s\n", green.Sprint("✓"), target)
	}
	return nil
}

// Export returns the confirmed plan without printing it.
func (a *SchedulingAdapter) Export(ctx context.Context, sessionID string) (*primary.ConfirmedPlan, error) {
	confirmed, err := a.service.ExportConfirmed(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}
	return confirmed, nil
}

// Cancel aborts the session.
func (a *SchedulingAdapter) Cancel(ctx context.Context, sessionID string) error {
	return a.service.CancelSession(ctx, sessionID)
}
