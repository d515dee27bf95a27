package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/constraint"
	"github.com/example/gmpsched/internal/core/effects"
	"github.com/example/gmpsched/internal/core/moisture"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/core/scoring"
	"github.com/example/gmpsched/internal/core/workflow"
	"github.com/example/gmpsched/internal/ctxutil"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/metrics"
	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// Defaults applied when a SchedulingConfig field or a call option is zero.
const (
	DefaultPerceptionTimeout     = 30 * time.Second
	DefaultGenerationTimeout     = 2 * time.Minute
	DefaultPerceptionConcurrency = 4
	DefaultPlanningStartHour     = 8
)

// kpiTolerance is the largest provider/computed KPI difference that is not
// reported as a discrepancy.
const kpiTolerance = 0.01

// SchedulingConfig holds the dependencies and tunables of the scheduling service.
type SchedulingConfig struct {
	Catalog    secondary.CatalogProvider
	Equipment  primary.EquipmentService
	Samples    secondary.SampleSource
	Perception secondary.PerceptionProvider
	Generator  secondary.PlanGenerator
	Executor   EffectExecutor
	Exporters  map[string]secondary.PlanExporter

	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time

	PerceptionTimeout     time.Duration
	GenerationTimeout     time.Duration
	PerceptionConcurrency int
	PlanningStartHour     int
}

// SchedulingServiceImpl implements the SchedulingService interface.
// It owns the sessions; each one is served by one call at a time.
type SchedulingServiceImpl struct {
	cfg    SchedulingConfig
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSchedulingService creates a new SchedulingService with injected dependencies.
func NewSchedulingService(cfg SchedulingConfig) *SchedulingServiceImpl {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.PerceptionTimeout <= 0 {
		cfg.PerceptionTimeout = DefaultPerceptionTimeout
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.PerceptionConcurrency <= 0 {
		cfg.PerceptionConcurrency = DefaultPerceptionConcurrency
	}
	if cfg.PlanningStartHour <= 0 || cfg.PlanningStartHour > 23 {
		cfg.PlanningStartHour = DefaultPlanningStartHour
	}
	return &SchedulingServiceImpl{
		cfg:      cfg,
		logger:   cfg.Logger.WithComponent("scheduling"),
		sessions: make(map[string]*session),
	}
}

// StartSession builds the session's orders and equipment.
func (s *SchedulingServiceImpl) StartSession(ctx context.Context, req primary.StartSessionRequest) (*primary.StartSessionResponse, error) {
	materials, err := s.cfg.Catalog.Materials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}
	byID := make(map[string]production.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	equipment := slices.Clone(req.Equipment)
	if req.Equipment == nil {
		equipment, err = s.cfg.Equipment.ListEquipment(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load equipment: %w", err)
		}
	}

	orders, rejected := buildOrders(req.Orders, byID)

	id := uuid.NewString()
	sess := newSession(id, s.cfg.Clock(), orders, equipment, s.logger)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.cfg.Metrics.SessionOpened()

	sess.logger.WithContext(ctx).Info("session started",
		"orders", len(orders),
		"rejected", len(rejected),
		"equipment", len(equipment),
	)
	for _, r := range rejected {
		sess.logger.Warn("order rejected at intake", "order", r.OrderID, "code", string(r.Code), "reason", r.Reason)
	}

	return &primary.StartSessionResponse{
		SessionID: id,
		State:     sess.machine.State(),
		Orders:    sess.cloneOrders(),
		Equipment: slices.Clone(sess.equipment),
		Rejected:  rejected,
	}, nil
}

// buildOrders constructs every order it can. Orders that fail are reported
// and left out.
func buildOrders(inputs []primary.OrderInput, materials map[string]production.Material) ([]production.Order, []primary.RejectedOrder) {
	var (
		orders   []production.Order
		rejected []primary.RejectedOrder
		seen     = make(map[string]bool, len(inputs))
	)
	reject := func(id string, err error) {
		code := apperr.CodeOf(err)
		if code == "" {
			code = apperr.CodeInvalidInput
		}
		rejected = append(rejected, primary.RejectedOrder{OrderID: id, Code: code, Reason: err.Error()})
	}

	for _, in := range inputs {
		if seen[in.ID] {
			reject(in.ID, apperr.New(apperr.CodeInvalidInput, "duplicate order id %s", in.ID))
			continue
		}
		material, ok := materials[in.MaterialID]
		if !ok {
			reject(in.ID, apperr.New(apperr.CodeNotFound, "unknown material %q", in.MaterialID).
				WithDetail("order", in.ID))
			continue
		}
		priority, err := production.ParsePriority(in.Priority)
		if err != nil {
			reject(in.ID, apperr.New(apperr.CodeInvalidInput, "%v", err).WithDetail("order", in.ID))
			continue
		}
		order, err := production.NewOrder(in.ID, material, in.QuantityKg, in.Deadline, priority)
		if err != nil {
			reject(in.ID, err)
			continue
		}
		seen[in.ID] = true
		orders = append(orders, order)
	}
	return orders, rejected
}

// RunPerception inspects every order without a terminal visual check.
func (s *SchedulingServiceImpl) RunPerception(ctx context.Context, sessionID string, opts primary.PerceptionOptions) (*primary.PerceptionResult, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := workflow.CanRunPerception(sess.machine.State()).Error(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.cfg.PerceptionTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = s.cfg.PerceptionConcurrency
	}

	callCtx, cancel := sess.callContext(ctx)
	defer cancel()

	var pending []int
	for i, o := range sess.orders {
		if !o.VisualCheck.Terminal() {
			pending = append(pending, i)
		}
	}
	outcomes := s.inspect(callCtx, sess.orders, pending, opts)
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if err := perceptionAborted(ctx, sess); err != nil {
			return nil, err
		}
		var retry, idx []int
		for n, out := range outcomes {
			if out.VisualCheck == production.VisualUnresolved {
				retry = append(retry, n)
				idx = append(idx, pending[n])
			}
		}
		if len(retry) == 0 {
			break
		}
		sess.logger.Info("retrying perception", "attempt", attempt, "orders", len(retry))
		again := s.inspect(callCtx, sess.orders, idx, opts)
		for k, n := range retry {
			outcomes[n] = again[k]
		}
	}
	// An aborted call leaves the orders untouched so a later run starts clean.
	if err := perceptionAborted(ctx, sess); err != nil {
		return nil, err
	}

	result := &primary.PerceptionResult{Outcomes: make([]primary.PerceptionOutcome, 0, len(outcomes))}
	for n, idx := range pending {
		out := outcomes[n]
		order := sess.orders[idx]
		switch {
		case out.VisualCheck == production.VisualUnresolved:
			order = order.WithUnresolvedPerception()
			result.Unresolved++
			sess.logger.Warn("perception failed", "order", order.ID, "error", out.Error)
		default:
			order = order.WithPerception(*out.Moisture, out.VisualCheck)
			if out.VisualCheck == production.VisualPassed {
				result.Passed++
			} else {
				result.Failed++
			}
			if moisture.NeedsExtendedDrying(order) {
				result.ExtendedDrying++
			}
		}
		sess.orders[idx] = order
		result.Outcomes = append(result.Outcomes, out)
	}

	terminal := 0
	for _, o := range sess.orders {
		if o.VisualCheck.Terminal() {
			terminal++
		}
	}
	guard := workflow.CanCompletePerception(workflow.PerceptionContext{
		State:      sess.machine.State(),
		OrderCount: len(sess.orders),
		Terminal:   terminal,
	})
	if guard.Allowed {
		if err := s.transition(sess, workflow.StateValidation); err != nil {
			return nil, err
		}
	}

	result.State = sess.machine.State()
	sess.logger.Info("perception complete",
		"passed", result.Passed,
		"failed", result.Failed,
		"unresolved", result.Unresolved,
		"extended_drying", result.ExtendedDrying,
	)
	return result, nil
}

func perceptionAborted(ctx context.Context, sess *session) error {
	if err := sess.cancelled(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.ProviderUnavailable("perception", err)
	}
	return nil
}

// inspect runs the perception provider for the pending orders with bounded
// concurrency. Outcomes are returned in the order of pending.
func (s *SchedulingServiceImpl) inspect(ctx context.Context, orders []production.Order, pending []int, opts primary.PerceptionOptions) []primary.PerceptionOutcome {
	outcomes := make([]primary.PerceptionOutcome, len(pending))
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup

	for n, idx := range pending {
		order := orders[idx]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				outcomes[n] = unresolvedOutcome(order.ID, err)
				return
			}
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[n] = unresolvedOutcome(order.ID, ctx.Err())
				return
			}
			outcomes[n] = s.inspectOne(ctx, order, opts.Timeout)
		}()
	}
	wg.Wait()
	return outcomes
}

func (s *SchedulingServiceImpl) inspectOne(ctx context.Context, order production.Order, timeout time.Duration) primary.PerceptionOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	image, err := s.cfg.Samples.Sample(ctx, order.ID)
	if err != nil {
		return unresolvedOutcome(order.ID, fmt.Errorf("failed to fetch sample: %w", err))
	}
	analysis, err := s.cfg.Perception.Analyze(ctx, image)
	if err != nil {
		return unresolvedOutcome(order.ID, err)
	}
	if analysis == nil || analysis.EstimatedMoisture < 0 || analysis.EstimatedMoisture > 100 {
		return unresolvedOutcome(order.ID, apperr.ProviderUnavailable("perception", errors.New("moisture estimate out of range")))
	}

	check := production.VisualPassed
	switch analysis.Verdict {
	case secondary.VerdictPass:
	case secondary.VerdictFail:
		check = production.VisualFailed
	default:
		return unresolvedOutcome(order.ID, apperr.ProviderUnavailable("perception", fmt.Errorf("unknown verdict %q", analysis.Verdict)))
	}

	m := analysis.EstimatedMoisture
	return primary.PerceptionOutcome{
		OrderID:      order.ID,
		MaterialName: analysis.MaterialName,
		DetectedForm: analysis.DetectedForm,
		Moisture:     &m,
		VisualCheck:  check,
		Rationale:    analysis.Rationale,
	}
}

func unresolvedOutcome(orderID string, err error) primary.PerceptionOutcome {
	return primary.PerceptionOutcome{
		OrderID:     orderID,
		VisualCheck: production.VisualUnresolved,
		Error:       err.Error(),
	}
}

// Validate runs the constraint validator against the session's shop.
func (s *SchedulingServiceImpl) Validate(ctx context.Context, sessionID string) (*constraint.Report, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := workflow.CanRunValidation(sess.machine.State()).Error(); err != nil {
		return nil, err
	}
	report := s.validate(sess)
	return &report, nil
}

func (s *SchedulingServiceImpl) validate(sess *session) constraint.Report {
	report := constraint.ValidateShop(sess.orders, sess.equipment)
	sess.report = &report
	s.cfg.Metrics.RecordValidation(report.Valid)
	sess.logger.Info("shop validated",
		"valid", report.Valid,
		"blocking", len(report.Blocking()),
		"warnings", len(report.Warnings()),
	)
	return report
}

// AdvanceToGeneration re-validates and moves to generation.
func (s *SchedulingServiceImpl) AdvanceToGeneration(ctx context.Context, sessionID string) (*constraint.Report, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := workflow.CanRunValidation(sess.machine.State()).Error(); err != nil {
		return nil, err
	}
	report := s.validate(sess)

	blocking := report.Blocking()
	guard := workflow.CanAdvanceToGeneration(workflow.AdvanceContext{
		State:            sess.machine.State(),
		BlockingFindings: len(blocking),
		FirstBlocking:    firstMessage(blocking),
	})
	if !guard.Allowed {
		return &report, report.Err()
	}
	if err := s.transition(sess, workflow.StateGeneration); err != nil {
		return nil, err
	}
	return &report, nil
}

func firstMessage(findings []constraint.Finding) string {
	if len(findings) == 0 {
		return ""
	}
	return findings[0].Message
}

// Generate asks the plan generator for candidates. When the run yields no
// usable candidate the result is still returned with NO_VALID_CANDIDATES so
// the caller can show the rejected drafts.
func (s *SchedulingServiceImpl) Generate(ctx context.Context, sessionID string, opts primary.GenerationOptions) (*primary.GenerationResult, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := workflow.CanGenerate(sess.machine.State()).Error(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.cfg.GenerationTimeout
	}
	if opts.Start.IsZero() {
		opts.Start = s.planningStart()
	}

	callCtx, cancel := sess.callContext(ctx)
	defer cancel()
	callCtx, cancelTimeout := context.WithTimeout(callCtx, opts.Timeout)
	defer cancelTimeout()

	drafts, err := s.cfg.Generator.Propose(callCtx, secondary.GenerationRequest{
		Orders:    sess.cloneOrders(),
		Equipment: slices.Clone(sess.equipment),
		Start:     opts.Start,
	})
	if cerr := sess.cancelled(); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		if !apperr.Is(err, apperr.CodeProviderUnavailable) {
			err = apperr.ProviderUnavailable("generation", err)
		}
		sess.logger.Warn("generation failed", "error", err.Error(), "candidates_kept", len(sess.candidates))
		return nil, err
	}

	result := &primary.GenerationResult{}
	accepted := 0
	for _, draft := range drafts {
		cand, rej := s.evaluateDraft(sess, draft)
		if rej != nil {
			result.Rejected = append(result.Rejected, *rej)
			s.cfg.Metrics.RecordCandidate("rejected")
			sess.logger.Warn("draft rejected", "draft", draft.ID, "reason", rej.Reason)
			continue
		}
		sess.candidates[cand.Plan.ID()] = *cand
		accepted++
		s.cfg.Metrics.RecordCandidate("accepted")
	}
	result.Candidates = sess.rankedCandidates()

	sess.logger.Info("generation complete",
		"drafts", len(drafts),
		"accepted", accepted,
		"rejected", len(result.Rejected),
		"candidates", len(result.Candidates),
	)
	if len(result.Candidates) == 0 {
		return result, apperr.New(apperr.CodeNoValidCandidates,
			"generation produced no valid candidate (%d draft(s), %d rejected)", len(drafts), len(result.Rejected)).
			WithDetail("session", sess.id)
	}
	return result, nil
}

// evaluateDraft converts a draft, validates it against the session and
// recomputes its score. Exactly one of the results is non-nil.
func (s *SchedulingServiceImpl) evaluateDraft(sess *session, draft secondary.PlanDraft) (*primary.Candidate, *primary.RejectedDraft) {
	if strings.TrimSpace(draft.ID) == "" {
		return nil, &primary.RejectedDraft{DraftID: draft.ID, Reason: "draft has no id"}
	}
	if draft.Malformed != "" {
		return nil, &primary.RejectedDraft{DraftID: draft.ID, Reason: draft.Malformed}
	}
	items, err := draftItems(draft.Items)
	if err != nil {
		return nil, &primary.RejectedDraft{DraftID: draft.ID, Reason: err.Error()}
	}

	report := constraint.ValidatePlan(sess.orders, sess.equipment, items)
	if !report.Valid {
		blocking := report.Blocking()
		return nil, &primary.RejectedDraft{
			DraftID:  draft.ID,
			Reason:   fmt.Sprintf("%d blocking finding(s): %s", len(blocking), firstMessage(blocking)),
			Findings: blocking,
		}
	}

	score := scoring.ScoreItems(scoring.DefaultWeights, items, sess.orders)
	plan := production.NewProductionPlan(draft.ID, draft.Name, draft.Description, score.CompositeScore, items, score.KPIs())
	return &primary.Candidate{
		Plan:          plan,
		Score:         score,
		Report:        report,
		Discrepancies: discrepancies(draft, score),
	}, nil
}

func draftItems(in []secondary.DraftItem) ([]production.ScheduleItem, error) {
	items := make([]production.ScheduleItem, 0, len(in))
	for _, d := range in {
		var (
			item production.ScheduleItem
			err  error
		)
		if d.Process == string(production.ProcessCleaning) {
			item, err = production.NewCleaningItem(d.EquipmentID, d.Start, d.End, d.Note)
		} else {
			var process production.ProcessType
			process, err = production.ParseProcessType(d.Process)
			if err != nil {
				return nil, apperr.New(apperr.CodeInvalidInput, "%v", err).
					WithDetail("order", d.OrderID).
					WithDetail("equipment", d.EquipmentID)
			}
			item, err = production.NewScheduleItem(d.OrderID, d.EquipmentID, process, d.Start, d.End, d.Note)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// discrepancies lists provider-claimed values that differ from the computed ones.
func discrepancies(draft secondary.PlanDraft, score scoring.Result) []primary.KPIDiscrepancy {
	var out []primary.KPIDiscrepancy
	check := func(field string, claimed, computed float64) {
		if math.Abs(claimed-computed) > kpiTolerance {
			out = append(out, primary.KPIDiscrepancy{Field: field, Claimed: claimed, Computed: computed})
		}
	}
	if draft.ClaimedScore != nil {
		check("score", *draft.ClaimedScore, score.CompositeScore)
	}
	if k := draft.ClaimedKPIs; k != nil {
		check("total_duration_hours", k.TotalDurationHours, score.TotalDurationHours)
		check("cleaning_cycles", float64(k.CleaningCycles), float64(score.CleaningCycles))
		check("equipment_utilization", k.EquipmentUtilization, score.EquipmentUtilization)
	}
	return out
}

// SelectCandidate confirms a candidate and reserves its equipment windows.
func (s *SchedulingServiceImpl) SelectCandidate(ctx context.Context, sessionID, planID string) (*primary.ConfirmedPlan, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	cand, exists := sess.candidates[planID]
	blocking := 0
	if exists {
		// The shop may have changed since generation; decide on a fresh report.
		report := constraint.ValidatePlan(sess.orders, sess.equipment, cand.Plan.Items())
		blocking = len(report.Blocking())
		cand.Report = report
	}
	guard := workflow.CanSelectCandidate(workflow.SelectContext{
		State:            sess.machine.State(),
		PlanID:           planID,
		CandidateExists:  exists,
		BlockingFindings: blocking,
	})
	if err := guard.Error(); err != nil {
		return nil, err
	}

	operator := ctxutil.OperatorFromContext(ctx)
	plan := workflow.GenerateSelectionPlan(workflow.SelectionPlanInput{
		SessionID: sess.id,
		Plan:      cand.Plan,
		Operator:  operator,
	})
	callCtx, cancel := sess.callContext(ctx)
	defer cancel()
	if err := s.cfg.Executor.Execute(callCtx, plan.Effects()); err != nil {
		return nil, fmt.Errorf("failed to reserve equipment for plan %s: %w", planID, err)
	}
	if err := sess.cancelled(); err != nil {
		s.releaseBookings(sess, "cancelled during selection")
		return nil, err
	}

	if err := s.transition(sess, workflow.StateDecision); err != nil {
		s.releaseBookings(sess, "transition failed")
		return nil, err
	}
	sess.setOrderStatus(production.OrderScheduled)
	sess.candidates[planID] = cand
	sess.confirmed = &primary.ConfirmedPlan{
		SessionID:   sess.id,
		Plan:        cand.Plan,
		Score:       cand.Score,
		Orders:      sess.cloneOrders(),
		Equipment:   slices.Clone(sess.equipment),
		ConfirmedAt: s.cfg.Clock(),
		ConfirmedBy: operator,
	}
	return copyConfirmed(sess.confirmed), nil
}

// DiscardDecision drops the confirmed plan and returns to generation.
func (s *SchedulingServiceImpl) DiscardDecision(ctx context.Context, sessionID string) error {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	if err := workflow.CanDiscardDecision(sess.machine.State()).Error(); err != nil {
		return err
	}
	if err := s.cfg.Executor.Execute(ctx, workflow.GenerateReleasePlan(sess.id, "discarded")); err != nil {
		return fmt.Errorf("failed to release reservations: %w", err)
	}
	if err := s.transition(sess, workflow.StateGeneration); err != nil {
		return err
	}
	sess.setOrderStatus(production.OrderPending)
	sess.confirmed = nil
	return nil
}

// ExportConfirmed returns a read-only copy of the confirmed plan.
func (s *SchedulingServiceImpl) ExportConfirmed(ctx context.Context, sessionID string) (*primary.ConfirmedPlan, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.canExport(sess); err != nil {
		return nil, err
	}
	return copyConfirmed(sess.confirmed), nil
}

// DispatchConfirmed sends the confirmed plan through the named exporter.
func (s *SchedulingServiceImpl) DispatchConfirmed(ctx context.Context, sessionID, target string) error {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.canExport(sess); err != nil {
		return err
	}
	exporter, ok := s.cfg.Exporters[target]
	if !ok {
		known := slices.Sorted(maps.Keys(s.cfg.Exporters))
		return apperr.New(apperr.CodeNotFound, "unknown dispatch target %q (available: %s)", target, strings.Join(known, ", ")).
			WithDetail("target", target)
	}

	err = exporter.Export(ctx, sess.confirmed.Document())
	s.cfg.Metrics.RecordDispatch(target, err)
	if err != nil {
		return fmt.Errorf("failed to dispatch plan %s to %s: %w", sess.confirmed.Plan.ID(), target, err)
	}
	sess.logger.WithContext(ctx).Info("plan dispatched", "plan", sess.confirmed.Plan.ID(), "target", target)
	return nil
}

func (s *SchedulingServiceImpl) canExport(sess *session) error {
	return workflow.CanExport(workflow.ExportContext{
		State:        sess.machine.State(),
		HasConfirmed: sess.confirmed != nil,
	}).Error()
}

// CancelSession aborts in-flight provider calls, releases reservations and
// drops the session. It waits for a running call to return.
func (s *SchedulingServiceImpl) CancelSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return sessionNotFound(sessionID)
	}

	// The session is unreachable from here on, release or not.
	defer s.cfg.Metrics.SessionClosed()

	sess.cancel()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	logger := sess.logger.WithContext(ctx)
	if err := s.cfg.Executor.Execute(ctx, workflow.GenerateReleasePlan(sess.id, "cancelled")); err != nil {
		logger.Error("failed to release reservations of cancelled session",
			"session", sess.id,
			"hint", "gmpsched bookings release "+sess.id,
			"error", err)
		return fmt.Errorf("failed to release reservations of session %s: %w", sess.id, err)
	}
	sess.confirmed = nil
	logger.Info("session cancelled", "state", string(sess.machine.State()))
	return nil
}

// GetSession returns a snapshot of the session.
func (s *SchedulingServiceImpl) GetSession(ctx context.Context, sessionID string) (*primary.SessionSnapshot, error) {
	sess, release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()
	return sess.snapshot(), nil
}

// acquire looks up a session and takes its lock without waiting.
func (s *SchedulingServiceImpl) acquire(sessionID string) (*session, func(), error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, sessionNotFound(sessionID)
	}
	if !sess.mu.TryLock() {
		return nil, nil, apperr.New(apperr.CodeSessionBusy, "session %s is serving another call", sessionID).
			WithDetail("session", sessionID)
	}
	if err := sess.cancelled(); err != nil {
		sess.mu.Unlock()
		return nil, nil, err
	}
	return sess, sess.mu.Unlock, nil
}

func sessionNotFound(sessionID string) error {
	return apperr.New(apperr.CodeSessionNotFound, "session %s not found", sessionID).
		WithDetail("session", sessionID)
}

func (s *SchedulingServiceImpl) transition(sess *session, to workflow.State) error {
	from := sess.machine.State()
	next, err := sess.machine.Transition(to, s.cfg.Clock())
	if err != nil {
		return err
	}
	sess.machine = next
	s.cfg.Metrics.RecordTransition(string(from), string(to))
	sess.logger.Info("state changed", "from", string(from), "to", string(to))
	return nil
}

func (s *SchedulingServiceImpl) releaseBookings(sess *session, reason string) {
	effs := []effects.Effect{effects.ReleaseEffect{SessionID: sess.id}}
	if err := s.cfg.Executor.Execute(context.Background(), effs); err != nil {
		sess.logger.Error("failed to release reservations", "reason", reason, "error", err.Error())
	}
}

// planningStart is the configured start hour on the current UTC day.
func (s *SchedulingServiceImpl) planningStart() time.Time {
	now := s.cfg.Clock().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), s.cfg.PlanningStartHour, 0, 0, 0, time.UTC)
}

func copyConfirmed(c *primary.ConfirmedPlan) *primary.ConfirmedPlan {
	out := *c
	out.Orders = make([]production.Order, len(c.Orders))
	for i, o := range c.Orders {
		out.Orders[i] = o.Clone()
	}
	out.Equipment = slices.Clone(c.Equipment)
	return &out
}

var _ primary.SchedulingService = (*SchedulingServiceImpl)(nil)
