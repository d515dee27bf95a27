package app

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/constraint"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/core/scoring"
	"github.com/example/gmpsched/internal/core/workflow"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/ports/primary"
)

// session is the state of one scheduling run. Every field below mu is
// guarded by it; calls take it with TryLock so a session serves one call
// at a time.
type session struct {
	id        string
	createdAt time.Time
	logger    *logging.Logger

	// ctx is cancelled by CancelSession and bounds every provider call.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	machine    workflow.Machine
	orders     []production.Order
	equipment  []production.Equipment
	report     *constraint.Report
	candidates map[string]primary.Candidate
	confirmed  *primary.ConfirmedPlan
}

func newSession(id string, now time.Time, orders []production.Order, equipment []production.Equipment, logger *logging.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	slices.SortFunc(orders, func(a, b production.Order) int {
		return cmp.Compare(a.ID, b.ID)
	})
	slices.SortFunc(equipment, func(a, b production.Equipment) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return &session{
		id:         id,
		createdAt:  now,
		logger:     logger.WithSession(id),
		ctx:        ctx,
		cancel:     cancel,
		machine:    workflow.New(now),
		orders:     orders,
		equipment:  equipment,
		candidates: make(map[string]primary.Candidate),
	}
}

// callContext returns a context that ends when either the caller's context
// or the session ends.
func (s *session) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *session) cancelled() error {
	if s.ctx.Err() != nil {
		return apperr.New(apperr.CodeSessionNotFound, "session %s was cancelled", s.id).
			WithDetail("session", s.id)
	}
	return nil
}

// rankedCandidates returns the candidate set best first.
func (s *session) rankedCandidates() []primary.Candidate {
	plans := make([]production.ProductionPlan, 0, len(s.candidates))
	for _, c := range s.candidates {
		plans = append(plans, c.Plan)
	}
	ranked := scoring.Rank(plans)
	out := make([]primary.Candidate, 0, len(ranked))
	for _, p := range ranked {
		out = append(out, s.candidates[p.ID()])
	}
	return out
}

func (s *session) setOrderStatus(status production.OrderStatus) {
	for i, o := range s.orders {
		s.orders[i] = o.WithStatus(status)
	}
}

func (s *session) cloneOrders() []production.Order {
	out := make([]production.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

func (s *session) snapshot() *primary.SessionSnapshot {
	snap := &primary.SessionSnapshot{
		ID:         s.id,
		State:      s.machine.State(),
		History:    s.machine.History(),
		Orders:     s.cloneOrders(),
		Equipment:  slices.Clone(s.equipment),
		Candidates: s.rankedCandidates(),
		CreatedAt:  s.createdAt,
	}
	if s.report != nil {
		r := *s.report
		snap.Report = &r
	}
	if s.confirmed != nil {
		snap.ConfirmedPlanID = s.confirmed.Plan.ID()
	}
	return snap
}
