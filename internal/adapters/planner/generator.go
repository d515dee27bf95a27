// Package planner adapts the rule-based scheduler to the plan generator port.
package planner

import (
	"context"

	"github.com/example/gmpsched/internal/core/planner"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// Generator implements secondary.PlanGenerator with the built-in strategies.
type Generator struct {
	strategies []planner.Strategy
	opts       planner.Options
	logger     *logging.Logger
}

// NewGenerator creates a generator running the given strategies, or every
// built-in strategy when none are given.
func NewGenerator(opts planner.Options, logger *logging.Logger, strategies ...planner.Strategy) *Generator {
	if len(strategies) == 0 {
		strategies = planner.Strategies
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Generator{
		strategies: strategies,
		opts:       opts,
		logger:     logger.WithComponent("planner"),
	}
}

// Propose implements secondary.PlanGenerator. A strategy that cannot place
// every order is skipped, so the result may be empty.
func (g *Generator) Propose(ctx context.Context, req secondary.GenerationRequest) ([]secondary.PlanDraft, error) {
	opts := g.opts
	if !req.Start.IsZero() {
		opts.Start = req.Start
	}

	drafts := make([]secondary.PlanDraft, 0, len(g.strategies))
	for _, s := range g.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := planner.Plan(s, req.Orders, req.Equipment, opts)
		if err != nil {
			g.logger.Warn("strategy skipped", "strategy", string(s), "error", err)
			continue
		}
		drafts = append(drafts, ToDraft(res))
	}
	return drafts, nil
}

// ToDraft converts a planner result into the draft shape a generator returns.
func ToDraft(res planner.Result) secondary.PlanDraft {
	d := secondary.PlanDraft{
		ID:          res.ID,
		Name:        res.Name,
		Description: res.Description,
		Items:       make([]secondary.DraftItem, 0, len(res.Items)),
	}
	for _, it := range res.Items {
		d.Items = append(d.Items, draftItem(it))
	}
	return d
}

func draftItem(it production.ScheduleItem) secondary.DraftItem {
	return secondary.DraftItem{
		OrderID:     it.OrderID,
		EquipmentID: it.EquipmentID,
		Process:     string(it.Process),
		Start:       it.Start,
		End:         it.End,
		Note:        it.Note,
	}
}

var _ secondary.PlanGenerator = (*Generator)(nil)
