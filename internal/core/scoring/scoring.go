// Package scoring computes KPIs and a composite score for candidate plans.
//
// All arithmetic runs on integer nanoseconds and shopspring decimals so the
// result does not depend on the order in which items are supplied.
package scoring

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/gmpsched/internal/core/constraint"
	"github.com/example/gmpsched/internal/core/production"
)

// Weights of the composite score components. They should sum to 1.
type Weights struct {
	Utilization decimal.Decimal
	Cleaning    decimal.Decimal
	Deadline    decimal.Decimal
}

// DefaultWeights favour machine utilization, then few clean-downs, then
// deadline adherence.
var DefaultWeights = Weights{
	Utilization: decimal.RequireFromString("0.5"),
	Cleaning:    decimal.RequireFromString("0.3"),
	Deadline:    decimal.RequireFromString("0.2"),
}

// Result holds the computed KPIs of a plan.
type Result struct {
	TotalDurationHours   float64 `json:"total_duration_hours"`
	CleaningCycles       int     `json:"cleaning_cycles"`
	EquipmentUtilization float64 `json:"equipment_utilization"`
	DeadlineAdherence    float64 `json:"deadline_adherence"`
	CompositeScore       float64 `json:"composite_score"`
}

// KPIs returns the plan-level KPI subset of the result.
func (r Result) KPIs() production.KPIs {
	return production.KPIs{
		TotalDurationHours:   r.TotalDurationHours,
		CleaningCycles:       r.CleaningCycles,
		EquipmentUtilization: r.EquipmentUtilization,
	}
}

var (
	hundred = decimal.NewFromInt(100)
	hour    = decimal.NewFromInt(int64(time.Hour))
)

// Score computes the result for a plan with DefaultWeights.
func Score(plan production.ProductionPlan, orders []production.Order) Result {
	return ScoreItems(DefaultWeights, plan.Items(), orders)
}

// ScoreItems computes the result for a set of schedule items.
func ScoreItems(w Weights, items []production.ScheduleItem, orders []production.Order) Result {
	items = production.SortedItems(items)

	total := span(items)
	util := utilization(items, total)
	cycles := constraint.CleaningCycles(orders, items)
	adherence := deadlineAdherence(items, orders)

	cleaningScore := hundred.Div(decimal.NewFromInt(int64(1 + cycles)))
	composite := w.Utilization.Mul(util).
		Add(w.Cleaning.Mul(cleaningScore)).
		Add(w.Deadline.Mul(adherence))
	composite = clamp(composite, decimal.Zero, hundred)

	return Result{
		TotalDurationHours:   decimal.NewFromInt(int64(total)).Div(hour).Round(2).InexactFloat64(),
		CleaningCycles:       cycles,
		EquipmentUtilization: util.Round(2).InexactFloat64(),
		DeadlineAdherence:    adherence.Round(2).InexactFloat64(),
		CompositeScore:       composite.Round(2).InexactFloat64(),
	}
}

// span is latest end minus earliest start over all items.
func span(items []production.ScheduleItem) time.Duration {
	if len(items) == 0 {
		return 0
	}
	first, last := items[0].Start, items[0].End
	for _, it := range items[1:] {
		if it.Start.Before(first) {
			first = it.Start
		}
		if it.End.After(last) {
			last = it.End
		}
	}
	return last.Sub(first)
}

// utilization is productive machine time over machine time available across
// the plan's span, as a percentage capped at 100. Cleaning is not productive.
func utilization(items []production.ScheduleItem, total time.Duration) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	machines := make(map[string]struct{})
	var busy time.Duration
	for _, it := range items {
		machines[it.EquipmentID] = struct{}{}
		if !it.IsCleaning() {
			busy += it.Duration()
		}
	}
	capacity := decimal.NewFromInt(int64(total)).Mul(decimal.NewFromInt(int64(len(machines))))
	pct := decimal.NewFromInt(int64(busy)).Mul(hundred).Div(capacity)
	return decimal.Min(pct, hundred)
}

// deadlineAdherence is the percentage of orders whose last stage ends by the
// end of the deadline day. Orders missing from the plan count as late.
func deadlineAdherence(items []production.ScheduleItem, orders []production.Order) decimal.Decimal {
	if len(orders) == 0 {
		return hundred
	}
	lastEnd := make(map[string]time.Time)
	for _, it := range items {
		if it.IsCleaning() {
			continue
		}
		if end, ok := lastEnd[it.OrderID]; !ok || it.End.After(end) {
			lastEnd[it.OrderID] = it.End
		}
	}
	onTime := 0
	for _, o := range orders {
		end, ok := lastEnd[o.ID]
		if ok && !end.After(o.DeadlineEnd()) {
			onTime++
		}
	}
	return decimal.NewFromInt(int64(onTime)).Mul(hundred).Div(decimal.NewFromInt(int64(len(orders))))
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(d, hi))
}

// Rank sorts plans best first: higher score, then shorter total duration,
// then plan id. The input slice is not modified.
func Rank(plans []production.ProductionPlan) []production.ProductionPlan {
	out := slices.Clone(plans)
	slices.SortStableFunc(out, func(a, b production.ProductionPlan) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.KPIs().TotalDurationHours, b.KPIs().TotalDurationHours); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}
