// Package planner builds candidate schedules with simple list-scheduling
// rules. It backs the built-in plan generator and is deterministic: the same
// input always yields the same items.
package planner

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/moisture"
	"github.com/example/gmpsched/internal/core/production"
)

// Strategy selects the sequencing and cleaning rules.
type Strategy string

const (
	// StrategyOptimized runs non-toxic batches first and groups toxic
	// batches by material at the end of each machine's queue, cleaning only
	// when the next batch requires it.
	StrategyOptimized Strategy = "optimized"
	// StrategyGMPStrict runs batches by urgency and deadline, cleans after
	// every toxic batch and keeps a buffer between batches.
	StrategyGMPStrict Strategy = "gmp-strict"
)

// Strategies lists the built-in strategies in presentation order.
var Strategies = []Strategy{StrategyOptimized, StrategyGMPStrict}

// ParseStrategy converts a string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperr.New(apperr.CodeInvalidInput, "unknown planning strategy %q", s)
}

// Options tune the planner.
type Options struct {
	Start            time.Time
	CleaningInterval time.Duration
	StrictBuffer     time.Duration
}

// Defaults used when an option is zero.
const (
	DefaultCleaningInterval = time.Hour
	DefaultStrictBuffer     = 30 * time.Minute
)

func (o Options) withDefaults() Options {
	if o.CleaningInterval <= 0 {
		o.CleaningInterval = DefaultCleaningInterval
	}
	if o.StrictBuffer <= 0 {
		o.StrictBuffer = DefaultStrictBuffer
	}
	return o
}

// Result is one generated schedule.
type Result struct {
	Strategy    Strategy
	ID          string
	Name        string
	Description string
	Items       []production.ScheduleItem
}

type rules struct {
	name         string
	description  string
	sequence     func(a, b production.Order) int
	cleanEagerly bool
	buffer       time.Duration
}

func rulesFor(s Strategy, opts Options) (rules, error) {
	switch s {
	case StrategyOptimized:
		return rules{
			name:        "Optimized",
			description: "Moisture-adjusted drying; toxic batches grouped at the end of each line to minimise clean-downs.",
			sequence:    toxicLast,
		}, nil
	case StrategyGMPStrict:
		return rules{
			name: "GMP strict",
			description: fmt.Sprintf("Clean-down after every toxic batch and a %s buffer between batches on each line.",
				opts.StrictBuffer),
			sequence:     byUrgency,
			cleanEagerly: true,
			buffer:       opts.StrictBuffer,
		}, nil
	}
	return rules{}, apperr.New(apperr.CodeInvalidInput, "unknown planning strategy %q", s)
}

// Generate runs every built-in strategy. Strategies that cannot place an
// order are skipped; their errors are returned alongside the results.
func Generate(orders []production.Order, equipment []production.Equipment, opts Options) ([]Result, []error) {
	var (
		results []Result
		errs    []error
	)
	for _, s := range Strategies {
		r, err := Plan(s, orders, equipment, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
			continue
		}
		results = append(results, r)
	}
	return results, errs
}

// Plan schedules every order through its route with the given strategy.
// It fails with CONSTRAINT_VIOLATION when a stage has no equipment at all.
func Plan(s Strategy, orders []production.Order, equipment []production.Equipment, opts Options) (Result, error) {
	opts = opts.withDefaults()
	r, err := rulesFor(s, opts)
	if err != nil {
		return Result{}, err
	}

	sequence := slices.Clone(orders)
	slices.SortStableFunc(sequence, r.sequence)

	lines := newLines(equipment, opts.Start)
	var items []production.ScheduleItem
	for _, o := range sequence {
		ready := opts.Start
		for _, p := range production.Route(o.Material) {
			m := lines.pick(p, o, ready, opts.CleaningInterval)
			if m == nil {
				return Result{}, apperr.New(apperr.CodeConstraintViolation, "no %s equipment for order %s", p, o.ID).
					WithDetail("order", o.ID).
					WithDetail("rule", "completeness")
			}
			item, cleanings, err := m.place(o, p, ready, opts.CleaningInterval, r)
			if err != nil {
				return Result{}, err
			}
			items = append(items, cleanings...)
			items = append(items, item)
			ready = item.End
		}
	}

	return Result{
		Strategy:    s,
		ID:          "plan-" + string(s),
		Name:        r.name,
		Description: r.description,
		Items:       production.SortedItems(items),
	}, nil
}

// toxicLast orders non-toxic batches first, then toxic batches grouped by
// material; within a group urgent orders and earlier deadlines come first.
func toxicLast(a, b production.Order) int {
	at, bt := a.Material.Toxicity.IsToxic(), b.Material.Toxicity.IsToxic()
	if at != bt {
		if at {
			return 1
		}
		return -1
	}
	if at {
		if c := cmp.Compare(a.Material.ID, b.Material.ID); c != 0 {
			return c
		}
	}
	return byUrgency(a, b)
}

func byUrgency(a, b production.Order) int {
	au, bu := a.Priority == production.PriorityUrgent, b.Priority == production.PriorityUrgent
	if au != bu {
		if au {
			return -1
		}
		return 1
	}
	if c := a.Deadline.Compare(b.Deadline); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func stageNote(o production.Order, p production.ProcessType) string {
	var note string
	if p == production.ProcessDrying && moisture.NeedsExtendedDrying(o) {
		note = fmt.Sprintf("extended drying: moisture %s pts over standard",
			moisture.Excess(o.DetectedMoisture, o.Material.StandardMoisture).StringFixed(1))
	}
	if o.Material.Toxicity.IsToxic() {
		if note != "" {
			note += "; "
		}
		note += fmt.Sprintf("toxic (%s): line locked until clean-down", o.Material.Toxicity)
	}
	return note
}
