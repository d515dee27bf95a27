package planner

import (
	"slices"
	"strings"
	"time"

	"github.com/example/gmpsched/internal/core/moisture"
	"github.com/example/gmpsched/internal/core/production"
)

// line tracks one machine while the plan is built.
type line struct {
	eq     production.Equipment
	freeAt time.Time
	// dirty is the last toxic material run on the line since its last
	// clean-down, nil when clean.
	dirty *production.Material
}

type lines struct {
	byProcess map[production.ProcessType][]*line
}

func newLines(equipment []production.Equipment, start time.Time) *lines {
	ls := &lines{byProcess: make(map[production.ProcessType][]*line)}
	sorted := slices.Clone(equipment)
	slices.SortFunc(sorted, func(a, b production.Equipment) int { return strings.Compare(a.ID, b.ID) })
	for _, eq := range sorted {
		ls.byProcess[eq.Process] = append(ls.byProcess[eq.Process], &line{eq: eq, freeAt: start})
	}
	return ls
}

// pick returns the line giving the earliest start for the stage. Lines that
// can hold the order and are not under maintenance are preferred; when none
// qualify the remaining lines of the process type are used so that the
// validator reports the problem.
func (ls *lines) pick(p production.ProcessType, o production.Order, ready time.Time, cleaning time.Duration) *line {
	candidates := ls.byProcess[p]
	if len(candidates) == 0 {
		return nil
	}
	tiers := [][]*line{nil, nil, nil}
	for _, l := range candidates {
		switch {
		case l.eq.CapacityKg >= o.QuantityKg && l.eq.Available():
			tiers[0] = append(tiers[0], l)
		case l.eq.CapacityKg >= o.QuantityKg:
			tiers[1] = append(tiers[1], l)
		default:
			tiers[2] = append(tiers[2], l)
		}
	}
	for _, tier := range tiers {
		var best *line
		var bestStart time.Time
		for _, l := range tier {
			start := l.earliestStart(o.Material, ready, cleaning)
			if best == nil || start.Before(bestStart) {
				best, bestStart = l, start
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

func (l *line) needsCleaning(next production.Material) bool {
	if l.dirty == nil {
		return false
	}
	return !next.Toxicity.IsToxic() || next.ID != l.dirty.ID
}

func (l *line) earliestStart(next production.Material, ready time.Time, cleaning time.Duration) time.Time {
	free := l.freeAt
	if l.needsCleaning(next) {
		free = free.Add(cleaning)
	}
	if ready.After(free) {
		return ready
	}
	return free
}

// place schedules the stage on the line and returns the stage item plus any
// clean-down items placed before or after it.
func (l *line) place(o production.Order, p production.ProcessType, ready time.Time, cleaning time.Duration, r rules) (production.ScheduleItem, []production.ScheduleItem, error) {
	var cleanings []production.ScheduleItem
	if l.needsCleaning(o.Material) {
		c, err := production.NewCleaningItem(l.eq.ID, l.freeAt, l.freeAt.Add(cleaning), "clean-down after "+l.dirty.Name)
		if err != nil {
			return production.ScheduleItem{}, nil, err
		}
		cleanings = append(cleanings, c)
		l.freeAt = c.End
		l.dirty = nil
	}

	start := l.freeAt
	if ready.After(start) {
		start = ready
	}
	end := start.Add(moisture.StageDuration(p, production.BaseDuration(p), o))
	item, err := production.NewScheduleItem(o.ID, l.eq.ID, p, start, end, stageNote(o, p))
	if err != nil {
		return production.ScheduleItem{}, nil, err
	}
	l.freeAt = end

	if o.Material.Toxicity.IsToxic() {
		m := o.Material
		l.dirty = &m
		if r.cleanEagerly {
			c, err := production.NewCleaningItem(l.eq.ID, end, end.Add(cleaning), "clean-down after "+m.Name)
			if err != nil {
				return production.ScheduleItem{}, nil, err
			}
			cleanings = append(cleanings, c)
			l.freeAt = c.End
			l.dirty = nil
		}
	}
	l.freeAt = l.freeAt.Add(r.buffer)
	return item, cleanings, nil
}
