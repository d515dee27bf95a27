package constraint

import (
	"fmt"
	"slices"

	"github.com/example/gmpsched/internal/core/production"
)

// Validate checks orders and equipment, and the proposed schedule when one is
// given. A nil schedule runs the shop-level checks only; an empty non-nil
// schedule is validated as a plan that schedules nothing.
func Validate(orders []production.Order, equipment []production.Equipment, schedule []production.ScheduleItem) Report {
	if schedule == nil {
		return ValidateShop(orders, equipment)
	}
	return ValidatePlan(orders, equipment, schedule)
}

// ValidateShop checks that the registered equipment can process every order.
func ValidateShop(orders []production.Order, equipment []production.Equipment) Report {
	var findings []Finding

	byProcess := make(map[production.ProcessType][]production.Equipment)
	for _, eq := range equipment {
		byProcess[eq.Process] = append(byProcess[eq.Process], eq)
		if !eq.Available() {
			findings = append(findings, Finding{
				Rule:        RuleEquipmentAvailability,
				Severity:    SeverityWarning,
				EquipmentID: eq.ID,
				Message:     fmt.Sprintf("%s (%s) is under maintenance", eq.Name, eq.ID),
			})
		}
	}

	for _, o := range orders {
		for _, p := range production.Route(o.Material) {
			candidates := byProcess[p]
			if len(candidates) == 0 {
				findings = append(findings, Finding{
					Rule:     RuleCompleteness,
					Severity: SeverityBlocking,
					OrderID:  o.ID,
					Message:  fmt.Sprintf("no %s equipment is registered for order %s", p, o.ID),
				})
				continue
			}
			if !slices.ContainsFunc(candidates, func(eq production.Equipment) bool { return eq.CapacityKg >= o.QuantityKg }) {
				findings = append(findings, Finding{
					Rule:     RuleCapacity,
					Severity: SeverityBlocking,
					OrderID:  o.ID,
					Message: fmt.Sprintf("order %s needs %g kg but the largest %s equipment holds %g kg",
						o.ID, o.QuantityKg, p, maxCapacity(candidates)),
				})
			}
		}
	}

	findings = append(findings, visualFindings(orders)...)
	return newReport(findings, 0)
}

// ValidatePlan checks a proposed schedule against the orders and equipment.
func ValidatePlan(orders []production.Order, equipment []production.Equipment, schedule []production.ScheduleItem) Report {
	items := production.SortedItems(schedule)
	orderByID := indexOrders(orders)
	equipmentByID := make(map[string]production.Equipment, len(equipment))
	for _, eq := range equipment {
		equipmentByID[eq.ID] = eq
	}

	var findings []Finding
	findings = append(findings, referenceFindings(items, orderByID, equipmentByID)...)
	findings = append(findings, equipmentFindings(items, orderByID, equipmentByID)...)
	findings = append(findings, routeFindings(orders, items)...)
	findings = append(findings, overlapFindings(items)...)

	isolation, cycles := isolationFindings(items, orderByID)
	findings = append(findings, isolation...)
	findings = append(findings, visualFindings(orders)...)

	return newReport(findings, cycles)
}

// CleaningCycles counts the toxic-to-other transitions on each machine that
// require a clean-down, whether or not the schedule contains one.
func CleaningCycles(orders []production.Order, schedule []production.ScheduleItem) int {
	_, cycles := isolationFindings(production.SortedItems(schedule), indexOrders(orders))
	return cycles
}

func indexOrders(orders []production.Order) map[string]production.Order {
	m := make(map[string]production.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return m
}

func referenceFindings(items []production.ScheduleItem, orders map[string]production.Order, equipment map[string]production.Equipment) []Finding {
	var findings []Finding
	for _, it := range items {
		if _, ok := equipment[it.EquipmentID]; !ok {
			findings = append(findings, Finding{
				Rule:        RuleUnknownReference,
				Severity:    SeverityBlocking,
				OrderID:     it.OrderID,
				EquipmentID: it.EquipmentID,
				Message:     fmt.Sprintf("schedule references unknown equipment %q", it.EquipmentID),
			})
		}
		if it.IsCleaning() {
			continue
		}
		if _, ok := orders[it.OrderID]; !ok {
			findings = append(findings, Finding{
				Rule:        RuleUnknownReference,
				Severity:    SeverityBlocking,
				OrderID:     it.OrderID,
				EquipmentID: it.EquipmentID,
				Message:     fmt.Sprintf("schedule references unknown order %q", it.OrderID),
			})
		}
	}
	return findings
}

// equipmentFindings covers process mismatch, capacity and availability of
// the machine each item is assigned to.
func equipmentFindings(items []production.ScheduleItem, orders map[string]production.Order, equipment map[string]production.Equipment) []Finding {
	var findings []Finding
	for _, it := range items {
		eq, ok := equipment[it.EquipmentID]
		if !ok {
			continue
		}
		if !eq.Available() {
			findings = append(findings, Finding{
				Rule:        RuleEquipmentAvailability,
				Severity:    SeverityWarning,
				OrderID:     it.OrderID,
				EquipmentID: eq.ID,
				Message:     fmt.Sprintf("%s is scheduled on %s (%s) which is under maintenance", it.Process, eq.Name, eq.ID),
			})
		}
		if it.IsCleaning() {
			continue
		}
		if it.Process != eq.Process {
			findings = append(findings, Finding{
				Rule:        RuleEquipmentMismatch,
				Severity:    SeverityBlocking,
				OrderID:     it.OrderID,
				EquipmentID: eq.ID,
				Message:     fmt.Sprintf("%s stage of order %s is assigned to %s equipment %s", it.Process, it.OrderID, eq.Process, eq.ID),
			})
		}
		o, ok := orders[it.OrderID]
		if ok && o.QuantityKg > eq.CapacityKg {
			findings = append(findings, Finding{
				Rule:        RuleCapacity,
				Severity:    SeverityBlocking,
				OrderID:     o.ID,
				EquipmentID: eq.ID,
				Message:     fmt.Sprintf("order %s is %g kg but %s holds %g kg", o.ID, o.QuantityKg, eq.ID, eq.CapacityKg),
			})
		}
	}
	return findings
}

// routeFindings checks that each order has exactly one item per stage of its
// route, and that the stages run in route order without overlapping.
func routeFindings(orders []production.Order, items []production.ScheduleItem) []Finding {
	byOrder := make(map[string][]production.ScheduleItem)
	for _, it := range items {
		if !it.IsCleaning() {
			byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
		}
	}

	var findings []Finding
	for _, o := range orders {
		route := production.Route(o.Material)
		stages := make(map[production.ProcessType][]production.ScheduleItem, len(route))
		for _, it := range byOrder[o.ID] {
			stages[it.Process] = append(stages[it.Process], it)
		}

		complete := true
		for _, p := range route {
			switch n := len(stages[p]); {
			case n == 0:
				complete = false
				findings = append(findings, Finding{
					Rule:     RuleCompleteness,
					Severity: SeverityBlocking,
					OrderID:  o.ID,
					Message:  fmt.Sprintf("order %s has no %s stage", o.ID, p),
				})
			case n > 1:
				complete = false
				findings = append(findings, Finding{
					Rule:     RuleCompleteness,
					Severity: SeverityBlocking,
					OrderID:  o.ID,
					Message:  fmt.Sprintf("order %s has %d %s stages, want exactly one", o.ID, n, p),
				})
			}
		}
		for p, its := range stages {
			if !slices.Contains(route, p) {
				findings = append(findings, Finding{
					Rule:        RuleCompleteness,
					Severity:    SeverityBlocking,
					OrderID:     o.ID,
					EquipmentID: its[0].EquipmentID,
					Message:     fmt.Sprintf("order %s (%s) does not take a %s stage", o.ID, o.Material.Category, p),
				})
			}
		}
		if !complete {
			continue
		}

		for i := 1; i < len(route); i++ {
			prev, next := stages[route[i-1]][0], stages[route[i]][0]
			if next.Start.Before(prev.End) {
				findings = append(findings, Finding{
					Rule:        RuleSequence,
					Severity:    SeverityBlocking,
					OrderID:     o.ID,
					EquipmentID: next.EquipmentID,
					Message: fmt.Sprintf("order %s starts %s at %s before %s ends at %s",
						o.ID, route[i], next.Start.Format(timeLayout), route[i-1], prev.End.Format(timeLayout)),
				})
			}
		}
	}
	return findings
}

func overlapFindings(items []production.ScheduleItem) []Finding {
	var findings []Finding
	for eqID, its := range byEquipment(items) {
		for i := 1; i < len(its); i++ {
			// Items are sorted by start; compare against every earlier item
			// still running.
			for j := i - 1; j >= 0; j-- {
				if !its[j].Overlaps(its[i]) {
					continue
				}
				findings = append(findings, Finding{
					Rule:        RuleOverlap,
					Severity:    SeverityBlocking,
					OrderID:     its[i].OrderID,
					EquipmentID: eqID,
					Message: fmt.Sprintf("%s overlaps %s on %s at %s",
						describe(its[i]), describe(its[j]), eqID, its[i].Start.Format(timeLayout)),
				})
			}
		}
	}
	return findings
}

// isolationFindings enforces the clean-down between a toxic batch and the
// next batch of a different or non-toxic material on the same machine.
func isolationFindings(items []production.ScheduleItem, orders map[string]production.Order) ([]Finding, int) {
	var findings []Finding
	cycles := 0
	for eqID, its := range byEquipment(items) {
		var batches, cleaning []production.ScheduleItem
		for _, it := range its {
			if it.IsCleaning() {
				cleaning = append(cleaning, it)
			} else {
				batches = append(batches, it)
			}
		}
		for i := 1; i < len(batches); i++ {
			a, b := batches[i-1], batches[i]
			prev, ok := orders[a.OrderID]
			if !ok {
				continue
			}
			next, ok := orders[b.OrderID]
			if !ok {
				continue
			}
			if !requiresCleaning(prev.Material, next.Material) {
				continue
			}
			cycles++
			if hasCleaningBetween(cleaning, a, b) {
				continue
			}
			findings = append(findings, Finding{
				Rule:        RuleToxicityIsolation,
				Severity:    SeverityBlocking,
				OrderID:     b.OrderID,
				EquipmentID: eqID,
				Message: fmt.Sprintf("%s follows toxic %s (%s) on %s without a cleaning interval",
					next.Material.Name, prev.Material.Name, prev.Material.Toxicity, eqID),
			})
		}
	}
	return findings, cycles
}

func requiresCleaning(prev, next production.Material) bool {
	if !prev.Toxicity.IsToxic() {
		return false
	}
	return !next.Toxicity.IsToxic() || next.ID != prev.ID
}

func hasCleaningBetween(cleaning []production.ScheduleItem, a, b production.ScheduleItem) bool {
	return slices.ContainsFunc(cleaning, func(c production.ScheduleItem) bool {
		return !c.Start.Before(a.End) && !c.End.After(b.Start)
	})
}

func visualFindings(orders []production.Order) []Finding {
	var findings []Finding
	for _, o := range orders {
		switch o.VisualCheck {
		case production.VisualFailed:
			findings = append(findings, Finding{
				Rule:     RuleVisualCheck,
				Severity: SeverityWarning,
				OrderID:  o.ID,
				Message:  fmt.Sprintf("visual inspection of order %s (%s) failed", o.ID, o.Material.Name),
			})
		case production.VisualUnresolved:
			findings = append(findings, Finding{
				Rule:     RuleVisualCheck,
				Severity: SeverityWarning,
				OrderID:  o.ID,
				Message:  fmt.Sprintf("visual inspection of order %s (%s) could not be completed", o.ID, o.Material.Name),
			})
		}
	}
	return findings
}

// byEquipment groups sorted items per machine, keeping their order.
func byEquipment(items []production.ScheduleItem) map[string][]production.ScheduleItem {
	m := make(map[string][]production.ScheduleItem)
	for _, it := range items {
		m[it.EquipmentID] = append(m[it.EquipmentID], it)
	}
	return m
}

func maxCapacity(equipment []production.Equipment) float64 {
	var largest float64
	for _, eq := range equipment {
		if eq.CapacityKg > largest {
			largest = eq.CapacityKg
		}
	}
	return largest
}

func describe(it production.ScheduleItem) string {
	if it.IsCleaning() {
		return "cleaning"
	}
	return fmt.Sprintf("%s of %s", it.Process, it.OrderID)
}

const timeLayout = "2006-01-02 15:04"
