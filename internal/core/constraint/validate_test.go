package constraint

import (
	"reflect"
	"testing"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/production"
)

var (
	day0 = time.Date(2023, 11, 1, 8, 0, 0, 0, time.UTC)

	ginseng   = production.Material{ID: "m1", Name: "Ginseng", Toxicity: production.ToxicityNone, Category: "root", StandardMoisture: 12}
	aconite   = production.Material{ID: "m2", Name: "Aconite", Toxicity: production.ToxicityHigh, Category: "root", StandardMoisture: 10}
	wolfberry = production.Material{ID: "m4", Name: "Wolfberry", Toxicity: production.ToxicityNone, Category: "fruit", StandardMoisture: 13}
	pinellia  = production.Material{ID: "m5", Name: "Pinellia", Toxicity: production.ToxicityLow, Category: "tuber", StandardMoisture: 14}

	shop = []production.Equipment{
		{ID: "eq1", Name: "Washer A1", Process: production.ProcessWashing, CapacityKg: 500, Status: production.EquipmentIdle},
		{ID: "eq2", Name: "Steamer B1", Process: production.ProcessSteaming, CapacityKg: 300, Status: production.EquipmentIdle},
		{ID: "eq3", Name: "Dryer C1", Process: production.ProcessDrying, CapacityKg: 1000, Status: production.EquipmentRunning},
		{ID: "eq4", Name: "Cutter D1", Process: production.ProcessCutting, CapacityKg: 500, Status: production.EquipmentIdle},
		{ID: "eq5", Name: "Packager E1", Process: production.ProcessPackaging, CapacityKg: 1000, Status: production.EquipmentIdle},
	}
)

func mustOrder(t *testing.T, id string, m production.Material, qty float64) production.Order {
	t.Helper()
	o, err := production.NewOrder(id, m, qty, day0, "")
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func at(hours float64) time.Time {
	return day0.Add(time.Duration(hours * float64(time.Hour)))
}

func stage(t *testing.T, orderID, eqID string, p production.ProcessType, from, to float64) production.ScheduleItem {
	t.Helper()
	it, err := production.NewScheduleItem(orderID, eqID, p, at(from), at(to), "")
	if err != nil {
		t.Fatal(err)
	}
	return it
}

func clean(t *testing.T, eqID string, from, to float64) production.ScheduleItem {
	t.Helper()
	it, err := production.NewCleaningItem(eqID, at(from), at(to), "")
	if err != nil {
		t.Fatal(err)
	}
	return it
}

// fullRoute schedules every stage of a root order back to back from start,
// one hour per stage.
func fullRoute(t *testing.T, orderID string, start float64) []production.ScheduleItem {
	t.Helper()
	eqs := []string{"eq1", "eq2", "eq3", "eq4", "eq5"}
	procs := []production.ProcessType{
		production.ProcessWashing, production.ProcessSteaming, production.ProcessDrying,
		production.ProcessCutting, production.ProcessPackaging,
	}
	var items []production.ScheduleItem
	for i := range procs {
		items = append(items, stage(t, orderID, eqs[i], procs[i], start+float64(i), start+float64(i+1)))
	}
	return items
}

func hasFinding(r Report, rule Rule, orderID, equipmentID string) bool {
	for _, f := range r.Findings {
		if f.Rule == rule && f.OrderID == orderID && f.EquipmentID == equipmentID {
			return true
		}
	}
	return false
}

func TestValidateAcceptsCompleteSchedule(t *testing.T) {
	orders := []production.Order{mustOrder(t, "ord-101", ginseng, 200)}
	report := Validate(orders, shop, fullRoute(t, "ord-101", 0))

	if !report.Valid {
		t.Fatalf("expected valid report, got %+v", report.Findings)
	}
	if len(report.Findings) != 0 {
		t.Errorf("expected no findings, got %+v", report.Findings)
	}
	if report.Err() != nil {
		t.Errorf("Err() = %v, want nil", report.Err())
	}
}

// Scenario B: toxic Aconite then non-toxic Ginseng on the washer, no gap.
func TestToxicityIsolationRequiresCleaning(t *testing.T) {
	orders := []production.Order{
		mustOrder(t, "ord-102", aconite, 100),
		mustOrder(t, "ord-101", ginseng, 200),
	}
	schedule := append(fullRoute(t, "ord-102", 0), fullRoute(t, "ord-101", 5)...)
	// Put the second washing right after the first one.
	for i, it := range schedule {
		if it.OrderID == "ord-101" && it.Process == production.ProcessWashing {
			schedule[i] = stage(t, "ord-101", "eq1", production.ProcessWashing, 1, 2)
		}
	}
	report := Validate(orders, shop, schedule)

	if report.Valid {
		t.Fatal("expected blocking finding")
	}
	if !hasFinding(report, RuleToxicityIsolation, "ord-101", "eq1") {
		t.Fatalf("expected toxicity_isolation on eq1, got %+v", report.Findings)
	}
	if report.CleaningCycles == 0 {
		t.Error("transition should be counted as a cleaning cycle")
	}

	err := report.Err()
	if !apperr.Is(err, apperr.CodeConstraintViolation) {
		t.Errorf("Err() = %v, want CONSTRAINT_VIOLATION", err)
	}
}

func TestInsertingCleaningClearsIsolationFinding(t *testing.T) {
	orders := []production.Order{
		mustOrder(t, "ord-102", aconite, 100),
		mustOrder(t, "ord-101", ginseng, 200),
	}
	without := []production.ScheduleItem{
		stage(t, "ord-102", "eq1", production.ProcessWashing, 0, 2),
		stage(t, "ord-101", "eq1", production.ProcessWashing, 2, 4),
	}
	with := append([]production.ScheduleItem{clean(t, "eq1", 2, 3)},
		stage(t, "ord-102", "eq1", production.ProcessWashing, 0, 2),
		stage(t, "ord-101", "eq1", production.ProcessWashing, 3, 5),
	)

	before := Validate(orders, shop, without)
	after := Validate(orders, shop, with)

	if len(before.ByRule(RuleToxicityIsolation)) != 1 {
		t.Fatalf("before: isolation findings = %+v", before.ByRule(RuleToxicityIsolation))
	}
	if got := after.ByRule(RuleToxicityIsolation); len(got) != 0 {
		t.Errorf("after: isolation findings = %+v, want none", got)
	}
	if before.CleaningCycles != 1 || after.CleaningCycles != 1 {
		t.Errorf("cleaning cycles before=%d after=%d, want 1 and 1", before.CleaningCycles, after.CleaningCycles)
	}
}

func TestIsolationTransitions(t *testing.T) {
	tests := []struct {
		name      string
		first     production.Material
		second    production.Material
		wantCycle bool
	}{
		{name: "toxic to non-toxic", first: aconite, second: ginseng, wantCycle: true},
		{name: "toxic to different toxic", first: aconite, second: pinellia, wantCycle: true},
		{name: "toxic to same material", first: aconite, second: aconite, wantCycle: false},
		{name: "non-toxic to toxic", first: ginseng, second: aconite, wantCycle: false},
		{name: "non-toxic to non-toxic", first: ginseng, second: wolfberry, wantCycle: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := []production.Order{mustOrder(t, "a", tt.first, 10), mustOrder(t, "b", tt.second, 10)}
			items := []production.ScheduleItem{
				stage(t, "a", "eq1", production.ProcessWashing, 0, 1),
				stage(t, "b", "eq1", production.ProcessWashing, 1, 2),
			}
			report := ValidatePlan(orders, shop, items)
			gotCycle := CleaningCycles(orders, items) == 1
			if gotCycle != tt.wantCycle {
				t.Errorf("cleaning cycle = %v, want %v", gotCycle, tt.wantCycle)
			}
			if hasFinding(report, RuleToxicityIsolation, "b", "eq1") != tt.wantCycle {
				t.Errorf("isolation finding presence = %v, want %v", !tt.wantCycle, tt.wantCycle)
			}
		})
	}
}

// Scenario D: 300 kg order, 200 kg steamer.
func TestCapacity(t *testing.T) {
	small := []production.Equipment{
		shop[0],
		{ID: "eq2", Name: "Steamer B1", Process: production.ProcessSteaming, CapacityKg: 200, Status: production.EquipmentIdle},
		shop[2], shop[3], shop[4],
	}
	orders := []production.Order{mustOrder(t, "ord-1", ginseng, 300)}

	t.Run("shop level", func(t *testing.T) {
		report := Validate(orders, small, nil)
		if report.Valid {
			t.Fatal("expected blocking capacity finding")
		}
		got := report.ByRule(RuleCapacity)
		if len(got) != 1 || got[0].OrderID != "ord-1" || got[0].Severity != SeverityBlocking {
			t.Errorf("capacity findings = %+v", got)
		}
	})

	t.Run("schedule level", func(t *testing.T) {
		report := Validate(orders, small, fullRoute(t, "ord-1", 0))
		if !hasFinding(report, RuleCapacity, "ord-1", "eq2") {
			t.Errorf("expected capacity finding on eq2, got %+v", report.Findings)
		}
	})
}

func TestShopLevelChecks(t *testing.T) {
	noSteamer := []production.Equipment{shop[0], shop[2], shop[3], shop[4].WithStatus(production.EquipmentMaintenance)}
	orders := []production.Order{
		mustOrder(t, "ord-101", ginseng, 200),
		mustOrder(t, "ord-104", wolfberry, 150),
		mustOrder(t, "ord-105", wolfberry, 10).WithPerception(20, production.VisualFailed),
	}

	report := ValidateShop(orders, noSteamer)

	if !hasFinding(report, RuleCompleteness, "ord-101", "") {
		t.Errorf("root order without steamer should be incomplete: %+v", report.Findings)
	}
	if hasFinding(report, RuleCompleteness, "ord-104", "") {
		t.Error("fruit order does not need a steamer")
	}
	if !hasFinding(report, RuleEquipmentAvailability, "", "eq5") {
		t.Error("expected maintenance warning for eq5")
	}
	if !hasFinding(report, RuleVisualCheck, "ord-105", "") {
		t.Error("expected visual check warning for failed inspection")
	}
	if len(report.Warnings()) != 2 {
		t.Errorf("warnings = %+v, want 2", report.Warnings())
	}
}

func TestScheduleStructureRules(t *testing.T) {
	orders := []production.Order{
		mustOrder(t, "ord-101", ginseng, 200),
		mustOrder(t, "ord-104", wolfberry, 150),
	}

	tests := []struct {
		name      string
		schedule  func(t *testing.T) []production.ScheduleItem
		rule      Rule
		orderID   string
		equipment string
	}{
		{
			name: "missing stage",
			schedule: func(t *testing.T) []production.ScheduleItem {
				return fullRoute(t, "ord-101", 0)[:4]
			},
			rule: RuleCompleteness, orderID: "ord-101",
		},
		{
			name: "fruit steamed",
			schedule: func(t *testing.T) []production.ScheduleItem {
				return append(fullRoute(t, "ord-101", 0),
					stage(t, "ord-104", "eq2", production.ProcessSteaming, 10, 11))
			},
			rule: RuleCompleteness, orderID: "ord-104", equipment: "eq2",
		},
		{
			name: "stages out of order",
			schedule: func(t *testing.T) []production.ScheduleItem {
				items := fullRoute(t, "ord-101", 0)
				items[2] = stage(t, "ord-101", "eq3", production.ProcessDrying, 0.5, 3)
				return items
			},
			rule: RuleSequence, orderID: "ord-101", equipment: "eq3",
		},
		{
			name: "overlap on one machine",
			schedule: func(t *testing.T) []production.ScheduleItem {
				return append(fullRoute(t, "ord-101", 0),
					stage(t, "ord-104", "eq1", production.ProcessWashing, 0.5, 1.5))
			},
			rule: RuleOverlap, orderID: "ord-104", equipment: "eq1",
		},
		{
			name: "wrong machine type",
			schedule: func(t *testing.T) []production.ScheduleItem {
				items := fullRoute(t, "ord-101", 0)
				items[3].EquipmentID = "eq5"
				items[3].Start, items[3].End = at(20), at(21)
				items[4].Start, items[4].End = at(21), at(22)
				return items
			},
			rule: RuleEquipmentMismatch, orderID: "ord-101", equipment: "eq5",
		},
		{
			name: "unknown equipment",
			schedule: func(t *testing.T) []production.ScheduleItem {
				return append(fullRoute(t, "ord-101", 0), clean(t, "eq9", 10, 11))
			},
			rule: RuleUnknownReference, equipment: "eq9",
		},
		{
			name: "unknown order",
			schedule: func(t *testing.T) []production.ScheduleItem {
				return append(fullRoute(t, "ord-101", 0), stage(t, "ord-999", "eq1", production.ProcessWashing, 10, 11))
			},
			rule: RuleUnknownReference, orderID: "ord-999", equipment: "eq1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ValidatePlan(orders, shop, tt.schedule(t))
			if report.Valid {
				t.Fatal("expected blocking finding")
			}
			if !hasFinding(report, tt.rule, tt.orderID, tt.equipment) {
				t.Errorf("expected %s finding for order=%q equipment=%q, got %+v",
					tt.rule, tt.orderID, tt.equipment, report.Findings)
			}
		})
	}
}

func TestMaintenanceEquipmentIsWarningOnly(t *testing.T) {
	withMaintenance := append([]production.Equipment(nil), shop...)
	withMaintenance[0] = withMaintenance[0].WithStatus(production.EquipmentMaintenance)
	orders := []production.Order{mustOrder(t, "ord-101", ginseng, 200)}

	report := Validate(orders, withMaintenance, fullRoute(t, "ord-101", 0))
	if !report.Valid {
		t.Fatalf("maintenance must not block: %+v", report.Findings)
	}
	if !hasFinding(report, RuleEquipmentAvailability, "ord-101", "eq1") {
		t.Errorf("expected availability warning, got %+v", report.Findings)
	}
}

func TestValidateIsIdempotentAndOrderIndependent(t *testing.T) {
	orders := []production.Order{
		mustOrder(t, "ord-102", aconite, 100),
		mustOrder(t, "ord-101", ginseng, 200),
	}
	items := []production.ScheduleItem{
		stage(t, "ord-102", "eq1", production.ProcessWashing, 0, 2),
		stage(t, "ord-101", "eq1", production.ProcessWashing, 2, 4),
		stage(t, "ord-101", "eq2", production.ProcessSteaming, 1, 3),
	}
	reversed := []production.ScheduleItem{items[2], items[1], items[0]}

	first := Validate(orders, shop, items)
	second := Validate(orders, shop, items)
	third := Validate(orders, shop, reversed)

	if !reflect.DeepEqual(first, second) {
		t.Error("validation is not idempotent")
	}
	if !reflect.DeepEqual(first, third) {
		t.Errorf("findings depend on item order:\n%+v\n%+v", first.Findings, third.Findings)
	}
	if first.Findings[0].Severity != SeverityBlocking {
		t.Error("blocking findings must sort first")
	}
}
