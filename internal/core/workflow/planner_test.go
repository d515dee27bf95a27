package workflow

import (
	"testing"
	"time"

	"github.com/example/gmpsched/internal/core/effects"
	"github.com/example/gmpsched/internal/core/production"
)

func TestGenerateSelectionPlan(t *testing.T) {
	wash, _ := production.NewScheduleItem("ord-102", "eq1", production.ProcessWashing, t0, t0.Add(2*time.Hour), "")
	clean, _ := production.NewCleaningItem("eq1", t0.Add(2*time.Hour), t0.Add(3*time.Hour), "")
	plan := production.NewProductionPlan("plan-optimized", "Optimized", "", 88, []production.ScheduleItem{clean, wash}, production.KPIs{})

	sp := GenerateSelectionPlan(SelectionPlanInput{SessionID: "s1", Plan: plan, Operator: "alice"})

	if sp.Reserve.SessionID != "s1" || sp.Reserve.PlanID != "plan-optimized" {
		t.Errorf("Reserve = %+v", sp.Reserve)
	}
	if len(sp.Reserve.Windows) != 2 {
		t.Fatalf("windows = %d, want 2 (batch and clean-down)", len(sp.Reserve.Windows))
	}
	if sp.Reserve.Windows[0].OrderID != "ord-102" || sp.Reserve.Windows[1].OrderID != "" {
		t.Errorf("windows not in schedule order: %+v", sp.Reserve.Windows)
	}

	effs := sp.Effects()
	if len(effs) != 2 || effs[0].EffectType() != "reserve" || effs[1].EffectType() != "log" {
		t.Errorf("effects = %+v", effs)
	}
}

func TestGenerateReleasePlan(t *testing.T) {
	effs := GenerateReleasePlan("s1", "discarded")
	release, ok := effs[0].(effects.ReleaseEffect)
	if !ok || release.SessionID != "s1" {
		t.Fatalf("first effect = %+v, want release for s1", effs[0])
	}
	log, ok := effs[1].(effects.LogEffect)
	if !ok || log.Fields["reason"] != "discarded" {
		t.Errorf("second effect = %+v", effs[1])
	}
}
