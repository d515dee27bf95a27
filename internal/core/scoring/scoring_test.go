package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/example/gmpsched/internal/core/production"
)

var (
	day0 = time.Date(2023, 11, 1, 8, 0, 0, 0, time.UTC)

	ginseng   = production.Material{ID: "m1", Name: "Ginseng", Toxicity: production.ToxicityNone, Category: "root", StandardMoisture: 12}
	aconite   = production.Material{ID: "m2", Name: "Aconite", Toxicity: production.ToxicityHigh, Category: "root", StandardMoisture: 10}
	wolfberry = production.Material{ID: "m4", Name: "Wolfberry", Toxicity: production.ToxicityNone, Category: "fruit", StandardMoisture: 13}
)

func order(t *testing.T, id string, m production.Material, deadline time.Time) production.Order {
	t.Helper()
	o, err := production.NewOrder(id, m, 100, deadline, "")
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func item(t *testing.T, orderID, eqID string, p production.ProcessType, from, to float64) production.ScheduleItem {
	t.Helper()
	start := day0.Add(time.Duration(from * float64(time.Hour)))
	end := day0.Add(time.Duration(to * float64(time.Hour)))
	var (
		it  production.ScheduleItem
		err error
	)
	if p == production.ProcessCleaning {
		it, err = production.NewCleaningItem(eqID, start, end, "")
	} else {
		it, err = production.NewScheduleItem(orderID, eqID, p, start, end, "")
	}
	if err != nil {
		t.Fatal(err)
	}
	return it
}

func TestScoreItems(t *testing.T) {
	fruit := order(t, "ord-104", wolfberry, day0)
	toxic := order(t, "ord-102", aconite, day0)
	clean := order(t, "ord-101", ginseng, day0)
	late := order(t, "ord-late", wolfberry, day0.AddDate(0, 0, -3))

	tests := []struct {
		name   string
		orders []production.Order
		items  []production.ScheduleItem
		want   Result
	}{
		{
			name:   "single fruit order",
			orders: []production.Order{fruit},
			items: []production.ScheduleItem{
				item(t, "ord-104", "eq1", production.ProcessWashing, 0, 2),
				item(t, "ord-104", "eq3", production.ProcessDrying, 2, 8),
				item(t, "ord-104", "eq4", production.ProcessCutting, 8, 10),
				item(t, "ord-104", "eq5", production.ProcessPackaging, 10, 11),
			},
			want: Result{TotalDurationHours: 11, EquipmentUtilization: 25, DeadlineAdherence: 100, CompositeScore: 62.5},
		},
		{
			name:   "cleaning is not productive",
			orders: []production.Order{toxic, clean},
			items: []production.ScheduleItem{
				item(t, "ord-102", "eq1", production.ProcessWashing, 0, 2),
				item(t, "", "eq1", production.ProcessCleaning, 2, 3),
				item(t, "ord-101", "eq1", production.ProcessWashing, 3, 5),
			},
			want: Result{TotalDurationHours: 5, CleaningCycles: 1, EquipmentUtilization: 80, DeadlineAdherence: 100, CompositeScore: 75},
		},
		{
			name:   "late and missing orders",
			orders: []production.Order{late, fruit},
			items: []production.ScheduleItem{
				item(t, "ord-late", "eq1", production.ProcessWashing, 0, 1),
			},
			want: Result{TotalDurationHours: 1, EquipmentUtilization: 100, DeadlineAdherence: 0, CompositeScore: 80},
		},
		{
			name:   "empty plan",
			orders: nil,
			items:  nil,
			want:   Result{DeadlineAdherence: 100, CompositeScore: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreItems(DefaultWeights, tt.items, tt.orders)
			if got != tt.want {
				t.Errorf("ScoreItems = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScoreIsIndependentOfItemOrder(t *testing.T) {
	orders := []production.Order{
		order(t, "ord-102", aconite, day0),
		order(t, "ord-101", ginseng, day0),
	}
	items := []production.ScheduleItem{
		item(t, "ord-102", "eq1", production.ProcessWashing, 0, 2),
		item(t, "", "eq1", production.ProcessCleaning, 2, 3),
		item(t, "ord-101", "eq1", production.ProcessWashing, 3, 5),
		item(t, "ord-102", "eq2", production.ProcessSteaming, 2, 6),
		item(t, "ord-101", "eq2", production.ProcessSteaming, 6, 10),
		item(t, "ord-102", "eq3", production.ProcessDrying, 6, 13.2),
		item(t, "ord-101", "eq3", production.ProcessDrying, 13.2, 19.2),
	}
	want := ScoreItems(DefaultWeights, items, orders)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]production.ScheduleItem(nil), items...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := ScoreItems(DefaultWeights, shuffled, orders); got != want {
			t.Fatalf("permutation %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestScoreUsesPlanItems(t *testing.T) {
	orders := []production.Order{order(t, "ord-104", wolfberry, day0)}
	items := []production.ScheduleItem{item(t, "ord-104", "eq1", production.ProcessWashing, 0, 2)}
	plan := production.NewProductionPlan("p", "n", "", 0, items, production.KPIs{})

	got := Score(plan, orders)
	if got != ScoreItems(DefaultWeights, items, orders) {
		t.Errorf("Score and ScoreItems disagree: %+v", got)
	}
	if got.KPIs().TotalDurationHours != 2 {
		t.Errorf("KPIs().TotalDurationHours = %v, want 2", got.KPIs().TotalDurationHours)
	}
}

func TestRank(t *testing.T) {
	a := production.NewProductionPlan("a", "", "", 80, nil, production.KPIs{TotalDurationHours: 20})
	b := production.NewProductionPlan("b", "", "", 90, nil, production.KPIs{TotalDurationHours: 30})
	c := production.NewProductionPlan("c", "", "", 80, nil, production.KPIs{TotalDurationHours: 10})
	d := production.NewProductionPlan("d", "", "", 80, nil, production.KPIs{TotalDurationHours: 10})

	ranked := Rank([]production.ProductionPlan{a, d, b, c})
	var ids []string
	for _, p := range ranked {
		ids = append(ids, p.ID())
	}
	want := []string{"b", "c", "d", "a"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Rank = %v, want %v", ids, want)
		}
	}
}
