package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/effects"
	"github.com/example/gmpsched/internal/ctxutil"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/metrics"
	"github.com/example/gmpsched/internal/ports/secondary"
)

type unknownEffect struct{}

func (unknownEffect) EffectType() string { return "unknown" }

func TestExecuteReserveAndRelease(t *testing.T) {
	bookings := newMockBookingRepository()
	exec := NewEffectExecutor(bookings, nil, nil, nil)
	ctx := ctxutil.WithOperator(context.Background(), "shift-a")

	err := exec.Execute(ctx, []effects.Effect{
		effects.ReserveEffect{
			SessionID: "s1",
			PlanID:    "plan-a",
			Windows: []effects.Window{
				{EquipmentID: "eq1", OrderID: "ord-101", Start: day0, End: day0.Add(time.Hour)},
				{EquipmentID: "eq1", Start: day0.Add(time.Hour), End: day0.Add(2 * time.Hour)},
			},
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	list, _ := bookings.List(ctx, secondary.BookingFilters{SessionID: "s1"})
	if len(list) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(list))
	}
	if list[0].BookedBy != "shift-a" {
		t.Errorf("expected operator to be recorded, got %q", list[0].BookedBy)
	}

	if err := exec.Execute(ctx, []effects.Effect{effects.ReleaseEffect{SessionID: "s1"}}); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if bookings.count("s1") != 0 {
		t.Error("windows were not released")
	}
}

func TestExecuteReserveConflictIsCounted(t *testing.T) {
	bookings := newMockBookingRepository()
	m := metrics.New(metrics.DefaultConfig())
	exec := NewEffectExecutor(bookings, nil, nil, m)
	ctx := context.Background()
	window := []effects.Window{{EquipmentID: "eq1", Start: day0, End: day0.Add(time.Hour)}}

	if err := exec.Execute(ctx, []effects.Effect{effects.ReserveEffect{SessionID: "s1", Windows: window}}); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	err := exec.Execute(ctx, []effects.Effect{effects.ReserveEffect{SessionID: "s2", Windows: window}})
	assertCode(t, err, apperr.CodeEquipmentConflict)
	if !strings.Contains(err.Error(), "reserve effect") {
		t.Errorf("expected effect context in error, got %v", err)
	}
}

func TestExecuteLogAndComposite(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig("gmpsched")
	cfg.Output = &buf
	cfg.Level = logging.LevelDebug
	exec := NewEffectExecutor(newMockBookingRepository(), nil, logging.New(cfg), nil)

	err := exec.Execute(context.Background(), []effects.Effect{
		effects.CompositeEffect{Effects: []effects.Effect{
			effects.LogEffect{Level: "warn", Message: "line locked", Fields: map[string]any{"equipment": "eq2"}},
			effects.NoEffect{},
		}},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"line locked"`) || !strings.Contains(out, `"equipment":"eq2"`) {
		t.Errorf("log effect not written: %s", out)
	}
}

func TestExecuteUnknownEffect(t *testing.T) {
	exec := NewEffectExecutor(newMockBookingRepository(), nil, nil, nil)
	if err := exec.Execute(context.Background(), []effects.Effect{unknownEffect{}}); err == nil {
		t.Error("expected error for unknown effect type")
	}
}

func TestEquipmentLocksSerialiseOverlappingSets(t *testing.T) {
	locks := NewEquipmentLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	sets := [][]string{{"eq1", "eq2"}, {"eq2", "eq1"}, {"eq2", "eq2", "eq3"}}
	for i := 0; i < 30; i++ {
		ids := sets[i%len(sets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(ids...)
			mu.Lock()
			holders++
			maxSeen = max(maxSeen, holders)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitFor(t, done)
	if maxSeen != 1 {
		t.Errorf("expected sets sharing eq2 to be exclusive, saw %d holders", maxSeen)
	}
}
