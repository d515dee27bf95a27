package production

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"

	"github.com/example/gmpsched/internal/apperr"
)

// ScheduleItem is one stage of one order on one machine.
// Cleaning items have Process == ProcessCleaning and no order.
type ScheduleItem struct {
	OrderID     string      `json:"order_id,omitempty"`
	EquipmentID string      `json:"equipment_id"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Process     ProcessType `json:"process"`
	Note        string      `json:"note,omitempty"`
}

// NewScheduleItem creates a production stage item.
// Fails with INVALID_INTERVAL when end is not after start.
func NewScheduleItem(orderID, equipmentID string, process ProcessType, start, end time.Time, note string) (ScheduleItem, error) {
	if !end.After(start) {
		return ScheduleItem{}, apperr.InvalidInterval(orderID, equipmentID)
	}
	return ScheduleItem{
		OrderID:     orderID,
		EquipmentID: equipmentID,
		Start:       start,
		End:         end,
		Process:     process,
		Note:        note,
	}, nil
}

// NewCleaningItem creates a synthetic cleaning interval on a machine.
func NewCleaningItem(equipmentID string, start, end time.Time, note string) (ScheduleItem, error) {
	return NewScheduleItem("", equipmentID, ProcessCleaning, start, end, note)
}

// IsCleaning reports whether the item is a cleaning interval.
func (s ScheduleItem) IsCleaning() bool {
	return s.Process == ProcessCleaning
}

// Duration of the item.
func (s ScheduleItem) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two items share any instant.
func (s ScheduleItem) Overlaps(other ScheduleItem) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// UnmarshalJSON decodes an item and re-applies the interval invariant.
func (s *ScheduleItem) UnmarshalJSON(data []byte) error {
	type raw ScheduleItem
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if !r.End.After(r.Start) {
		return apperr.InvalidInterval(r.OrderID, r.EquipmentID)
	}
	*s = ScheduleItem(r)
	return nil
}

// CompareItems orders items by start, equipment, order and process.
func CompareItems(a, b ScheduleItem) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EquipmentID, b.EquipmentID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.OrderID, b.OrderID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Process, b.Process); c != 0 {
		return c
	}
	return a.End.Compare(b.End)
}

// SortedItems returns a sorted copy of items.
func SortedItems(items []ScheduleItem) []ScheduleItem {
	out := slices.Clone(items)
	slices.SortFunc(out, CompareItems)
	return out
}

// KPIs summarises a plan.
type KPIs struct {
	TotalDurationHours   float64 `json:"total_duration_hours"`
	CleaningCycles       int     `json:"cleaning_cycles"`
	EquipmentUtilization float64 `json:"equipment_utilization"`
}

// ProductionPlan is an immutable candidate schedule. Orders and equipment
// are referenced by id only.
type ProductionPlan struct {
	id          string
	name        string
	score       float64
	description string
	items       []ScheduleItem
	kpis        KPIs
}

// NewProductionPlan builds a plan from a copy of items sorted with CompareItems.
func NewProductionPlan(id, name, description string, score float64, items []ScheduleItem, kpis KPIs) ProductionPlan {
	return ProductionPlan{
		id:          id,
		name:        name,
		score:       score,
		description: description,
		items:       SortedItems(items),
		kpis:        kpis,
	}
}

func (p ProductionPlan) ID() string          { return p.id }
func (p ProductionPlan) Name() string        { return p.name }
func (p ProductionPlan) Score() float64      { return p.score }
func (p ProductionPlan) Description() string { return p.description }
func (p ProductionPlan) KPIs() KPIs          { return p.kpis }

// Items returns a copy of the plan's items in schedule order.
func (p ProductionPlan) Items() []ScheduleItem {
	return slices.Clone(p.items)
}

// ItemsForOrder returns the order's stage items in time order.
func (p ProductionPlan) ItemsForOrder(orderID string) []ScheduleItem {
	var out []ScheduleItem
	for _, it := range p.items {
		if it.OrderID == orderID && !it.IsCleaning() {
			out = append(out, it)
		}
	}
	return out
}

// Rescored returns a copy of the plan with authoritative score and KPIs.
func (p ProductionPlan) Rescored(score float64, kpis KPIs) ProductionPlan {
	p.items = slices.Clone(p.items)
	p.score = score
	p.kpis = kpis
	return p
}

type planJSON struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Score       float64        `json:"score"`
	Description string         `json:"description"`
	Items       []ScheduleItem `json:"items"`
	KPIs        KPIs           `json:"kpis"`
}

// MarshalJSON encodes the plan with named fields.
func (p ProductionPlan) MarshalJSON() ([]byte, error) {
	items := p.items
	if items == nil {
		items = []ScheduleItem{}
	}
	return json.Marshal(planJSON{
		ID:          p.id,
		Name:        p.name,
		Score:       p.score,
		Description: p.description,
		Items:       items,
		KPIs:        p.kpis,
	})
}

// UnmarshalJSON decodes a plan; each item is validated on decode.
func (p *ProductionPlan) UnmarshalJSON(data []byte) error {
	var r planJSON
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = NewProductionPlan(r.ID, r.Name, r.Description, r.Score, r.Items, r.KPIs)
	return nil
}
