package production

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/example/gmpsched/internal/apperr"
)

// Material is immutable catalog reference data.
type Material struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Toxicity         Toxicity `json:"toxicity"`
	Category         string   `json:"category"`
	StandardMoisture float64  `json:"standard_moisture"`
}

// Equipment is a registered machine. Only Status changes after registration.
type Equipment struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Process    ProcessType     `json:"process"`
	CapacityKg float64         `json:"capacity_kg"`
	Status     EquipmentStatus `json:"status"`
}

// Available reports whether the machine can take work without a warning.
func (e Equipment) Available() bool {
	return e.Status != EquipmentMaintenance
}

// WithStatus returns a copy of the equipment with a new status.
func (e Equipment) WithStatus(status EquipmentStatus) Equipment {
	e.Status = status
	return e
}

// Order is a raw-material processing order.
type Order struct {
	ID               string      `json:"id"`
	Material         Material    `json:"material"`
	QuantityKg       float64     `json:"quantity_kg"`
	Deadline         time.Time   `json:"deadline"`
	Priority         Priority    `json:"priority"`
	Status           OrderStatus `json:"status"`
	DetectedMoisture *float64    `json:"detected_moisture,omitempty"`
	VisualCheck      VisualCheck `json:"visual_check"`
}

// NewOrder creates a pending, unchecked order.
// Fails with INVALID_QUANTITY when quantity is not strictly positive.
func NewOrder(id string, material Material, quantityKg float64, deadline time.Time, priority Priority) (Order, error) {
	if strings.TrimSpace(id) == "" {
		return Order{}, apperr.New(apperr.CodeInvalidInput, "order id is required")
	}
	if !(quantityKg > 0) || math.IsInf(quantityKg, 1) {
		return Order{}, apperr.InvalidQuantity(id, quantityKg)
	}
	if priority == "" {
		priority = PriorityNormal
	}
	return Order{
		ID:          id,
		Material:    material,
		QuantityKg:  quantityKg,
		Deadline:    deadline,
		Priority:    priority,
		Status:      OrderPending,
		VisualCheck: VisualUnchecked,
	}, nil
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	if o.DetectedMoisture != nil {
		m := *o.DetectedMoisture
		o.DetectedMoisture = &m
	}
	return o
}

// WithPerception returns a copy carrying a perception result.
func (o Order) WithPerception(moisture float64, check VisualCheck) Order {
	o = o.Clone()
	o.DetectedMoisture = &moisture
	o.VisualCheck = check
	return o
}

// WithUnresolvedPerception returns a copy marking the perception call as failed.
// Any previously detected moisture is kept.
func (o Order) WithUnresolvedPerception() Order {
	o = o.Clone()
	o.VisualCheck = VisualUnresolved
	return o
}

// WithStatus returns a copy with a new lifecycle status.
func (o Order) WithStatus(status OrderStatus) Order {
	o = o.Clone()
	o.Status = status
	return o
}

// DeadlineEnd is the last instant at which the order is still on time:
// the end of the deadline day in UTC.
func (o Order) DeadlineEnd() time.Time {
	d := o.Deadline.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// UnmarshalJSON decodes an order and re-applies the quantity invariant.
func (o *Order) UnmarshalJSON(data []byte) error {
	type raw Order
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if !(r.QuantityKg > 0) {
		return apperr.InvalidQuantity(r.ID, r.QuantityKg)
	}
	*o = Order(r)
	return nil
}
