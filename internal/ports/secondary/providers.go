// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/gmpsched/internal/core/production"
)

// PerceptionProvider defines the secondary port for visual inspection of a
// raw-material sample. Failures are reported as PROVIDER_UNAVAILABLE.
type PerceptionProvider interface {
	Analyze(ctx context.Context, image []byte) (*Analysis, error)
}

// Verdict values returned by a perception provider.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Analysis is the perception result for one sample image.
type Analysis struct {
	MaterialName      string  `json:"material_name" yaml:"material_name" validate:"required"`
	DetectedForm      string  `json:"detected_form" yaml:"detected_form"`
	EstimatedMoisture float64 `json:"estimated_moisture" yaml:"estimated_moisture" validate:"gte=0,lte=100"`
	Verdict           string  `json:"verdict" yaml:"verdict" validate:"oneof=pass fail"`
	Rationale         string  `json:"rationale" yaml:"rationale"`
}

// SampleSource defines the secondary port for fetching an order's sample image.
type SampleSource interface {
	Sample(ctx context.Context, orderID string) ([]byte, error)
}

// PlanGenerator defines the secondary port for proposing candidate schedules.
// An empty result is valid; failures are reported as PROVIDER_UNAVAILABLE.
type PlanGenerator interface {
	Propose(ctx context.Context, req GenerationRequest) ([]PlanDraft, error)
}

// GenerationRequest is the input to a plan generator.
type GenerationRequest struct {
	Orders    []production.Order     `json:"orders"`
	Equipment []production.Equipment `json:"equipment"`
	Start     time.Time              `json:"start"`
}

// PlanDraft is an unvalidated candidate as returned by a generator.
// Scores and KPIs claimed by the generator are advisory only.
type PlanDraft struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Items        []DraftItem      `json:"items"`
	ClaimedScore *float64         `json:"claimed_score,omitempty"`
	ClaimedKPIs  *production.KPIs `json:"claimed_kpis,omitempty"`

	// Malformed is set by a provider that could not decode part of the
	// draft. Such drafts are rejected with this reason.
	Malformed string `json:"-"`
}

// DraftItem is a schedule item that has not been through construction
// validation yet.
type DraftItem struct {
	OrderID     string    `json:"order_id,omitempty"`
	EquipmentID string    `json:"equipment_id"`
	Process     string    `json:"process"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Note        string    `json:"note,omitempty"`
}

// PlanExporter defines the secondary port for dispatching a confirmed plan
// to the shop floor (file drop, message bus).
type PlanExporter interface {
	Export(ctx context.Context, doc production.PlanDocument) error
}

// CatalogProvider defines the secondary port for reference data: materials,
// registered equipment and the sample order batch.
type CatalogProvider interface {
	Materials(ctx context.Context) ([]production.Material, error)
	Equipment(ctx context.Context) ([]production.Equipment, error)
	Orders(ctx context.Context) ([]OrderSpec, error)
}

// OrderSpec is a raw order as listed in a catalog, before construction.
type OrderSpec struct {
	ID         string
	MaterialID string
	QuantityKg float64
	Deadline   time.Time
	Priority   string
}
