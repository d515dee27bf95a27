package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// GenerationPath is the endpoint for schedule proposals.
const GenerationPath = "/v1/schedules"

type generationRequest struct {
	Start     time.Time      `json:"start"`
	Equipment []equipmentDTO `json:"equipment"`
	Orders    []orderDTO     `json:"orders"`
}

type equipmentDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Capacity float64 `json:"capacity"`
	Status   string  `json:"status"`
}

type orderDTO struct {
	ID               string   `json:"id"`
	Material         string   `json:"material"`
	Toxicity         string   `json:"toxicity"`
	Category         string   `json:"category"`
	Qty              float64  `json:"qty"`
	Deadline         string   `json:"deadline"`
	Priority         string   `json:"priority"`
	Moisture         *float64 `json:"moisture,omitempty"`
	StandardMoisture float64  `json:"standardMoisture"`
	VisualCheck      string   `json:"visualCheck"`
}

type planDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Score       *float64 `json:"score"`
	Description string   `json:"description"`
	KPIs        *kpisDTO `json:"kpis"`
	Items       []struct {
		OrderID     string `json:"orderId"`
		EquipmentID string `json:"equipmentId"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		ProcessType string `json:"processType"`
		Notes       string `json:"notes"`
	} `json:"items"`
}

type kpisDTO struct {
	TotalDurationHours   float64 `json:"totalDurationHours"`
	CleaningCycles       int     `json:"cleaningCycles"`
	EquipmentUtilization float64 `json:"equipmentUtilization"`
}

// GeneratorClient implements secondary.PlanGenerator over HTTP.
type GeneratorClient struct {
	client
}

// NewGeneratorClient creates a plan generation client.
func NewGeneratorClient(cfg Config) *GeneratorClient {
	return &GeneratorClient{client: newClient(cfg)}
}

// Propose implements secondary.PlanGenerator. Items whose times cannot be
// parsed are passed on with zero times so the draft fails validation
// instead of the whole response.
func (c *GeneratorClient) Propose(ctx context.Context, req secondary.GenerationRequest) ([]secondary.PlanDraft, error) {
	body := generationRequest{
		Start:     req.Start,
		Equipment: make([]equipmentDTO, 0, len(req.Equipment)),
		Orders:    make([]orderDTO, 0, len(req.Orders)),
	}
	for _, e := range req.Equipment {
		body.Equipment = append(body.Equipment, equipmentDTO{
			ID: e.ID, Name: e.Name, Type: string(e.Process), Capacity: e.CapacityKg, Status: string(e.Status),
		})
	}
	for _, o := range req.Orders {
		body.Orders = append(body.Orders, toOrderDTO(o))
	}

	var plans []planDTO
	if err := c.postJSON(ctx, GenerationPath, body, &plans); err != nil {
		return nil, err
	}

	drafts := make([]secondary.PlanDraft, 0, len(plans))
	for _, p := range plans {
		d := secondary.PlanDraft{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			ClaimedScore: p.Score,
		}
		if p.KPIs != nil {
			d.ClaimedKPIs = &production.KPIs{
				TotalDurationHours:   p.KPIs.TotalDurationHours,
				CleaningCycles:       p.KPIs.CleaningCycles,
				EquipmentUtilization: p.KPIs.EquipmentUtilization,
			}
		}
		for i, it := range p.Items {
			start, end, err := parseWindow(it.StartTime, it.EndTime)
			if err != nil && d.Malformed == "" {
				d.Malformed = fmt.Sprintf("item %d: %v", i, err)
			}
			d.Items = append(d.Items, secondary.DraftItem{
				OrderID:     it.OrderID,
				EquipmentID: it.EquipmentID,
				Process:     it.ProcessType,
				Start:       start,
				End:         end,
				Note:        it.Notes,
			})
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func toOrderDTO(o production.Order) orderDTO {
	return orderDTO{
		ID:               o.ID,
		Material:         o.Material.Name,
		Toxicity:         string(o.Material.Toxicity),
		Category:         o.Material.Category,
		Qty:              o.QuantityKg,
		Deadline:         o.Deadline.Format(time.DateOnly),
		Priority:         string(o.Priority),
		Moisture:         o.DetectedMoisture,
		StandardMoisture: o.Material.StandardMoisture,
		VisualCheck:      string(o.VisualCheck),
	}
}

// itemTimeLayouts are tried in order. Zone-less times are taken as UTC.
var itemTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func parseWindow(start, end string) (time.Time, time.Time, error) {
	s, err := parseItemTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_time: %w", err)
	}
	e, err := parseItemTime(end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_time: %w", err)
	}
	return s, e, nil
}

func parseItemTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range itemTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", v)
}

var _ secondary.PlanGenerator = (*GeneratorClient)(nil)
