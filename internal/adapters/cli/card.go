package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/moisture"
	"github.com/example/gmpsched/internal/core/production"
)

// PrintSchedule writes every item of a plan document in time order.
func PrintSchedule(out io.Writer, doc production.PlanDocument) {
	names := equipmentNames(doc.Equipment)
	fmt.Fprintf(out, "\n%s %s (%s)\n", bold.Sprint("Plan"), doc.Plan.ID(), doc.Plan.Name())
	if desc := doc.Plan.Description(); desc != "" {
		fmt.Fprintf(out, "  %s\n", desc)
	}

	w := newTable(out)
	fmt.Fprintln(w, "START\tEND\tEQUIPMENT\tPROCESS\tORDER\tNOTE")
	fmt.Fprintln(w, "-----\t---\t---------\t-------\t-----\t----")
	for _, it := range doc.Plan.Items() {
		process := string(it.Process)
		if it.IsCleaning() {
			process = yellow.Sprint(process)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.Start.Format(TimeLayout),
			it.End.Format(TimeLayout),
			names(it.EquipmentID),
			process,
			orDash(it.OrderID),
			orDash(it.Note),
		)
	}
	w.Flush()

	k := doc.Plan.KPIs()
	fmt.Fprintf(out, "  %.1f h total, %d clean-down(s), %.1f%% utilization\n",
		k.TotalDurationHours, k.CleaningCycles, k.EquipmentUtilization)
}

// PrintCard writes the production card of one order: material facts, the
// toxicity lock notice and the order's stages in time order.
func PrintCard(out io.Writer, doc production.PlanDocument, orderID string) error {
	idx := slices.IndexFunc(doc.Orders, func(o production.Order) bool { return o.ID == orderID })
	if idx < 0 {
		return apperr.New(apperr.CodeNotFound, "order %s is not part of plan %s", orderID, doc.Plan.ID())
	}
	o := doc.Orders[idx]
	m := o.Material
	names := equipmentNames(doc.Equipment)

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "%s  %s\n", bold.Sprint("PRODUCTION CARD"), o.ID)
	fmt.Fprintf(out, "Plan:      %s (%s)\n", doc.Plan.ID(), doc.Plan.Name())
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Material:  %s (%s, %s)\n", m.Name, m.ID, m.Category)
	fmt.Fprintf(out, "Quantity:  %.1f kg\n", o.QuantityKg)
	fmt.Fprintf(out, "Deadline:  %s (%s)\n", o.Deadline.Format("2006-01-02"), o.Priority)
	fmt.Fprintf(out, "Moisture:  %s detected, %.1f%% standard", formatMoisture(o.DetectedMoisture), m.StandardMoisture)
	if moisture.NeedsExtendedDrying(o) {
		fmt.Fprintf(out, "  %s", cyan.Sprint("EXTENDED DRYING"))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Toxicity:  %s\n", m.Toxicity)
	if m.Toxicity.IsToxic() {
		fmt.Fprintf(out, "%s\n", red.Sprint("!! Equipment locks after this batch until QA confirms clean-down."))
	}

	fmt.Fprintln(out)
	items := doc.Plan.ItemsForOrder(o.ID)
	if len(items) == 0 {
		fmt.Fprintln(out, "No stages scheduled.")
		return nil
	}
	w := newTable(out)
	fmt.Fprintln(w, "STEP\tPROCESS\tEQUIPMENT\tSTART\tEND\tDURATION\tNOTE")
	fmt.Fprintln(w, "----\t-------\t---------\t-----\t---\t--------\t----")
	for i, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			it.Process,
			names(it.EquipmentID),
			it.Start.Format(TimeLayout),
			it.End.Format(TimeLayout),
			formatDuration(it.Duration()),
			orDash(it.Note),
		)
	}
	w.Flush()
	return nil
}

func equipmentNames(equipment []production.Equipment) func(string) string {
	byID := make(map[string]string, len(equipment))
	for _, e := range equipment {
		byID[e.ID] = e.Name
	}
	return func(id string) string {
		if name, ok := byID[id]; ok && name != "" {
			return name + " (" + id + ")"
		}
		return id
	}
}
