package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/gmpsched/internal/ports/primary"
)

// CatalogAdapter renders reference data.
type CatalogAdapter struct {
	service primary.CatalogService
	out     io.Writer
}

// NewCatalogAdapter creates a new CatalogAdapter with the given service.
func NewCatalogAdapter(service primary.CatalogService, out io.Writer) *CatalogAdapter {
	return &CatalogAdapter{
		service: service,
		out:     out,
	}
}

// Show prints materials, catalog machines and the sample order batch.
func (a *CatalogAdapter) Show(ctx context.Context) (*primary.Catalog, error) {
	cat, err := a.service.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	fmt.Fprintln(a.out, bold.Sprint("Materials"))
	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tTOXICITY\tSTD MOISTURE")
	for _, m := range cat.Materials {
		tox := string(m.Toxicity)
		if m.Toxicity.IsToxic() {
			tox = red.Sprint(tox)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\n", m.ID, m.Name, m.Category, tox, m.StandardMoisture)
	}
	w.Flush()

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, bold.Sprint("Equipment"))
	w = newTable(a.out)
	fmt.Fprintln(w, "ID\tNAME\tPROCESS\tCAPACITY")
	for _, e := range cat.Equipment {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f kg\n", e.ID, e.Name, e.Process, e.CapacityKg)
	}
	w.Flush()

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, bold.Sprint("Sample orders"))
	w = newTable(a.out)
	fmt.Fprintln(w, "ID\tMATERIAL\tQUANTITY\tDEADLINE\tPRIORITY")
	for _, o := range cat.Orders {
		fmt.Fprintf(w, "%s\t%s\t%.1f kg\t%s\t%s\n", o.ID, o.MaterialID, o.QuantityKg, o.Deadline.Format("2006-01-02"), o.Priority)
	}
	w.Flush()
	return cat, nil
}
