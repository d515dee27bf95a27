package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// PlanFileExporter implements secondary.PlanExporter by dropping the plan
// document as a JSON file for the shop floor to pick up.
type PlanFileExporter struct {
	dir string
}

// NewPlanFileExporter creates an exporter writing into dir.
func NewPlanFileExporter(dir string) *PlanFileExporter {
	return &PlanFileExporter{dir: dir}
}

// PathFor returns the file a document is written to.
func (e *PlanFileExporter) PathFor(doc production.PlanDocument) string {
	return filepath.Join(e.dir, fmt.Sprintf("%s-%s.json", doc.SessionID, doc.Plan.ID()))
}

// Export implements secondary.PlanExporter. The file is written under a
// temporary name and renamed so readers never see a partial document.
func (e *PlanFileExporter) Export(ctx context.Context, doc production.PlanDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := production.EncodePlanDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode plan document: %w", err)
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, ".plan-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write plan document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close plan document: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.PathFor(doc)); err != nil {
		return fmt.Errorf("failed to move plan document into place: %w", err)
	}
	return nil
}

// Ensure PlanFileExporter implements the interface
var _ secondary.PlanExporter = (*PlanFileExporter)(nil)
