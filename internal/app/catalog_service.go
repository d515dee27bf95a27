package app

import (
	"context"
	"fmt"

	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// CatalogServiceImpl implements the CatalogService interface.
type CatalogServiceImpl struct {
	catalog secondary.CatalogProvider
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(catalog secondary.CatalogProvider) *CatalogServiceImpl {
	return &CatalogServiceImpl{catalog: catalog}
}

// GetCatalog returns materials, catalog equipment and the sample batch.
func (s *CatalogServiceImpl) GetCatalog(ctx context.Context) (*primary.Catalog, error) {
	materials, err := s.catalog.Materials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}
	equipment, err := s.catalog.Equipment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load equipment: %w", err)
	}
	orders, err := s.SampleOrders(ctx)
	if err != nil {
		return nil, err
	}
	return &primary.Catalog{
		Materials: materials,
		Equipment: equipment,
		Orders:    orders,
	}, nil
}

// SampleOrders returns the catalog order batch as session input.
func (s *CatalogServiceImpl) SampleOrders(ctx context.Context) ([]primary.OrderInput, error) {
	specs, err := s.catalog.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	out := make([]primary.OrderInput, len(specs))
	for i, o := range specs {
		out[i] = primary.OrderInput{
			ID:         o.ID,
			MaterialID: o.MaterialID,
			QuantityKg: o.QuantityKg,
			Deadline:   o.Deadline,
			Priority:   o.Priority,
		}
	}
	return out, nil
}

var _ primary.CatalogService = (*CatalogServiceImpl)(nil)
