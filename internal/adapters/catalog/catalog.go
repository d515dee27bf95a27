// Package catalog loads shop reference data (materials, machines and the
// sample order batch) from YAML.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/secondary"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// DeadlineLayout is the date format of order deadlines.
const DeadlineLayout = "2006-01-02"

// Document is the on-disk catalog layout.
type Document struct {
	Materials []MaterialEntry  `yaml:"materials" validate:"required,min=1,unique=ID,dive"`
	Equipment []EquipmentEntry `yaml:"equipment" validate:"unique=ID,dive"`
	Orders    []OrderEntry     `yaml:"orders" validate:"dive"`
}

// MaterialEntry is one material record.
type MaterialEntry struct {
	ID               string  `yaml:"id" validate:"required"`
	Name             string  `yaml:"name" validate:"required"`
	Toxicity         string  `yaml:"toxicity" validate:"required,oneof=none low high"`
	Category         string  `yaml:"category" validate:"required"`
	StandardMoisture float64 `yaml:"standard_moisture" validate:"gte=0,lte=100"`
}

// EquipmentEntry is one machine record. Status defaults to idle.
type EquipmentEntry struct {
	ID         string  `yaml:"id" validate:"required"`
	Name       string  `yaml:"name" validate:"required"`
	Process    string  `yaml:"process" validate:"required,oneof=washing steaming drying cutting packaging"`
	CapacityKg float64 `yaml:"capacity_kg" validate:"gt=0"`
	Status     string  `yaml:"status" validate:"omitempty,oneof=idle running cleaning maintenance"`
}

// OrderEntry is one sample order. Quantity and priority are checked when the
// order is taken in, so a catalog may carry orders that will be rejected.
type OrderEntry struct {
	ID         string  `yaml:"id" validate:"required"`
	Material   string  `yaml:"material" validate:"required"`
	QuantityKg float64 `yaml:"quantity_kg"`
	Deadline   string  `yaml:"deadline" validate:"required,datetime=2006-01-02"`
	Priority   string  `yaml:"priority"`
}

// Provider implements secondary.CatalogProvider over a parsed document.
type Provider struct {
	source    string
	materials []production.Material
	equipment []production.Equipment
	orders    []secondary.OrderSpec
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded catalog.
func Default() (*Provider, error) {
	return Parse(defaultCatalog, "default")
}

// Load reads a catalog file. An empty path selects the embedded catalog.
func Load(path string) (*Provider, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data, filepath.Clean(path))
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte, source string) (*Provider, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "catalog %s is empty", source)
	}
	var doc Document
	if err := decode(data, source, &doc); err != nil {
		return nil, err
	}
	return build(doc, source)
}

// OrderBatch is an order file submitted for scheduling.
type OrderBatch struct {
	Orders []OrderEntry `yaml:"orders" validate:"required,min=1,unique=ID,dive"`
}

// LoadOrders reads an order batch. Material references are not resolved
// here; orders naming an unknown material are rejected at intake.
func LoadOrders(path string) ([]secondary.OrderSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders %s: %w", path, err)
	}
	source := filepath.Clean(path)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "order file %s is empty", source)
	}
	var batch OrderBatch
	if err := decode(data, source, &batch); err != nil {
		return nil, err
	}
	orders := make([]secondary.OrderSpec, 0, len(batch.Orders))
	for _, o := range batch.Orders {
		spec, err := o.spec()
		if err != nil {
			return nil, err
		}
		orders = append(orders, spec)
	}
	return orders, nil
}

func decode(data []byte, source string, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", source, err)
	}
	if err := validate.Struct(v); err != nil {
		return validationError(source, err)
	}
	return nil
}

func (o OrderEntry) spec() (secondary.OrderSpec, error) {
	deadline, err := time.Parse(DeadlineLayout, o.Deadline)
	if err != nil {
		return secondary.OrderSpec{}, fmt.Errorf("failed to parse deadline of %s: %w", o.ID, err)
	}
	return secondary.OrderSpec{
		ID:         o.ID,
		MaterialID: o.Material,
		QuantityKg: o.QuantityKg,
		Deadline:   deadline,
		Priority:   o.Priority,
	}, nil
}

func build(doc Document, source string) (*Provider, error) {
	p := &Provider{source: source}
	known := make(map[string]bool, len(doc.Materials))
	for _, m := range doc.Materials {
		tox, err := production.ParseToxicity(m.Toxicity)
		if err != nil {
			return nil, err
		}
		p.materials = append(p.materials, production.Material{
			ID:               m.ID,
			Name:             m.Name,
			Toxicity:         tox,
			Category:         m.Category,
			StandardMoisture: m.StandardMoisture,
		})
		known[m.ID] = true
	}

	for _, e := range doc.Equipment {
		process, err := production.ParseProcessType(e.Process)
		if err != nil {
			return nil, err
		}
		status := production.EquipmentIdle
		if e.Status != "" {
			if status, err = production.ParseEquipmentStatus(e.Status); err != nil {
				return nil, err
			}
		}
		p.equipment = append(p.equipment, production.Equipment{
			ID:         e.ID,
			Name:       e.Name,
			Process:    process,
			CapacityKg: e.CapacityKg,
			Status:     status,
		})
	}

	for _, o := range doc.Orders {
		if !known[o.Material] {
			return nil, apperr.New(apperr.CodeInvalidInput, "order references unknown material").
				WithDetail("catalog", source).
				WithDetail("order", o.ID).
				WithDetail("material", o.Material)
		}
		spec, err := o.spec()
		if err != nil {
			return nil, err
		}
		p.orders = append(p.orders, spec)
	}
	return p, nil
}

func validationError(source string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate catalog %s: %w", source, err)
	}
	e := apperr.New(apperr.CodeInvalidInput, "invalid %s", source)
	for _, fe := range fieldErrs {
		e = e.WithDetail(fieldPath(fe), fieldMessage(fe))
	}
	return e
}

// fieldPath turns "Document.Materials[0].ID" into "materials[0].id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "unique":
		return "must have unique " + strings.ToLower(fe.Param()) + " values"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "gt", "gte", "lte", "min":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return "failed " + fe.Tag() + " check"
}

// Source names where the catalog was loaded from.
func (p *Provider) Source() string { return p.source }

// Materials implements secondary.CatalogProvider.
func (p *Provider) Materials(ctx context.Context) ([]production.Material, error) {
	return slices.Clone(p.materials), nil
}

// Equipment implements secondary.CatalogProvider.
func (p *Provider) Equipment(ctx context.Context) ([]production.Equipment, error) {
	return slices.Clone(p.equipment), nil
}

// Orders implements secondary.CatalogProvider.
func (p *Provider) Orders(ctx context.Context) ([]secondary.OrderSpec, error) {
	return slices.Clone(p.orders), nil
}

var _ secondary.CatalogProvider = (*Provider)(nil)
