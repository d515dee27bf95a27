package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/planner"
	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/ports/secondary"
)

var (
	day0 = time.Date(2023, 10, 30, 6, 0, 0, 0, time.UTC)

	ginseng   = production.Material{ID: "m1", Name: "Ginseng", Toxicity: production.ToxicityNone, Category: "root", StandardMoisture: 12}
	aconite   = production.Material{ID: "m2", Name: "Aconite", Toxicity: production.ToxicityHigh, Category: "root", StandardMoisture: 10}
	wolfberry = production.Material{ID: "m4", Name: "Wolfberry", Toxicity: production.ToxicityNone, Category: "fruit", StandardMoisture: 13}
)

func testShop() []production.Equipment {
	return []production.Equipment{
		{ID: "eq1", Name: "Washer", Process: production.ProcessWashing, CapacityKg: 500, Status: production.EquipmentIdle},
		{ID: "eq2", Name: "Steamer", Process: production.ProcessSteaming, CapacityKg: 500, Status: production.EquipmentIdle},
		{ID: "eq3", Name: "Dryer", Process: production.ProcessDrying, CapacityKg: 1000, Status: production.EquipmentIdle},
		{ID: "eq4", Name: "Cutter", Process: production.ProcessCutting, CapacityKg: 500, Status: production.EquipmentIdle},
		{ID: "eq5", Name: "Packager", Process: production.ProcessPackaging, CapacityKg: 1000, Status: production.EquipmentIdle},
	}
}

// ============================================================================
// mockCatalog
// ============================================================================

var _ secondary.CatalogProvider = (*mockCatalog)(nil)

type mockCatalog struct {
	materials []production.Material
	equipment []production.Equipment
	orders    []secondary.OrderSpec
	err       error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		materials: []production.Material{ginseng, aconite, wolfberry},
		equipment: testShop(),
		orders: []secondary.OrderSpec{
			{ID: "ord-101", MaterialID: "m1", QuantityKg: 200, Deadline: day0.AddDate(0, 0, 2), Priority: "urgent"},
			{ID: "ord-102", MaterialID: "m2", QuantityKg: 100, Deadline: day0.AddDate(0, 0, 3)},
		},
	}
}

func (m *mockCatalog) Materials(ctx context.Context) ([]production.Material, error) {
	return slices.Clone(m.materials), m.err
}

func (m *mockCatalog) Equipment(ctx context.Context) ([]production.Equipment, error) {
	return slices.Clone(m.equipment), m.err
}

func (m *mockCatalog) Orders(ctx context.Context) ([]secondary.OrderSpec, error) {
	return slices.Clone(m.orders), m.err
}

// ============================================================================
// mockEquipmentRepository
// ============================================================================

var _ secondary.EquipmentRepository = (*mockEquipmentRepository)(nil)

type mockEquipmentRepository struct {
	mu      sync.Mutex
	records map[string]*secondary.EquipmentRecord
}

func newMockEquipmentRepository() *mockEquipmentRepository {
	return &mockEquipmentRepository{records: make(map[string]*secondary.EquipmentRecord)}
}

func (m *mockEquipmentRepository) Register(ctx context.Context, eq *secondary.EquipmentRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[eq.ID]; ok {
		return false, nil
	}
	rec := *eq
	m.records[eq.ID] = &rec
	return true, nil
}

func (m *mockEquipmentRepository) GetByID(ctx context.Context, id string) (*secondary.EquipmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "equipment %s not found", id)
	}
	out := *rec
	return &out, nil
}

func (m *mockEquipmentRepository) List(ctx context.Context) ([]*secondary.EquipmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*secondary.EquipmentRecord, 0, len(m.records))
	for _, rec := range m.records {
		r := *rec
		out = append(out, &r)
	}
	slices.SortFunc(out, func(a, b *secondary.EquipmentRecord) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *mockEquipmentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "equipment %s not found", id)
	}
	rec.Status = status
	return nil
}

// ============================================================================
// mockBookingRepository
// ============================================================================

var _ secondary.BookingRepository = (*mockBookingRepository)(nil)

type mockBookingRepository struct {
	mu       sync.Mutex
	bookings []*secondary.BookingRecord
	nextID   int64

	releaseErr error
}

func newMockBookingRepository() *mockBookingRepository {
	return &mockBookingRepository{}
}

func (m *mockBookingRepository) Reserve(ctx context.Context, sessionID, planID, bookedBy string, windows []*secondary.BookingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range windows {
		for _, b := range m.bookings {
			if b.SessionID != sessionID && b.EquipmentID == w.EquipmentID && b.Start.Before(w.End) && w.Start.Before(b.End) {
				return apperr.New(apperr.CodeEquipmentConflict, "equipment %s already reserved", w.EquipmentID).
					WithDetail("equipment", w.EquipmentID)
			}
		}
	}
	m.bookings = slices.DeleteFunc(m.bookings, func(b *secondary.BookingRecord) bool {
		return b.SessionID == sessionID
	})
	for _, w := range windows {
		m.nextID++
		rec := *w
		rec.ID = m.nextID
		rec.SessionID = sessionID
		rec.PlanID = planID
		rec.BookedBy = bookedBy
		m.bookings = append(m.bookings, &rec)
	}
	return nil
}

func (m *mockBookingRepository) Release(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return 0, m.releaseErr
	}
	before := len(m.bookings)
	m.bookings = slices.DeleteFunc(m.bookings, func(b *secondary.BookingRecord) bool {
		return b.SessionID == sessionID
	})
	return before - len(m.bookings), nil
}

func (m *mockBookingRepository) List(ctx context.Context, filters secondary.BookingFilters) ([]*secondary.BookingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.BookingRecord
	for _, b := range m.bookings {
		if filters.EquipmentID != "" && b.EquipmentID != filters.EquipmentID {
			continue
		}
		if filters.SessionID != "" && b.SessionID != filters.SessionID {
			continue
		}
		rec := *b
		out = append(out, &rec)
	}
	return out, nil
}

func (m *mockBookingRepository) CountActive(ctx context.Context, equipmentID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.EquipmentID == equipmentID && b.End.After(at) {
			n++
		}
	}
	return n, nil
}

func (m *mockBookingRepository) count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.SessionID == sessionID {
			n++
		}
	}
	return n
}

// ============================================================================
// Providers
// ============================================================================

var (
	_ secondary.SampleSource       = mockSamples{}
	_ secondary.PerceptionProvider = (*mockPerception)(nil)
	_ secondary.PlanGenerator      = (*mockGenerator)(nil)
	_ secondary.PlanExporter       = (*mockExporter)(nil)
)

// mockSamples returns the order id as the sample image.
type mockSamples struct{}

func (mockSamples) Sample(ctx context.Context, orderID string) ([]byte, error) {
	return []byte(orderID), nil
}

// mockPerception answers by sample image (order id). Orders listed in fail
// return an error; orders without an entry pass at moisture 10.
type mockPerception struct {
	mu       sync.Mutex
	moisture map[string]float64
	verdicts map[string]string
	fail     map[string]bool
	flaky    map[string]int // failures left before the call succeeds
	calls    int

	// When block is set, every call waits for it to close or for ctx to end.
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newMockPerception() *mockPerception {
	return &mockPerception{
		moisture: make(map[string]float64),
		verdicts: make(map[string]string),
		fail:     make(map[string]bool),
		flaky:    make(map[string]int),
	}
}

func (m *mockPerception) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	id := string(image)
	m.mu.Lock()
	m.calls++
	moisture, ok := m.moisture[id]
	verdict := m.verdicts[id]
	fail := m.fail[id]
	if m.flaky[id] > 0 {
		m.flaky[id]--
		fail = true
	}
	m.mu.Unlock()

	if m.block != nil {
		m.once.Do(func() { close(m.entered) })
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, apperr.ProviderUnavailable("perception", errors.New("timeout"))
	}
	if !ok {
		moisture = 10
	}
	if verdict == "" {
		verdict = secondary.VerdictPass
	}
	return &secondary.Analysis{MaterialName: id, EstimatedMoisture: moisture, Verdict: verdict}, nil
}

// mockGenerator returns fixed drafts, or runs the built-in planner when
// usePlanner is set.
type mockGenerator struct {
	drafts     []secondary.PlanDraft
	err        error
	usePlanner bool
	calls      int
}

func (m *mockGenerator) Propose(ctx context.Context, req secondary.GenerationRequest) ([]secondary.PlanDraft, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.usePlanner {
		return plannerDrafts(req)
	}
	return m.drafts, nil
}

func plannerDrafts(req secondary.GenerationRequest) ([]secondary.PlanDraft, error) {
	results, errs := planner.Generate(req.Orders, req.Equipment, planner.Options{Start: req.Start})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	drafts := make([]secondary.PlanDraft, 0, len(results))
	for _, r := range results {
		drafts = append(drafts, toDraft(r.ID, r.Name, r.Items))
	}
	return drafts, nil
}

func toDraft(id, name string, items []production.ScheduleItem) secondary.PlanDraft {
	d := secondary.PlanDraft{ID: id, Name: name}
	for _, it := range items {
		d.Items = append(d.Items, secondary.DraftItem{
			OrderID:     it.OrderID,
			EquipmentID: it.EquipmentID,
			Process:     string(it.Process),
			Start:       it.Start,
			End:         it.End,
			Note:        it.Note,
		})
	}
	return d
}

type mockExporter struct {
	docs []production.PlanDocument
	err  error
}

func (m *mockExporter) Export(ctx context.Context, doc production.PlanDocument) error {
	if m.err != nil {
		return m.err
	}
	m.docs = append(m.docs, doc)
	return nil
}

// ============================================================================
// Service fixture
// ============================================================================

type fixture struct {
	svc        *SchedulingServiceImpl
	equipment  *EquipmentServiceImpl
	catalog    *mockCatalog
	bookings   *mockBookingRepository
	perception *mockPerception
	generator  *mockGenerator
	exporter   *mockExporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:    newMockCatalog(),
		bookings:   newMockBookingRepository(),
		perception: newMockPerception(),
		generator:  &mockGenerator{usePlanner: true},
		exporter:   &mockExporter{},
	}
	f.equipment = NewEquipmentService(newMockEquipmentRepository(), f.bookings, f.catalog, nil)
	f.equipment.clock = func() time.Time { return day0 }
	if _, err := f.equipment.RegisterCatalog(context.Background()); err != nil {
		t.Fatalf("RegisterCatalog failed: %v", err)
	}
	f.svc = f.newService(NewEquipmentLocks())
	return f
}

// newService builds another service over the same repositories, as a
// second process sharing the database would.
func (f *fixture) newService(locks *EquipmentLocks) *SchedulingServiceImpl {
	return NewSchedulingService(SchedulingConfig{
		Catalog:    f.catalog,
		Equipment:  f.equipment,
		Samples:    mockSamples{},
		Perception: f.perception,
		Generator:  f.generator,
		Executor:   NewEffectExecutor(f.bookings, locks, nil, nil),
		Exporters:  map[string]secondary.PlanExporter{"file": f.exporter},
		Clock:      func() time.Time { return day0 },
	})
}

// toGeneration opens a session over the catalog orders and drives it to
// the generation state.
func (f *fixture) toGeneration(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id := f.start(t)
	if _, err := f.svc.RunPerception(ctx, id, primary.PerceptionOptions{}); err != nil {
		t.Fatalf("RunPerception failed: %v", err)
	}
	if _, err := f.svc.AdvanceToGeneration(ctx, id); err != nil {
		t.Fatalf("AdvanceToGeneration failed: %v", err)
	}
	return id
}

func (f *fixture) start(t *testing.T) string {
	t.Helper()
	orders, err := NewCatalogService(f.catalog).SampleOrders(context.Background())
	if err != nil {
		t.Fatalf("SampleOrders failed: %v", err)
	}
	resp, err := f.svc.StartSession(context.Background(), primary.StartSessionRequest{Orders: orders})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return resp.SessionID
}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Errorf("expected code %s, got %s (%v)", code, got, err)
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
	}
}
