// Package wire provides dependency injection for the gmpsched application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/example/gmpsched/internal/adapters/catalog"
	cliadapter "github.com/example/gmpsched/internal/adapters/cli"
	"github.com/example/gmpsched/internal/adapters/filesystem"
	"github.com/example/gmpsched/internal/adapters/kafka"
	planneradapter "github.com/example/gmpsched/internal/adapters/planner"
	"github.com/example/gmpsched/internal/adapters/remote"
	"github.com/example/gmpsched/internal/adapters/replay"
	"github.com/example/gmpsched/internal/adapters/sqlite"
	"github.com/example/gmpsched/internal/app"
	"github.com/example/gmpsched/internal/config"
	"github.com/example/gmpsched/internal/core/planner"
	"github.com/example/gmpsched/internal/db"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/metrics"
	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/ports/secondary"
	"github.com/example/gmpsched/internal/resilience"
	"github.com/example/gmpsched/internal/version"
)

// Exporter names accepted by DispatchConfirmed.
const (
	ExporterFile  = "file"
	ExporterKafka = "kafka"
)

// Container holds the wired application.
type Container struct {
	Config     *config.Config
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	Scheduling primary.SchedulingService
	Equipment  primary.EquipmentService
	Catalog    primary.CatalogService
	Exporters  []string

	closers []func() error
}

// Build wires every adapter and service from cfg. The database is opened
// and the catalog machines are registered.
func Build(ctx context.Context, cfg *config.Config, logOutput io.Writer) (_ *Container, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	logCfg := logging.DefaultConfig("gmpsched")
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Version = version.Short()
	if logOutput != nil {
		logCfg.Output = logOutput
	}
	c.Logger = logging.New(logCfg)
	c.Metrics = metrics.New(metrics.DefaultConfig())

	dataDir, err := config.DefaultDataDir()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = db.Path(dataDir)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.closers = append(c.closers, database.Close)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	equipmentRepo := sqlite.NewEquipmentRepository(database)
	bookingRepo := sqlite.NewBookingRepository(database)

	equipmentService := app.NewEquipmentService(equipmentRepo, bookingRepo, cat, c.Logger)
	if _, err := equipmentService.RegisterCatalog(ctx); err != nil {
		return nil, err
	}

	samplesDir := cfg.SamplesDir
	if samplesDir == "" {
		samplesDir = filepath.Join(dataDir, "samples")
	}
	samples, err := filesystem.NewSampleStore(samplesDir)
	if err != nil {
		return nil, err
	}

	perception, err := c.perceptionProvider(cfg, dataDir)
	if err != nil {
		return nil, err
	}
	generator, err := c.planGenerator(cfg)
	if err != nil {
		return nil, err
	}

	exporters := c.exporters(cfg, dataDir)
	for name := range exporters {
		c.Exporters = append(c.Exporters, name)
	}
	slices.Sort(c.Exporters)

	executor := app.NewEffectExecutor(bookingRepo, app.NewEquipmentLocks(), c.Logger, c.Metrics)

	c.Equipment = equipmentService
	c.Catalog = app.NewCatalogService(cat)
	c.Scheduling = app.NewSchedulingService(app.SchedulingConfig{
		Catalog:               cat,
		Equipment:             equipmentService,
		Samples:               samples,
		Perception:            perception,
		Generator:             generator,
		Executor:              executor,
		Exporters:             exporters,
		Logger:                c.Logger,
		Metrics:               c.Metrics,
		PerceptionTimeout:     cfg.Perception.Timeout.Std(),
		GenerationTimeout:     cfg.Generation.Timeout.Std(),
		PerceptionConcurrency: cfg.PerceptionConcurrency,
		PlanningStartHour:     cfg.PlanningStartHour,
	})
	return c, nil
}

func (c *Container) breaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(name), c.Logger, c.Metrics)
}

func (c *Container) perceptionProvider(cfg *config.Config, dataDir string) (secondary.PerceptionProvider, error) {
	recordingsPath := cfg.RecordingsPath
	if recordingsPath == "" {
		recordingsPath = filepath.Join(dataDir, "recordings.yaml")
	}
	store, err := replay.Load(recordingsPath)
	if err != nil {
		return nil, err
	}

	var next secondary.PerceptionProvider = store
	if cfg.Perception.Kind == config.KindRemote {
		client := remote.NewPerceptionClient(remote.Config{
			BaseURL: cfg.Perception.Endpoint,
			APIKey:  apiKey(cfg.Perception),
			Timeout: cfg.Perception.Timeout.Std(),
		})
		// Live answers are recorded so a run can be replayed offline.
		next = replay.NewRecorder(client, store)
		before := store.Len()
		c.closers = append(c.closers, func() error {
			if store.Len() == before {
				return nil
			}
			return store.Save(recordingsPath)
		})
	}
	return resilience.NewPerceptionProvider(next, c.breaker("perception"), c.Metrics), nil
}

func (c *Container) planGenerator(cfg *config.Config) (secondary.PlanGenerator, error) {
	var next secondary.PlanGenerator
	switch cfg.Generation.Kind {
	case config.KindRemote:
		next = remote.NewGeneratorClient(remote.Config{
			BaseURL: cfg.Generation.Endpoint,
			APIKey:  apiKey(cfg.Generation),
			Timeout: cfg.Generation.Timeout.Std(),
		})
	default:
		strategies := make([]planner.Strategy, 0, len(cfg.Strategies))
		for _, name := range cfg.Strategies {
			s, err := planner.ParseStrategy(name)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, s)
		}
		next = planneradapter.NewGenerator(planner.Options{CleaningInterval: cfg.CleaningInterval.Std()}, c.Logger, strategies...)
	}
	return resilience.NewPlanGenerator(next, c.breaker("generation"), c.Metrics), nil
}

func (c *Container) exporters(cfg *config.Config, dataDir string) map[string]secondary.PlanExporter {
	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(dataDir, "exports")
	}
	out := map[string]secondary.PlanExporter{
		ExporterFile: filesystem.NewPlanFileExporter(exportDir),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := kafka.NewExporter(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Source:  cfg.Kafka.Source,
		})
		c.closers = append(c.closers, k.Close)
		out[ExporterKafka] = k
	}
	return out
}

func apiKey(p config.ProviderConfig) string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

var (
	cfgOverride *config.Config
	logOutput   io.Writer = os.Stderr
	container   *Container
	initErr     error
	once        sync.Once
)

// Configure sets the configuration used by the singletons. The first call
// wins; it must come before the first accessor.
func Configure(cfg *config.Config, logs io.Writer) {
	if cfgOverride != nil {
		return
	}
	cfgOverride = cfg
	if logs != nil {
		logOutput = logs
	}
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cfg := cfgOverride
	if cfg == nil {
		cwd, err := os.Getwd()
		if err != nil {
			initErr = fmt.Errorf("failed to get working directory: %w", err)
			return
		}
		if cfg, initErr = config.LoadOrDefault(cwd); initErr != nil {
			return
		}
	}
	container, initErr = Build(context.Background(), cfg, logOutput)
}

// Get returns the singleton container.
func Get() (*Container, error) {
	once.Do(initServices)
	return container, initErr
}

// Shutdown closes the singleton container if it was built.
func Shutdown() error {
	if container == nil {
		return nil
	}
	return container.Close()
}

// SchedulingAdapter returns a new SchedulingAdapter writing to out.
// Each call creates a new adapter (adapters are stateless translators).
func SchedulingAdapter(out io.Writer) (*cliadapter.SchedulingAdapter, error) {
	c, err := Get()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewSchedulingAdapter(c.Scheduling, out), nil
}

// EquipmentAdapter returns a new EquipmentAdapter writing to out.
func EquipmentAdapter(out io.Writer) (*cliadapter.EquipmentAdapter, error) {
	c, err := Get()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewEquipmentAdapter(c.Equipment, out), nil
}

// CatalogAdapter returns a new CatalogAdapter writing to out.
func CatalogAdapter(out io.Writer) (*cliadapter.CatalogAdapter, error) {
	c, err := Get()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewCatalogAdapter(c.Catalog, out), nil
}
