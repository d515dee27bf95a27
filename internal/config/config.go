// Package config reads and writes the project configuration stored in
// .gmpsched/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Dir is the per-project configuration directory.
const Dir = ".gmpsched"

// Provider kinds.
const (
	KindReplay  = "replay"
	KindRemote  = "remote"
	KindBuiltin = "builtin"
)

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. Bare numbers are seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if nerr := json.Unmarshal(data, &secs); nerr != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProviderConfig selects and configures an external provider.
type ProviderConfig struct {
	Kind      string   `json:"kind"`
	Endpoint  string   `json:"endpoint,omitempty" validate:"omitempty,url"`
	APIKeyEnv string   `json:"api_key_env,omitempty"` // name of the env var holding the key
	Timeout   Duration `json:"timeout" validate:"gte=0"`
}

// KafkaConfig configures plan dispatch to the message bus. Dispatch is
// disabled when no brokers are listed.
type KafkaConfig struct {
	Brokers []string `json:"brokers,omitempty" validate:"dive,hostname_port"`
	Topic   string   `json:"topic,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// Config represents the gmpsched configuration.
type Config struct {
	Version               string         `json:"version"`
	CatalogPath           string         `json:"catalog_path,omitempty"`  // empty: embedded catalog
	DatabasePath          string         `json:"database_path,omitempty"` // empty: ~/.gmpsched/gmpsched.db
	SamplesDir            string         `json:"samples_dir,omitempty"`
	RecordingsPath        string         `json:"recordings_path,omitempty"`
	Perception            ProviderConfig `json:"perception"`
	Generation            ProviderConfig `json:"generation"`
	Strategies            []string       `json:"strategies,omitempty" validate:"dive,oneof=optimized gmp-strict"`
	PerceptionConcurrency int            `json:"perception_concurrency" validate:"gte=0,lte=64"`
	CleaningInterval      Duration       `json:"cleaning_interval" validate:"gte=0"`
	PlanningStartHour     int            `json:"planning_start_hour" validate:"gte=0,lte=23"`
	Kafka                 KafkaConfig    `json:"kafka"`
	ExportDir             string         `json:"export_dir,omitempty"`
	LogLevel              string         `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	MetricsAddr           string         `json:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	Operator              string         `json:"operator,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:               "1",
		Perception:            ProviderConfig{Kind: KindReplay, Timeout: Duration(30 * time.Second)},
		Generation:            ProviderConfig{Kind: KindBuiltin, Timeout: Duration(2 * time.Minute)},
		PerceptionConcurrency: 4,
		CleaningInterval:      Duration(time.Hour),
		PlanningStartHour:     8,
		LogLevel:              "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and provider kinds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if k := c.Perception.Kind; k != KindReplay && k != KindRemote {
		return fmt.Errorf("invalid config: perception kind %q (want %s or %s)", k, KindReplay, KindRemote)
	}
	if k := c.Generation.Kind; k != KindBuiltin && k != KindRemote {
		return fmt.Errorf("invalid config: generation kind %q (want %s or %s)", k, KindBuiltin, KindRemote)
	}
	for name, p := range map[string]ProviderConfig{"perception": c.Perception, "generation": c.Generation} {
		if p.Kind == KindRemote && p.Endpoint == "" {
			return fmt.Errorf("invalid config: remote %s provider needs an endpoint", name)
		}
	}
	return nil
}

// Path returns the config file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, Dir, "config.json")
}

// LoadConfig reads .gmpsched/config.json from the specified directory.
// Fields absent from the file keep their defaults.
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is LoadConfig with a missing file treated as Default().
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfgDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", Dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultDataDir returns ~/.gmpsched, the home of the database and samples.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, Dir), nil
}
