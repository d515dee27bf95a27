// Package replay provides a deterministic perception provider that answers
// from recorded analyses keyed by the SHA-256 of the sample image.
package replay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/gmpsched/internal/ports/secondary"
)

// ErrNoRecording is returned for an image that was never recorded.
var ErrNoRecording = errors.New("no recorded analysis for sample")

// Recording pairs an image digest with the analysis returned for it.
type Recording struct {
	SHA256   string             `yaml:"sha256" validate:"required,len=64,hexadecimal"`
	Sample   string             `yaml:"sample,omitempty"`
	Analysis secondary.Analysis `yaml:"analysis" validate:"required"`
}

type file struct {
	Recordings []Recording `yaml:"recordings" validate:"unique=SHA256,dive"`
}

// Provider implements secondary.PerceptionProvider from recordings.
type Provider struct {
	mu         sync.RWMutex
	recordings map[string]Recording
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New creates an empty provider.
func New() *Provider {
	return &Provider{recordings: make(map[string]Recording)}
}

// Load reads a recordings file. A missing file yields an empty provider.
func Load(path string) (*Provider, error) {
	p := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode recordings %s: %w", path, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid recordings %s: %w", path, err)
	}
	for _, r := range f.Recordings {
		p.recordings[strings.ToLower(r.SHA256)] = r
	}
	return p, nil
}

// Digest returns the hex SHA-256 of an image.
func Digest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// Analyze implements secondary.PerceptionProvider.
func (p *Provider) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := Digest(image)
	p.mu.RLock()
	r, ok := p.recordings[digest]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRecording, digest)
	}
	a := r.Analysis
	return &a, nil
}

// Add records the analysis for an image, replacing any earlier recording.
func (p *Provider) Add(sample string, image []byte, a secondary.Analysis) error {
	r := Recording{SHA256: Digest(image), Sample: sample, Analysis: a}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid analysis for %s: %w", sample, err)
	}
	p.mu.Lock()
	p.recordings[r.SHA256] = r
	p.mu.Unlock()
	return nil
}

// Len returns the number of recordings.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.recordings)
}

// Save writes every recording, ordered by sample then digest.
func (p *Provider) Save(path string) error {
	p.mu.RLock()
	f := file{Recordings: make([]Recording, 0, len(p.recordings))}
	for _, r := range p.recordings {
		f.Recordings = append(f.Recordings, r)
	}
	p.mu.RUnlock()
	slices.SortFunc(f.Recordings, func(a, b Recording) int {
		if c := strings.Compare(a.Sample, b.Sample); c != 0 {
			return c
		}
		return strings.Compare(a.SHA256, b.SHA256)
	})

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode recordings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write recordings: %w", err)
	}
	return nil
}

// Recorder decorates a live provider and records every successful analysis.
type Recorder struct {
	next  secondary.PerceptionProvider
	store *Provider
}

// NewRecorder wraps next, storing answers in store.
func NewRecorder(next secondary.PerceptionProvider, store *Provider) *Recorder {
	return &Recorder{next: next, store: store}
}

// Analyze implements secondary.PerceptionProvider.
func (r *Recorder) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	a, err := r.next.Analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	// An answer that fails validation is still returned; the workflow
	// treats it as unresolved.
	_ = r.store.Add("", image, *a)
	return a, nil
}

var (
	_ secondary.PerceptionProvider = (*Provider)(nil)
	_ secondary.PerceptionProvider = (*Recorder)(nil)
)
