// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// SampleExtensions are tried in order when resolving an order's image.
var SampleExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// SampleStore implements secondary.SampleSource over a directory holding one
// image per order, named after the order id.
type SampleStore struct {
	dir string
}

// NewSampleStore creates a sample store. If dir is empty, defaults to
// ~/.gmpsched/samples.
func NewSampleStore(dir string) (*SampleStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".gmpsched", "samples")
	}
	return &SampleStore{dir: dir}, nil
}

// Dir returns the directory samples are read from.
func (s *SampleStore) Dir() string {
	return s.dir
}

// Sample implements secondary.SampleSource.
func (s *SampleStore) Sample(ctx context.Context, orderID string) ([]byte, error) {
	if orderID == "" || strings.ContainsAny(orderID, `/\`) || orderID == "." || orderID == ".." {
		return nil, apperr.New(apperr.CodeInvalidInput, "invalid order id %q", orderID)
	}
	for _, ext := range SampleExtensions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, orderID+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sample for %s: %w", orderID, err)
		}
		return data, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "no sample image").
		WithDetail("order", orderID).
		WithDetail("dir", s.dir)
}

// Ensure SampleStore implements the interface
var _ secondary.SampleSource = (*SampleStore)(nil)
